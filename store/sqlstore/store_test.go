package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mickamy/revisionable"
	"github.com/mickamy/revisionable/store/sqlstore"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "revisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db := openSQLite(t)
	require.NoError(t, sqlstore.Migrate(context.Background(), db, sqlstore.SchemaConfig{
		Dialect:     sqlstore.SQLite,
		CreateIndex: true,
	}))
	return sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.SQLite})
}

func strPtr(s string) *string { return &s }

func rev(entityType, id, key string, at time.Time) revisionable.Revision {
	return revisionable.Revision{
		RevisionableType: entityType,
		RevisionableID:   id,
		Key:              key,
		NewValue:         strPtr(key + "-value"),
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

func TestStore_InsertAndHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first := rev("post", "1", "title", at)
	first.OldValue = strPtr("A")
	first.UserID = strPtr("42")
	first.UserType = strPtr("admin")
	first.IP = strPtr("10.0.0.1")
	first.Context = revisionable.PayloadOf(map[string]any{"request_id": "abc"})
	second := rev("post", "1", "body", at)
	second.Context = revisionable.NewPayload(nil)

	require.NoError(t, s.InsertRevisions(ctx, "revisions", []revisionable.Revision{first, second}))

	got, err := s.EntityHistory(ctx, "revisions", "post", "1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "title", got[0].Key)
	require.NotNil(t, got[0].OldValue)
	assert.Equal(t, "A", *got[0].OldValue)
	assert.Equal(t, "title-value", *got[0].NewValue)
	assert.Equal(t, "42", *got[0].UserID)
	assert.Equal(t, "admin", *got[0].UserType)
	assert.Equal(t, "10.0.0.1", *got[0].IP)
	assert.JSONEq(t, `{"request_id":"abc"}`, string(got[0].Context.Raw()))
	assert.True(t, got[0].CreatedAt.Equal(at))

	assert.Equal(t, "body", got[1].Key)
	assert.Nil(t, got[1].OldValue)
	assert.Nil(t, got[1].UserID)
	assert.True(t, got[1].Context.IsNull())
	assert.Less(t, got[0].ID, got[1].ID)
}

func TestStore_InsertWithoutContextColumn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openSQLite(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE "legacy_revisions" (
		"id" INTEGER PRIMARY KEY AUTOINCREMENT,
		"revisionable_type" TEXT NOT NULL,
		"revisionable_id" TEXT NOT NULL,
		"user_type" TEXT,
		"user_id" TEXT,
		"key" TEXT NOT NULL,
		"old_value" TEXT,
		"new_value" TEXT,
		"ip" TEXT,
		"created_at" DATETIME,
		"updated_at" DATETIME
	)`)
	require.NoError(t, err)

	s := sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.SQLite})
	// an undefined payload must not reference the missing column
	require.NoError(t, s.InsertRevisions(ctx, "legacy_revisions", []revisionable.Revision{rev("post", "1", "title", time.Now())}))

	n, err := s.CountRevisions(ctx, "legacy_revisions", "post", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_DeleteOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	var revs []revisionable.Revision
	for i := 0; i < 5; i++ {
		revs = append(revs, rev("post", "1", fmt.Sprintf("k%d", i), at.Add(time.Duration(i)*time.Minute)))
	}
	revs = append(revs, rev("post", "2", "other", at))
	require.NoError(t, s.InsertRevisions(ctx, "revisions", revs))

	require.NoError(t, s.DeleteOldest(ctx, "revisions", "post", "1", 2))

	got, err := s.EntityHistory(ctx, "revisions", "post", "1")
	require.NoError(t, err)
	keys := make([]string, len(got))
	for i, r := range got {
		keys[i] = r.Key
	}
	assert.Equal(t, []string{"k2", "k3", "k4"}, keys)

	n, err := s.CountRevisions(ctx, "revisions", "post", "2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ClassHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertRevisions(ctx, "revisions", []revisionable.Revision{
		rev("post", "1", "old", at),
		rev("post", "2", "newest", at.Add(2*time.Hour)),
		rev("post", "1", "middle", at.Add(time.Hour)),
		rev("comment", "1", "ignored", at.Add(3*time.Hour)),
	}))

	got, err := s.ClassHistory(ctx, "revisions", "post", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newest", got[0].Key)
	assert.Equal(t, "middle", got[1].Key)
}

func TestStore_ClassHistory_SubSecondOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertRevisions(ctx, "revisions", []revisionable.Revision{
		rev("post", "1", "newer", at.Add(550*time.Millisecond)),
		rev("post", "1", "older", at.Add(500*time.Millisecond)),
		rev("post", "1", "oldest", at),
	}))

	got, err := s.ClassHistory(ctx, "revisions", "post", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "newer", got[0].Key)
	assert.Equal(t, "older", got[1].Key)
	assert.Equal(t, "oldest", got[2].Key)
	assert.True(t, got[0].UpdatedAt.Equal(at.Add(550*time.Millisecond)))
}

func TestStore_DeleteRevisions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	at := time.Now()

	require.NoError(t, s.InsertRevisions(ctx, "revisions", []revisionable.Revision{
		rev("post", "1", "title", at),
		rev("post", "1", "body", at),
		rev("post", "1", "title", at),
		rev("post", "2", "title", at),
	}))

	n, err := s.DeleteRevisions(ctx, "revisions", "post", "1", "title")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteRevisions(ctx, "revisions", "post", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := s.CountRevisions(ctx, "revisions", "post", "2")
	require.NoError(t, err)
	assert.Equal(t, 1, left)
}

func TestStore_LargeBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	revs := make([]revisionable.Revision, 450)
	for i := range revs {
		revs[i] = rev("post", "1", fmt.Sprintf("k%03d", i), time.Now())
	}
	require.NoError(t, s.InsertRevisions(ctx, "revisions", revs))

	got, err := s.EntityHistory(ctx, "revisions", "post", "1")
	require.NoError(t, err)
	require.Len(t, got, 450)
	assert.Equal(t, "k000", got[0].Key)
	assert.Equal(t, "k449", got[449].Key)
}

func TestStore_SkipIfNotExists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openSQLite(t)
	s := sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.SQLite, SkipIfNotExists: true})

	require.NoError(t, s.InsertRevisions(ctx, "revisions", []revisionable.Revision{rev("post", "1", "title", time.Now())}))

	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.SchemaConfig{Dialect: sqlstore.SQLite}))
	require.NoError(t, s.InsertRevisions(ctx, "revisions", []revisionable.Revision{rev("post", "1", "title", time.Now())}))

	n, err := s.CountRevisions(ctx, "revisions", "post", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_WithRecorder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	rec := revisionable.New(revisionable.Config{Store: s, ContextColumn: true})
	rec.Register("post", revisionable.Options{HistoryLimit: 2, Cleanup: true})

	p := &post{id: 7, attrs: map[string]any{"title": "A"}}
	for _, title := range []string{"B", "C", "D"} {
		p.original = p.attrs
		p.attrs = map[string]any{"title": title}
		require.NoError(t, rec.Save(ctx, p, func(context.Context) error { return nil }))
	}

	got, err := rec.History(ctx, p)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", *got[0].NewValue)
	assert.Equal(t, "D", *got[1].NewValue)
	assert.Equal(t, "C", *got[1].OldValue)
}

type post struct {
	id       int
	original map[string]any
	attrs    map[string]any
}

func (p *post) RevisionKey() any { return p.id }
func (p *post) Original() *revisionable.Snapshot { return revisionable.SnapshotFromMap(p.original) }
func (p *post) Attributes() *revisionable.Snapshot { return revisionable.SnapshotFromMap(p.attrs) }
func (p *post) Exists() bool { return true }
