package sqlstore_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/revisionable"
	"github.com/mickamy/revisionable/store/sqlstore"
)

func openPostgres(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("REVISIONABLE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("REVISIONABLE_TEST_DATABASE_URL is not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestStore_Postgres(t *testing.T) {
	ctx := context.Background()
	db := openPostgres(t)
	table := "revisions_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DROP TABLE IF EXISTS "`+table+`"`)
	})

	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.SchemaConfig{
		Table:       table,
		Dialect:     sqlstore.Postgres,
		CreateIndex: true,
	}))
	s := sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.Postgres, SkipIfNotExists: true})

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := rev("post", "1", "title", at)
	first.Context = revisionable.PayloadOf(map[string]string{"request_id": "r1"})
	require.NoError(t, s.InsertRevisions(ctx, table, []revisionable.Revision{
		first,
		rev("post", "1", "body", at.Add(time.Minute)),
	}))

	got, err := s.EntityHistory(ctx, table, "post", "1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"request_id":"r1"}`, string(got[0].Context.Raw()))
	assert.True(t, got[0].CreatedAt.Equal(at))

	latest, err := s.ClassHistory(ctx, table, "post", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "body", latest[0].Key)

	require.NoError(t, s.InsertRevisions(ctx, table+"_missing", []revisionable.Revision{first}))
}
