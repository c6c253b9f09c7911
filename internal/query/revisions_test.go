package query_test

import (
	"testing"

	"github.com/mickamy/revisionable/internal/query"
)

func TestInsert(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name    string
		dialect query.Dialect
		cols    []string
		rows    int
		want    string
	}{
		{
			name:    "postgres two rows",
			dialect: query.Postgres,
			cols:    []string{"key", "new_value"},
			rows:    2,
			want:    `INSERT INTO "revisions" ("key", "new_value") VALUES ($1, $2), ($3, $4)`,
		},
		{
			name:    "sqlite one row",
			dialect: query.SQLite,
			cols:    []string{"key", "old_value", "new_value"},
			rows:    1,
			want:    `INSERT INTO "revisions" ("key", "old_value", "new_value") VALUES (?, ?, ?)`,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := query.Insert(tc.dialect, `"revisions"`, tc.cols, tc.rows)
			if got != tc.want {
				t.Fatalf("Insert() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeleteOldest(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name    string
		dialect query.Dialect
		want    string
	}{
		{
			name:    "postgres",
			dialect: query.Postgres,
			want:    `DELETE FROM "revisions" WHERE "id" IN (SELECT "id" FROM "revisions" WHERE "revisionable_type" = $1 AND "revisionable_id" = $2 ORDER BY "id" ASC LIMIT $3)`,
		},
		{
			name:    "sqlite",
			dialect: query.SQLite,
			want:    `DELETE FROM "revisions" WHERE "id" IN (SELECT "id" FROM "revisions" WHERE "revisionable_type" = ? AND "revisionable_id" = ? ORDER BY "id" ASC LIMIT ?)`,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := query.DeleteOldest(tc.dialect, `"revisions"`); got != tc.want {
				t.Fatalf("DeleteOldest() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeleteRevisions(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		keys int
		want string
	}{
		{
			name: "all keys",
			keys: 0,
			want: `DELETE FROM "revisions" WHERE "revisionable_type" = $1 AND "revisionable_id" = $2`,
		},
		{
			name: "two keys",
			keys: 2,
			want: `DELETE FROM "revisions" WHERE "revisionable_type" = $1 AND "revisionable_id" = $2 AND "key" IN ($3, $4)`,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := query.DeleteRevisions(query.Postgres, `"revisions"`, tc.keys); got != tc.want {
				t.Fatalf("DeleteRevisions() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassHistory(t *testing.T) {
	t.Parallel()

	got := query.ClassHistory(query.Postgres, `"revisions"`)
	want := `SELECT "id", "revisionable_type", "revisionable_id", "user_type", "user_id", "key", "old_value", "new_value", "ip", "created_at", "updated_at", "context"::text FROM "revisions" WHERE "revisionable_type" = $1 ORDER BY "updated_at" DESC, "id" DESC LIMIT $2`
	if got != want {
		t.Fatalf("ClassHistory() = %q, want %q", got, want)
	}

	got = query.EntityHistory(query.SQLite, `"revisions"`)
	want = `SELECT "id", "revisionable_type", "revisionable_id", "user_type", "user_id", "key", "old_value", "new_value", "ip", "created_at", "updated_at", "context" FROM "revisions" WHERE "revisionable_type" = ? AND "revisionable_id" = ? ORDER BY "id" ASC`
	if got != want {
		t.Fatalf("EntityHistory() = %q, want %q", got, want)
	}
}
