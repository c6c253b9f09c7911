package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mickamy/revisionable"
	"github.com/mickamy/revisionable/internal/ident"
)

// SchemaConfig controls revisions table generation.
type SchemaConfig struct {
	Table       string // default "revisions"
	Dialect     Dialect
	CreateIndex bool // index (revisionable_type, revisionable_id)
}

// Migrate creates the revisions table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB, cfg SchemaConfig) error {
	if cfg.Table == "" {
		cfg.Table = revisionable.DefaultTable
	}
	tbl := ident.Table(cfg.Table)
	if tbl == "" {
		return fmt.Errorf("sqlstore: invalid table identifier %q", cfg.Table)
	}

	columns := revisionColumns(cfg.Dialect)
	ddl := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        %s
    );
    `, tbl, strings.Join(columns, ",\n\t"))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlstore: failed to create %s: %w", tbl, err)
	}

	if cfg.CreateIndex {
		indexName := ident.BaseName(cfg.Table) + "_revisionable_idx"
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ("revisionable_type", "revisionable_id");`,
			ident.Quote(indexName), tbl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: failed to create index %s: %w", indexName, err)
		}
	}
	return nil
}

func revisionColumns(d Dialect) []string {
	if d == Postgres {
		return []string{
			`"id" BIGSERIAL PRIMARY KEY`,
			`"revisionable_type" VARCHAR(255) NOT NULL`,
			`"revisionable_id" VARCHAR(255) NOT NULL`,
			`"user_type" VARCHAR(255)`,
			`"user_id" VARCHAR(255)`,
			`"key" VARCHAR(255) NOT NULL`,
			`"old_value" TEXT`,
			`"new_value" TEXT`,
			`"context" JSON`,
			`"ip" VARCHAR(45)`,
			`"created_at" TIMESTAMPTZ`,
			`"updated_at" TIMESTAMPTZ`,
		}
	}
	return []string{
		`"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
		`"revisionable_type" TEXT NOT NULL`,
		`"revisionable_id" TEXT NOT NULL`,
		`"user_type" TEXT`,
		`"user_id" TEXT`,
		`"key" TEXT NOT NULL`,
		`"old_value" TEXT`,
		`"new_value" TEXT`,
		`"context" TEXT`,
		`"ip" TEXT`,
		`"created_at" DATETIME`,
		`"updated_at" DATETIME`,
	}
}
