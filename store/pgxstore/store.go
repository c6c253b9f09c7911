// Package pgxstore writes revisions to Postgres through a pgx connection pool.
package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mickamy/revisionable"
	"github.com/mickamy/revisionable/internal/ident"
	"github.com/mickamy/revisionable/internal/query"
)

var _ revisionable.HistoryStore = (*Store)(nil)

// maxBatchRows bounds the rows of one INSERT statement.
const maxBatchRows = 500

// Store is a revisionable.HistoryStore backed by *pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool for dsn and checks that the server answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxstore: failed to parse database config: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxstore: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxstore: failed to ping database: %w", err)
	}
	return pool, nil
}

// Pool returns the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) InsertRevisions(ctx context.Context, table string, revs []revisionable.Revision) error {
	if len(revs) == 0 {
		return nil
	}
	tbl, err := tableName(table)
	if err != nil {
		return err
	}
	cols := query.Columns
	withContext := revs[0].Context.Defined()
	if withContext {
		cols = append(append([]string(nil), query.Columns...), query.ContextColumn)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for start := 0; start < len(revs); start += maxBatchRows {
			chunk := revs[start:min(start+maxBatchRows, len(revs))]
			args := make([]any, 0, len(chunk)*len(cols))
			for _, rev := range chunk {
				args = append(args,
					rev.RevisionableType,
					rev.RevisionableID,
					rev.UserType,
					rev.UserID,
					rev.Key,
					rev.OldValue,
					rev.NewValue,
					rev.IP,
					rev.CreatedAt,
					rev.UpdatedAt,
				)
				if withContext {
					args = append(args, rev.Context.Text())
				}
			}
			if _, err := tx.Exec(ctx, query.Insert(query.Postgres, tbl, cols, len(chunk)), args...); err != nil {
				return fmt.Errorf("pgxstore: failed to insert revisions: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) DeleteOldest(ctx context.Context, table, entityType, entityID string, n int) error {
	if n <= 0 {
		return nil
	}
	tbl, err := tableName(table)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query.DeleteOldest(query.Postgres, tbl), entityType, entityID, n); err != nil {
		return fmt.Errorf("pgxstore: failed to delete oldest revisions: %w", err)
	}
	return nil
}

func (s *Store) CountRevisions(ctx context.Context, table, entityType, entityID string) (int, error) {
	tbl, err := tableName(table)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, query.Count(query.Postgres, tbl), entityType, entityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgxstore: failed to count revisions: %w", err)
	}
	return n, nil
}

func (s *Store) ClassHistory(ctx context.Context, table, entityType string, limit int) ([]revisionable.Revision, error) {
	tbl, err := tableName(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query.ClassHistory(query.Postgres, tbl), entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("pgxstore: failed to query class history: %w", err)
	}
	return collect(rows)
}

func (s *Store) EntityHistory(ctx context.Context, table, entityType, entityID string) ([]revisionable.Revision, error) {
	tbl, err := tableName(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query.EntityHistory(query.Postgres, tbl), entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("pgxstore: failed to query entity history: %w", err)
	}
	return collect(rows)
}

func (s *Store) DeleteRevisions(ctx context.Context, table, entityType, entityID string, keys ...string) (int, error) {
	tbl, err := tableName(table)
	if err != nil {
		return 0, err
	}
	args := make([]any, 0, len(keys)+2)
	args = append(args, entityType, entityID)
	for _, k := range keys {
		args = append(args, k)
	}
	tag, err := s.pool.Exec(ctx, query.DeleteRevisions(query.Postgres, tbl, len(keys)), args...)
	if err != nil {
		return 0, fmt.Errorf("pgxstore: failed to delete revisions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// TableExists reports whether table is visible on the search path.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var found bool
	stmt := fmt.Sprintf(`SELECT to_regclass(%s) IS NOT NULL`, ident.QualifiedRegclassLiteral(ident.SplitQualified(table)))
	if err := s.pool.QueryRow(ctx, stmt).Scan(&found); err != nil {
		return false, fmt.Errorf("pgxstore: failed to look up table %q: %w", table, err)
	}
	return found, nil
}

var errInvalidTable = errors.New("pgxstore: invalid table identifier")

func tableName(name string) (string, error) {
	tbl := ident.Table(name)
	if tbl == "" {
		return "", fmt.Errorf("%w %q", errInvalidTable, name)
	}
	return tbl, nil
}

func collect(rows pgx.Rows) ([]revisionable.Revision, error) {
	revs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (revisionable.Revision, error) {
		var (
			rev     revisionable.Revision
			ctxJSON *string
		)
		err := row.Scan(
			&rev.ID,
			&rev.RevisionableType,
			&rev.RevisionableID,
			&rev.UserType,
			&rev.UserID,
			&rev.Key,
			&rev.OldValue,
			&rev.NewValue,
			&rev.IP,
			&rev.CreatedAt,
			&rev.UpdatedAt,
			&ctxJSON,
		)
		if ctxJSON != nil {
			rev.Context = revisionable.NewPayload([]byte(*ctxJSON))
		}
		return rev, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgxstore: failed to scan revisions: %w", err)
	}
	return revs, nil
}
