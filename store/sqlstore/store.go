// Package sqlstore writes revisions through database/sql to Postgres or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mickamy/revisionable"
	"github.com/mickamy/revisionable/internal/ident"
	"github.com/mickamy/revisionable/internal/query"
)

var _ revisionable.HistoryStore = (*Store)(nil)

// Dialect selects the SQL flavour of the target database.
type Dialect = query.Dialect

const (
	Postgres = query.Postgres
	SQLite   = query.SQLite
)

// maxBatchRows bounds the rows of one INSERT statement to stay under bind parameter limits.
const maxBatchRows = 200

// Config defines the store options.
type Config struct {
	Dialect         Dialect
	SkipIfNotExists bool // drop writes when the revisions table does not exist
}

// Store is a revisionable.HistoryStore backed by *sql.DB.
type Store struct {
	db  *sql.DB
	cfg Config

	mu     sync.Mutex
	exists map[string]bool
}

// New wraps db.
func New(db *sql.DB, cfg Config) *Store {
	return &Store{db: db, cfg: cfg, exists: map[string]bool{}}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) InsertRevisions(ctx context.Context, table string, revs []revisionable.Revision) error {
	if len(revs) == 0 {
		return nil
	}
	if s.cfg.SkipIfNotExists {
		ok, err := s.tableExists(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	tbl, err := s.table(table)
	if err != nil {
		return err
	}

	cols := query.Columns
	withContext := revs[0].Context.Defined()
	if withContext {
		cols = append(append([]string(nil), query.Columns...), query.ContextColumn)
	}

	if len(revs) <= maxBatchRows {
		return s.insertChunk(ctx, s.db, tbl, cols, withContext, revs)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: failed to begin transaction: %w", err)
	}
	for start := 0; start < len(revs); start += maxBatchRows {
		end := min(start+maxBatchRows, len(revs))
		if err := s.insertChunk(ctx, tx, tbl, cols, withContext, revs[start:end]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: failed to commit revisions: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertChunk(ctx context.Context, db execer, tbl string, cols []string, withContext bool, revs []revisionable.Revision) error {
	args := make([]any, 0, len(revs)*len(cols))
	for _, rev := range revs {
		args = append(args,
			rev.RevisionableType,
			rev.RevisionableID,
			nullString(rev.UserType),
			nullString(rev.UserID),
			rev.Key,
			nullString(rev.OldValue),
			nullString(rev.NewValue),
			nullString(rev.IP),
			s.bindTime(rev.CreatedAt),
			s.bindTime(rev.UpdatedAt),
		)
		if withContext {
			args = append(args, nullString(rev.Context.Text()))
		}
	}
	stmt := query.Insert(s.cfg.Dialect, tbl, cols, len(revs))
	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlstore: failed to insert revisions: %w", err)
	}
	return nil
}

func (s *Store) DeleteOldest(ctx context.Context, table, entityType, entityID string, n int) error {
	if n <= 0 {
		return nil
	}
	tbl, err := s.table(table)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query.DeleteOldest(s.cfg.Dialect, tbl), entityType, entityID, n); err != nil {
		return fmt.Errorf("sqlstore: failed to delete oldest revisions: %w", err)
	}
	return nil
}

func (s *Store) CountRevisions(ctx context.Context, table, entityType, entityID string) (int, error) {
	tbl, err := s.table(table)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query.Count(s.cfg.Dialect, tbl), entityType, entityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlstore: failed to count revisions: %w", err)
	}
	return n, nil
}

func (s *Store) ClassHistory(ctx context.Context, table, entityType string, limit int) ([]revisionable.Revision, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query.ClassHistory(s.cfg.Dialect, tbl), entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to query class history: %w", err)
	}
	return scanRevisions(rows)
}

func (s *Store) EntityHistory(ctx context.Context, table, entityType, entityID string) ([]revisionable.Revision, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query.EntityHistory(s.cfg.Dialect, tbl), entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to query entity history: %w", err)
	}
	return scanRevisions(rows)
}

func (s *Store) DeleteRevisions(ctx context.Context, table, entityType, entityID string, keys ...string) (int, error) {
	tbl, err := s.table(table)
	if err != nil {
		return 0, err
	}
	args := make([]any, 0, len(keys)+2)
	args = append(args, entityType, entityID)
	for _, k := range keys {
		args = append(args, k)
	}
	res, err := s.db.ExecContext(ctx, query.DeleteRevisions(s.cfg.Dialect, tbl, len(keys)), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to delete revisions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to read affected rows: %w", err)
	}
	return int(n), nil
}

func (s *Store) table(name string) (string, error) {
	tbl := ident.Table(name)
	if tbl == "" {
		return "", fmt.Errorf("sqlstore: invalid table identifier %q", name)
	}
	return tbl, nil
}

// tableExists reports whether table exists, caching positive answers.
func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	s.mu.Lock()
	ok := s.exists[table]
	s.mu.Unlock()
	if ok {
		return true, nil
	}

	var found bool
	switch s.cfg.Dialect {
	case Postgres:
		stmt := fmt.Sprintf(`SELECT to_regclass(%s) IS NOT NULL`, ident.QualifiedRegclassLiteral(ident.SplitQualified(table)))
		if err := s.db.QueryRowContext(ctx, stmt).Scan(&found); err != nil {
			return false, fmt.Errorf("sqlstore: failed to look up table %q: %w", table, err)
		}
	default:
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, ident.BaseName(table)).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("sqlstore: failed to look up table %q: %w", table, err)
		}
		found = n > 0
	}
	if found {
		s.mu.Lock()
		s.exists[table] = true
		s.mu.Unlock()
	}
	return found, nil
}

func (s *Store) bindTime(t time.Time) any {
	if s.cfg.Dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}
