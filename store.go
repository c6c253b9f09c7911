package revisionable

import (
	"context"
	"errors"
)

// DefaultTable is the table revisions are written to unless configured otherwise.
const DefaultTable = "revisions"

var (
	// ErrNoStore is returned by hooks when the recorder has no store.
	ErrNoStore = errors.New("revisionable: no store configured")
	// ErrNoHistoryStore is returned by query helpers when the store cannot answer queries.
	ErrNoHistoryStore = errors.New("revisionable: store does not support history queries")
)

// Store persists revision batches.
type Store interface {
	// InsertRevisions writes revs as one batch, preserving order.
	InsertRevisions(ctx context.Context, table string, revs []Revision) error
	// DeleteOldest removes the n oldest revisions of one entity, oldest by insertion order.
	DeleteOldest(ctx context.Context, table, entityType, entityID string, n int) error
	// CountRevisions returns the number of stored revisions of one entity.
	CountRevisions(ctx context.Context, table, entityType, entityID string) (int, error)
}

// HistoryStore is a Store that can also answer the recorder's history queries.
type HistoryStore interface {
	Store
	// ClassHistory returns the latest revisions of a type, by updated_at descending.
	ClassHistory(ctx context.Context, table, entityType string, limit int) ([]Revision, error)
	// EntityHistory returns all revisions of one entity in insertion order.
	EntityHistory(ctx context.Context, table, entityType, entityID string) ([]Revision, error)
	// DeleteRevisions removes the revisions of one entity, optionally only for keys.
	DeleteRevisions(ctx context.Context, table, entityType, entityID string, keys ...string) (int, error)
}
