package revisionable

import (
	"context"
	"fmt"

	"github.com/mickamy/revisionable/internal/buffer"
)

type pendingOp struct {
	table      string
	entityType string
	entityID   string
	revs       []Revision // insert when non-nil
	deleteN    int        // delete oldest otherwise
}

// DeferredStore queues writes until Flush, so revisions can be written after
// the host's own transaction commits and dropped when it rolls back.
type DeferredStore struct {
	inner Store
	buf   *buffer.Buffer[pendingOp]
}

// NewDeferredStore wraps inner.
func NewDeferredStore(inner Store) *DeferredStore {
	return &DeferredStore{inner: inner, buf: buffer.New[pendingOp]()}
}

func (s *DeferredStore) InsertRevisions(_ context.Context, table string, revs []Revision) error {
	if len(revs) == 0 {
		return nil
	}
	cp := make([]Revision, len(revs))
	copy(cp, revs)
	s.buf.Add(pendingOp{
		table:      table,
		entityType: revs[0].RevisionableType,
		entityID:   revs[0].RevisionableID,
		revs:       cp,
	})
	return nil
}

func (s *DeferredStore) DeleteOldest(_ context.Context, table, entityType, entityID string, n int) error {
	if n <= 0 {
		return nil
	}
	s.buf.Add(pendingOp{table: table, entityType: entityType, entityID: entityID, deleteN: n})
	return nil
}

// CountRevisions returns the stored count adjusted by the pending writes of the entity.
func (s *DeferredStore) CountRevisions(ctx context.Context, table, entityType, entityID string) (int, error) {
	n, err := s.inner.CountRevisions(ctx, table, entityType, entityID)
	if err != nil {
		return 0, err
	}
	s.buf.Each(func(op pendingOp) {
		if op.table != table || op.entityType != entityType || op.entityID != entityID {
			return
		}
		if op.revs != nil {
			for _, rev := range op.revs {
				if rev.RevisionableType == entityType && rev.RevisionableID == entityID {
					n++
				}
			}
			return
		}
		n = max(n-op.deleteN, 0)
	})
	return n, nil
}

// Pending returns the number of queued writes.
func (s *DeferredStore) Pending() int {
	return s.buf.Len()
}

// Flush applies the queued writes in order. On failure the unapplied writes stay queued.
func (s *DeferredStore) Flush(ctx context.Context) error {
	ops := s.buf.Drain()
	for i, op := range ops {
		var err error
		if op.revs != nil {
			err = s.inner.InsertRevisions(ctx, op.table, op.revs)
		} else {
			err = s.inner.DeleteOldest(ctx, op.table, op.entityType, op.entityID, op.deleteN)
		}
		if err != nil {
			s.buf.Requeue(ops[i:])
			return fmt.Errorf("revisionable: failed to flush deferred writes: %w", err)
		}
	}
	return nil
}

// Discard drops the queued writes.
func (s *DeferredStore) Discard() {
	s.buf.Reset()
}
