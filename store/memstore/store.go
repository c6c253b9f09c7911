// Package memstore keeps revisions in process memory. It is meant for tests
// and for hosts that ship revisions elsewhere themselves.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/mickamy/revisionable"
)

var _ revisionable.HistoryStore = (*Store)(nil)

// Store is an in-memory revisionable.HistoryStore.
type Store struct {
	mu     sync.Mutex
	nextID int64
	tables map[string][]revisionable.Revision
}

func New() *Store {
	return &Store{tables: map[string][]revisionable.Revision{}}
}

func (s *Store) InsertRevisions(_ context.Context, table string, revs []revisionable.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rev := range revs {
		s.nextID++
		rev.ID = s.nextID
		s.tables[table] = append(s.tables[table], rev)
	}
	return nil
}

func (s *Store) DeleteOldest(_ context.Context, table, entityType, entityID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = slices.DeleteFunc(s.tables[table], func(rev revisionable.Revision) bool {
		if n > 0 && matches(rev, entityType, entityID) {
			n--
			return true
		}
		return false
	})
	return nil
}

func (s *Store) CountRevisions(_ context.Context, table, entityType, entityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rev := range s.tables[table] {
		if matches(rev, entityType, entityID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ClassHistory(_ context.Context, table, entityType string, limit int) ([]revisionable.Revision, error) {
	s.mu.Lock()
	var out []revisionable.Revision
	for _, rev := range s.tables[table] {
		if rev.RevisionableType == entityType {
			out = append(out, rev)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) EntityHistory(_ context.Context, table, entityType, entityID string) ([]revisionable.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []revisionable.Revision
	for _, rev := range s.tables[table] {
		if matches(rev, entityType, entityID) {
			out = append(out, rev)
		}
	}
	return out, nil
}

func (s *Store) DeleteRevisions(_ context.Context, table, entityType, entityID string, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.tables[table])
	s.tables[table] = slices.DeleteFunc(s.tables[table], func(rev revisionable.Revision) bool {
		return matches(rev, entityType, entityID) && (len(keys) == 0 || slices.Contains(keys, rev.Key))
	})
	return before - len(s.tables[table]), nil
}

// All returns a copy of every revision in table, in insertion order.
func (s *Store) All(table string) []revisionable.Revision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tables[table])
}

func matches(rev revisionable.Revision, entityType, entityID string) bool {
	return rev.RevisionableType == entityType && rev.RevisionableID == entityID
}
