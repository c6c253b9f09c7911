// Package boltstore keeps revisions in an embedded bbolt file.
//
// Each table is a top-level bucket holding one nested bucket per entity,
// keyed by big-endian sequence numbers so cursors walk in insertion order.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mickamy/revisionable"
)

var _ revisionable.HistoryStore = (*Store)(nil)

// Store is a revisionable.HistoryStore backed by a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("boltstore: failed to create directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: failed to open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

type record struct {
	ID               int64           `json:"id"`
	RevisionableType string          `json:"revisionable_type"`
	RevisionableID   string          `json:"revisionable_id"`
	UserType         *string         `json:"user_type,omitempty"`
	UserID           *string         `json:"user_id,omitempty"`
	Key              string          `json:"key"`
	OldValue         *string         `json:"old_value,omitempty"`
	NewValue         *string         `json:"new_value,omitempty"`
	IP               *string         `json:"ip,omitempty"`
	Context          json.RawMessage `json:"context,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toRecord(rev revisionable.Revision) record {
	return record{
		ID:               rev.ID,
		RevisionableType: rev.RevisionableType,
		RevisionableID:   rev.RevisionableID,
		UserType:         rev.UserType,
		UserID:           rev.UserID,
		Key:              rev.Key,
		OldValue:         rev.OldValue,
		NewValue:         rev.NewValue,
		IP:               rev.IP,
		Context:          rev.Context.Raw(),
		CreatedAt:        rev.CreatedAt,
		UpdatedAt:        rev.UpdatedAt,
	}
}

func (r record) revision() revisionable.Revision {
	rev := revisionable.Revision{
		ID:               r.ID,
		RevisionableType: r.RevisionableType,
		RevisionableID:   r.RevisionableID,
		UserType:         r.UserType,
		UserID:           r.UserID,
		Key:              r.Key,
		OldValue:         r.OldValue,
		NewValue:         r.NewValue,
		IP:               r.IP,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if len(r.Context) > 0 {
		rev.Context = revisionable.NewPayload(r.Context)
	}
	return rev
}

func entityKey(entityType, entityID string) []byte {
	return []byte(entityType + "\x00" + entityID)
}

func typePrefix(entityType string) []byte {
	return []byte(entityType + "\x00")
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (s *Store) InsertRevisions(_ context.Context, table string, revs []revisionable.Revision) error {
	if len(revs) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return fmt.Errorf("boltstore: failed to create table bucket: %w", err)
		}
		for _, rev := range revs {
			b, err := root.CreateBucketIfNotExists(entityKey(rev.RevisionableType, rev.RevisionableID))
			if err != nil {
				return fmt.Errorf("boltstore: failed to create entity bucket: %w", err)
			}
			seq, err := root.NextSequence()
			if err != nil {
				return fmt.Errorf("boltstore: failed to allocate id: %w", err)
			}
			rec := toRecord(rev)
			rec.ID = int64(seq)
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("boltstore: failed to encode revision: %w", err)
			}
			if err := b.Put(itob(seq), data); err != nil {
				return fmt.Errorf("boltstore: failed to write revision: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) DeleteOldest(_ context.Context, table, entityType, entityID string, n int) error {
	if n <= 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := entityBucket(tx, table, entityType, entityID)
		if b == nil {
			return nil
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && len(keys) < n; k, _ = c.Next() {
			keys = append(keys, bytes.Clone(k))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("boltstore: failed to delete revision: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) CountRevisions(_ context.Context, table, entityType, entityID string) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := entityBucket(tx, table, entityType, entityID)
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) ClassHistory(_ context.Context, table, entityType string, limit int) ([]revisionable.Revision, error) {
	var out []revisionable.Revision
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(table))
		if root == nil {
			return nil
		}
		prefix := typePrefix(entityType)
		c := root.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if v != nil {
				continue
			}
			revs, err := readAll(root.Bucket(k))
			if err != nil {
				return err
			}
			out = append(out, revs...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) EntityHistory(_ context.Context, table, entityType, entityID string) ([]revisionable.Revision, error) {
	var out []revisionable.Revision
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = readAll(entityBucket(tx, table, entityType, entityID))
		return err
	})
	return out, err
}

func (s *Store) DeleteRevisions(_ context.Context, table, entityType, entityID string, keys ...string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(table))
		if root == nil {
			return nil
		}
		name := entityKey(entityType, entityID)
		b := root.Bucket(name)
		if b == nil {
			return nil
		}
		if len(keys) == 0 {
			deleted = b.Stats().KeyN
			return root.DeleteBucket(name)
		}

		want := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			want[k] = struct{}{}
		}
		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("boltstore: failed to decode revision: %w", err)
			}
			if _, ok := want[rec.Key]; ok {
				doomed = append(doomed, bytes.Clone(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("boltstore: failed to delete revision: %w", err)
			}
		}
		deleted = len(doomed)
		return nil
	})
	return deleted, err
}

func entityBucket(tx *bolt.Tx, table, entityType, entityID string) *bolt.Bucket {
	root := tx.Bucket([]byte(table))
	if root == nil {
		return nil
	}
	return root.Bucket(entityKey(entityType, entityID))
}

func readAll(b *bolt.Bucket) ([]revisionable.Revision, error) {
	if b == nil {
		return nil, nil
	}
	var out []revisionable.Revision
	err := b.ForEach(func(_, v []byte) error {
		var rec record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("boltstore: failed to decode revision: %w", err)
		}
		out = append(out, rec.revision())
		return nil
	})
	return out, err
}
