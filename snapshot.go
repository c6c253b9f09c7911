package revisionable

import (
	"slices"
)

// Snapshot is an ordered mapping from field key to value.
type Snapshot struct {
	keys []string
	vals map[string]any
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{vals: map[string]any{}}
}

// SnapshotFromMap builds a snapshot from m with keys in lexical order.
func SnapshotFromMap(m map[string]any) *Snapshot {
	s := &Snapshot{keys: make([]string, 0, len(m)), vals: make(map[string]any, len(m))}
	for k, v := range m {
		s.keys = append(s.keys, k)
		s.vals[k] = v
	}
	slices.Sort(s.keys)
	return s
}

// Set stores v under key. A new key is appended; an existing key keeps its position.
func (s *Snapshot) Set(key string, v any) *Snapshot {
	if s.vals == nil {
		s.vals = map[string]any{}
	}
	if _, ok := s.vals[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.vals[key] = v
	return s
}

// Get returns the value stored under key.
func (s *Snapshot) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.vals[key]
	return v, ok
}

// Value returns the value under key, or nil.
func (s *Snapshot) Value(key string) any {
	v, _ := s.Get(key)
	return v
}

// Delete removes key if present.
func (s *Snapshot) Delete(key string) {
	if s == nil {
		return
	}
	if _, ok := s.vals[key]; !ok {
		return
	}
	delete(s.vals, key)
	if i := slices.Index(s.keys, key); i >= 0 {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
}

// Keys returns a copy of the keys in order.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Map returns the snapshot contents as a plain map.
func (s *Snapshot) Map() map[string]any {
	out := make(map[string]any, s.Len())
	if s == nil {
		return out
	}
	for _, k := range s.keys {
		out[k] = s.vals[k]
	}
	return out
}

// Clone returns a shallow copy. A nil snapshot clones to an empty one.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return NewSnapshot()
	}
	out := &Snapshot{keys: slices.Clone(s.keys), vals: make(map[string]any, len(s.vals))}
	for k, v := range s.vals {
		out.vals[k] = v
	}
	return out
}
