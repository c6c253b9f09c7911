package revisionable_test

import (
	"github.com/mickamy/revisionable"
)

type post struct {
	id       any
	original *revisionable.Snapshot
	attrs    *revisionable.Snapshot
	exists   bool
	deleting bool
}

func (p *post) RevisionKey() any { return p.id }
func (p *post) Original() *revisionable.Snapshot { return p.original }
func (p *post) Attributes() *revisionable.Snapshot { return p.attrs }
func (p *post) Exists() bool { return p.exists }
func (p *post) SoftDeleting() bool { return p.deleting }

// snap builds a snapshot from alternating keys and values.
func snap(kv ...any) *revisionable.Snapshot {
	s := revisionable.NewSnapshot()
	for i := 0; i+1 < len(kv); i += 2 {
		s.Set(kv[i].(string), kv[i+1])
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}
