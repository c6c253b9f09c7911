package revisionable

import (
	"slices"
)

// Options configures revisioning for one entity type.
type Options struct {
	Disabled           bool     // no revisions at all
	KeepRevisionOf     []string // only these fields, when non-empty
	DontKeepRevisionOf []string // never these fields
	HistoryLimit       int      // max stored revisions per entity; 0 is unlimited
	Cleanup            bool     // at the limit, drop the oldest revisions instead of skipping
	TrackCreations     bool     // record a revision for the creation timestamp
	CreatedAtKey       string   // default "created_at"
	DeletedAtKey       string   // default "deleted_at"
}

func (o Options) createdAtKey() string {
	if o.CreatedAtKey == "" {
		return "created_at"
	}
	return o.CreatedAtKey
}

func (o Options) deletedAtKey() string {
	if o.DeletedAtKey == "" {
		return "deleted_at"
	}
	return o.DeletedAtKey
}

func (o Options) clone() Options {
	o.KeepRevisionOf = slices.Clone(o.KeepRevisionOf)
	o.DontKeepRevisionOf = slices.Clone(o.DontKeepRevisionOf)
	return o
}
