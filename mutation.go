package revisionable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrMutationClosed is returned when a post hook runs on a finished mutation.
var ErrMutationClosed = errors.New("revisionable: mutation already finished")

// Mutation is the state captured for one save of one entity.
// It is not safe for concurrent use.
type Mutation struct {
	r         *Recorder
	entity    Entity
	morphType string
	opts      Options
	enabled   bool
	isUpdate  bool

	original *Snapshot
	updated  *Snapshot
	dirty    []string
	policy   Policy

	created bool
	done    bool
}

// Begin captures the state of e before it is persisted.
func (r *Recorder) Begin(ctx context.Context, e Entity) *Mutation {
	morph := MorphType(e)
	opts, disabled := r.optionsFor(e, morph)
	m := &Mutation{
		r:         r,
		entity:    e,
		morphType: morph,
		opts:      opts,
		enabled:   !opts.Disabled && !extractSkip(ctx),
		isUpdate:  e.Exists(),
	}
	if !m.enabled {
		return m
	}

	m.original = e.Original().Clone()
	m.updated = e.Attributes().Clone()
	if dt, ok := e.(DirtyTracker); ok {
		m.dirty = dt.DirtyKeys()
	} else {
		m.dirty = DirtyKeys(m.original, m.updated)
	}

	// only values with a comparable string form can be diffed
	var opaque []string
	for _, key := range unionKeys(m.original, m.updated) {
		if isOpaque(m.original.Value(key)) || isOpaque(m.updated.Value(key)) {
			m.original.Delete(key)
			m.updated.Delete(key)
			opaque = append(opaque, key)
		}
	}

	m.policy = NewPolicy(opts.KeepRevisionOf, opts.DontKeepRevisionOf)
	m.policy.Exclude(disabled...)
	m.policy.Exclude(opaque...)
	return m
}

// Enabled reports whether revisions are recorded for this mutation.
func (m *Mutation) Enabled() bool {
	return m.enabled
}

// IsUpdate reports whether the entity existed before this save.
func (m *Mutation) IsUpdate() bool {
	return m.isUpdate
}

// Policy returns the field policy in effect.
func (m *Mutation) Policy() Policy {
	return m.policy
}

// Created records the creation timestamp of a newly persisted entity when
// creation tracking is enabled.
func (m *Mutation) Created(ctx context.Context) error {
	if m.created || m.done {
		return ErrMutationClosed
	}
	m.created = true
	if !m.enabled || !m.opts.TrackCreations {
		return nil
	}
	if m.r.cfg.Store == nil {
		return ErrNoStore
	}
	key := m.opts.createdAtKey()
	env := m.r.prepare(ctx)
	rev := m.r.format(env, m, key, nil, m.entity.Attributes().Value(key))
	return m.r.insert(ctx, "created", m, []Revision{rev})
}

// Saved records the changed fields of an updated entity.
func (m *Mutation) Saved(ctx context.Context) error {
	if m.done {
		return ErrMutationClosed
	}
	m.done = true
	if !m.enabled || !m.isUpdate {
		return nil
	}
	r := m.r
	if r.cfg.Store == nil {
		return ErrNoStore
	}
	id := entityID(m.entity, m.morphType)

	limitReached := false
	if m.opts.HistoryLimit > 0 {
		n, err := r.cfg.Store.CountRevisions(ctx, r.cfg.Table, m.morphType, id)
		if err != nil {
			return fmt.Errorf("revisionable: failed to count revisions: %w", err)
		}
		limitReached = n >= m.opts.HistoryLimit
	}
	if limitReached && !m.opts.Cleanup {
		r.cfg.Metrics.observeSkipped("limit")
		r.log.DebugContext(ctx, "history limit reached",
			slog.String("type", m.morphType),
			slog.String("id", id),
			slog.Int("limit", m.opts.HistoryLimit),
		)
		return nil
	}

	changes := DetectChanges(m.dirty, m.original, m.updated, m.policy, r.compare)
	if changes.Len() == 0 {
		return nil
	}
	env := r.prepare(ctx)
	revs := make([]Revision, 0, changes.Len())
	for _, key := range changes.Keys() {
		revs = append(revs, r.format(env, m, key, m.original.Value(key), changes.Value(key)))
	}

	if limitReached {
		if err := r.cfg.Store.DeleteOldest(ctx, r.cfg.Table, m.morphType, id, len(revs)); err != nil {
			return fmt.Errorf("revisionable: failed to delete oldest revisions: %w", err)
		}
		r.cfg.Metrics.observePruned(len(revs))
	}
	return r.insert(ctx, "updated", m, revs)
}

// Deleted records the deletion timestamp of a soft-deleted entity.
func (m *Mutation) Deleted(ctx context.Context) error {
	if m.done {
		return ErrMutationClosed
	}
	m.done = true
	sd, ok := m.entity.(SoftDeleter)
	if !m.enabled || !ok || !sd.SoftDeleting() {
		return nil
	}
	key := m.opts.deletedAtKey()
	if !m.policy.Revisionable(key) {
		return nil
	}
	if m.r.cfg.Store == nil {
		return ErrNoStore
	}
	env := m.r.prepare(ctx)
	rev := m.r.format(env, m, key, nil, m.entity.Attributes().Value(key))
	return m.r.insert(ctx, "deleted", m, []Revision{rev})
}
