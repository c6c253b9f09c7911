package revisionable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// RedactFunc defines a function used to mask a value before it is stored.
type RedactFunc func(key string, v any) any

// RedactMap maps field keys to specific redaction functions.
type RedactMap map[string]RedactFunc

// Config defines the main configuration options for a Recorder.
type Config struct {
	Table         string         // revisions table; default "revisions"
	Store         Store          // required for writes
	Actors        ActorResolver  // default ContextActors
	Request       RequestContext // default ContextRequest
	Errors        ErrorSink      // default LogErrors on Logger
	Logger        *slog.Logger   // default slog.Default()
	Metrics       *Metrics       // optional
	Redact        RedactMap      // optional key-based redaction
	ContextColumn bool           // the table has a context column; write ambient metadata to it
	StrictCompare bool           // compare old and new values by type instead of loosely
	Now           func() time.Time
}

// Recorder turns entity mutations into revision batches.
type Recorder struct {
	cfg     Config
	log     *slog.Logger
	compare Comparer

	mu       sync.RWMutex
	options  map[string]Options
	disabled map[string][]string
}

// New creates a Recorder with sensible defaults.
func New(cfg Config) *Recorder {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Actors == nil {
		cfg.Actors = ContextActors{}
	}
	if cfg.Request == nil {
		cfg.Request = ContextRequest{}
	}
	if cfg.Errors == nil {
		cfg.Errors = LogErrors{Logger: cfg.Logger}
	}
	if cfg.Redact == nil {
		cfg.Redact = RedactMap{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &Recorder{
		cfg:      cfg,
		log:      cfg.Logger.With(slog.String("component", "revisionable")),
		compare:  LooseEqual,
		options:  map[string]Options{},
		disabled: map[string][]string{},
	}
	if cfg.StrictCompare {
		r.compare = StrictEqual
	}
	return r
}

// Table returns the revisions table name.
func (r *Recorder) Table() string {
	return r.cfg.Table
}

// Register sets the options used for entities of morphType that do not implement Configurer.
func (r *Recorder) Register(morphType string, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[morphType] = opts.clone()
}

// DisableField stops recording changes of keys for entities of morphType.
func (r *Recorder) DisableField(morphType string, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[morphType] = append(r.disabled[morphType], keys...)
}

func (r *Recorder) optionsFor(e Entity, morphType string) (Options, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	disabled := slices.Clone(r.disabled[morphType])
	if c, ok := e.(Configurer); ok {
		return c.RevisionOptions().clone(), disabled
	}
	return r.options[morphType].clone(), disabled
}

// Save runs persist between the pre-save and post-save hooks of e.
// Revisions are only written when persist succeeds.
func (r *Recorder) Save(ctx context.Context, e Entity, persist func(context.Context) error) error {
	m := r.Begin(ctx, e)
	if err := persist(ctx); err != nil {
		return err
	}
	if !m.isUpdate {
		if err := m.Created(ctx); err != nil {
			return err
		}
	}
	return m.Saved(ctx)
}

// Delete runs persist and then records the soft-delete of e, if any.
func (r *Recorder) Delete(ctx context.Context, e Entity, persist func(context.Context) error) error {
	if err := persist(ctx); err != nil {
		return err
	}
	return r.Begin(ctx, e).Deleted(ctx)
}

// ClassHistory returns the latest revisions recorded for morphType. A non-positive limit means 100.
func (r *Recorder) ClassHistory(ctx context.Context, morphType string, limit int) ([]Revision, error) {
	hs, err := r.historyStore()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	revs, err := hs.ClassHistory(ctx, r.cfg.Table, morphType, limit)
	if err != nil {
		return nil, fmt.Errorf("revisionable: failed to load class history: %w", err)
	}
	return revs, nil
}

// History returns every revision of e in insertion order.
func (r *Recorder) History(ctx context.Context, e Entity) ([]Revision, error) {
	hs, err := r.historyStore()
	if err != nil {
		return nil, err
	}
	morph := MorphType(e)
	revs, err := hs.EntityHistory(ctx, r.cfg.Table, morph, entityID(e, morph))
	if err != nil {
		return nil, fmt.Errorf("revisionable: failed to load history: %w", err)
	}
	return revs, nil
}

// DeleteRevisions removes the history of e, limited to keys when given.
func (r *Recorder) DeleteRevisions(ctx context.Context, e Entity, keys ...string) (int, error) {
	hs, err := r.historyStore()
	if err != nil {
		return 0, err
	}
	morph := MorphType(e)
	n, err := hs.DeleteRevisions(ctx, r.cfg.Table, morph, entityID(e, morph), keys...)
	if err != nil {
		return 0, fmt.Errorf("revisionable: failed to delete revisions: %w", err)
	}
	return n, nil
}

// CreatedBy returns the id of the user who created e, "System" when it was
// created without an actor and "---" when no creation revision exists.
func (r *Recorder) CreatedBy(ctx context.Context, e Entity) (string, error) {
	revs, err := r.History(ctx, e)
	if err != nil {
		return "", err
	}
	opts, _ := r.optionsFor(e, MorphType(e))
	key := opts.createdAtKey()
	for _, rev := range revs {
		if rev.Key != key {
			continue
		}
		if rev.UserID != nil {
			return *rev.UserID, nil
		}
		return "System", nil
	}
	return "---", nil
}

func (r *Recorder) historyStore() (HistoryStore, error) {
	if r.cfg.Store == nil {
		return nil, ErrNoStore
	}
	hs, ok := r.cfg.Store.(HistoryStore)
	if !ok {
		return nil, ErrNoHistoryStore
	}
	return hs, nil
}

// applyRedact returns the value to store for key.
func (r *Recorder) applyRedact(key string, v any) any {
	if fn, ok := r.cfg.Redact[key]; ok && fn != nil {
		return fn(key, v)
	}
	return v
}

// resolveActor returns the current actor, or nil. Failures are reported, never returned.
func (r *Recorder) resolveActor(ctx context.Context) *Actor {
	a, err := r.cfg.Actors.ResolveActor(ctx)
	if err != nil {
		var are *ActorResolutionError
		if !errors.As(err, &are) {
			err = &ActorResolutionError{Err: err}
		}
		r.report(ctx, err)
		return nil
	}
	if a == nil {
		return nil
	}
	if a.ID == "" {
		r.report(ctx, &ActorResolutionError{Type: a.Type, Err: errNoActorID})
		return nil
	}
	return a
}

func (r *Recorder) report(ctx context.Context, err error) {
	r.cfg.Metrics.observeActorError()
	r.cfg.Errors.Report(ctx, err)
}

// formatEnv holds the per-batch values shared by every revision of one hook.
type formatEnv struct {
	actor    *Actor
	clientIP string
	context  Payload
	now      time.Time
}

func (r *Recorder) prepare(ctx context.Context) formatEnv {
	env := formatEnv{
		actor:    r.resolveActor(ctx),
		clientIP: r.cfg.Request.ClientIP(ctx),
		now:      r.cfg.Now(),
	}
	if r.cfg.ContextColumn {
		env.context = PayloadOf(r.cfg.Request.Ambient(ctx))
	}
	return env
}

func (r *Recorder) format(env formatEnv, m *Mutation, key string, oldValue, newValue any) Revision {
	return FormatRevision(FormatInput{
		EntityType: m.morphType,
		EntityID:   entityID(m.entity, m.morphType),
		Key:        key,
		Old:        r.applyRedact(key, oldValue),
		New:        r.applyRedact(key, newValue),
		Actor:      env.actor,
		ClientIP:   env.clientIP,
		Context:    env.context,
		Now:        env.now,
	})
}

func (r *Recorder) insert(ctx context.Context, event string, m *Mutation, revs []Revision) error {
	if err := r.cfg.Store.InsertRevisions(ctx, r.cfg.Table, revs); err != nil {
		return fmt.Errorf("revisionable: failed to insert revisions: %w", err)
	}
	r.cfg.Metrics.observeWritten(event, len(revs))
	r.log.DebugContext(ctx, "revisions recorded",
		slog.String("event", event),
		slog.String("type", m.morphType),
		slog.Int("count", len(revs)),
	)
	return nil
}
