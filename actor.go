package revisionable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Actor identifies the user or system responsible for a mutation.
type Actor struct {
	Type        string // e.g. "admin", "api_client"
	ID          string
	DefaultType bool // resolved through the default mechanism; Type is not stored
}

// ActorResolver resolves the acting identity at the time of a mutation.
// A nil actor with a nil error means nobody is authenticated.
type ActorResolver interface {
	ResolveActor(ctx context.Context) (*Actor, error)
}

// ActorResolverFunc adapts a function to ActorResolver.
type ActorResolverFunc func(ctx context.Context) (*Actor, error)

func (f ActorResolverFunc) ResolveActor(ctx context.Context) (*Actor, error) {
	return f(ctx)
}

// ContextActors resolves the actor attached with WithActor. An actor without a
// type is treated as coming from the default mechanism.
type ContextActors struct{}

func (ContextActors) ResolveActor(ctx context.Context) (*Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return nil, nil
	}
	if a.Type == "" {
		a.DefaultType = true
	}
	return &a, nil
}

// ActorResolutionError reports that an authenticated actor could not be identified.
type ActorResolutionError struct {
	Type string
	Err  error
}

func (e *ActorResolutionError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("revisionable: resolve actor %q: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("revisionable: resolve actor: %v", e.Err)
}

func (e *ActorResolutionError) Unwrap() error {
	return e.Err
}

var errNoActorID = errors.New("no id found for the authenticated actor")

// RequestContext exposes request-scoped values used when formatting revisions.
type RequestContext interface {
	ClientIP(ctx context.Context) string
	Ambient(ctx context.Context) any
}

// ContextRequest reads values attached with WithClientIP and WithAmbient.
type ContextRequest struct{}

func (ContextRequest) ClientIP(ctx context.Context) string {
	return extractMeta(ctx).clientIP
}

func (ContextRequest) Ambient(ctx context.Context) any {
	return extractMeta(ctx).ambient
}

// ErrorSink receives errors that are swallowed instead of returned.
type ErrorSink interface {
	Report(ctx context.Context, err error)
}

// ErrorSinkFunc adapts a function to ErrorSink.
type ErrorSinkFunc func(ctx context.Context, err error)

func (f ErrorSinkFunc) Report(ctx context.Context, err error) {
	f(ctx, err)
}

// LogErrors reports errors as warnings on a slog logger.
type LogErrors struct {
	Logger *slog.Logger
}

func (s LogErrors) Report(ctx context.Context, err error) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.WarnContext(ctx, "revisionable: reported error", slog.String("error", err.Error()))
}
