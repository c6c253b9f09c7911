package revisionable

import (
	"context"
)

// metaKey is an unexported context key type.
type metaKey struct{}
type skipKey struct{}

// meta carries request-scoped values consumed by the default collaborators.
type meta struct {
	actor    *Actor
	clientIP string
	ambient  any
}

// WithActor attaches the acting identity to the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	m := extractMeta(ctx)
	m.actor = &a
	return context.WithValue(ctx, metaKey{}, m)
}

// WithClientIP attaches the client address of the current request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	m := extractMeta(ctx)
	m.clientIP = ip
	return context.WithValue(ctx, metaKey{}, m)
}

// WithAmbient attaches request-scoped metadata stored as revision context.
func WithAmbient(ctx context.Context, v any) context.Context {
	m := extractMeta(ctx)
	m.ambient = v
	return context.WithValue(ctx, metaKey{}, m)
}

// WithSkip marks the context so no revisions are recorded for mutations run with it.
func WithSkip(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

// ActorFromContext returns the actor attached with WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	m := extractMeta(ctx)
	if m.actor == nil {
		return Actor{}, false
	}
	return *m.actor, true
}

// AmbientFromContext returns the value attached with WithAmbient.
func AmbientFromContext(ctx context.Context) any {
	return extractMeta(ctx).ambient
}

func extractMeta(ctx context.Context) meta {
	if v := ctx.Value(metaKey{}); v != nil {
		if m, ok := v.(meta); ok {
			return m
		}
	}
	return meta{}
}

func extractSkip(ctx context.Context) bool {
	if v, ok := ctx.Value(skipKey{}).(bool); ok {
		return v
	}
	return false
}
