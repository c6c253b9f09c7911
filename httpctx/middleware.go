// Package httpctx attaches request metadata used by revisionable to HTTP requests.
package httpctx

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mickamy/revisionable"
)

// Options configures Middleware.
type Options struct {
	// Actor returns the authenticated actor of r, if any.
	Actor func(r *http.Request) (revisionable.Actor, bool)
	// Ambient returns the revision context of r. Defaults to DefaultAmbient.
	Ambient func(r *http.Request) any
}

// Middleware stores the client address, actor and ambient metadata of each
// request in its context.
func Middleware(opts Options) func(http.Handler) http.Handler {
	ambient := opts.Ambient
	if ambient == nil {
		ambient = DefaultAmbient
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := revisionable.WithClientIP(r.Context(), ClientIP(r))
			if opts.Actor != nil {
				if a, ok := opts.Actor(r); ok {
					ctx = revisionable.WithActor(ctx, a)
				}
			}
			ctx = revisionable.WithAmbient(ctx, ambient(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DefaultAmbient records the request id, method and path. The id set by chi's
// RequestID middleware is used when present.
func DefaultAmbient(r *http.Request) any {
	id := middleware.GetReqID(r.Context())
	if id == "" {
		id = uuid.NewString()
	}
	return map[string]string{
		"request_id": id,
		"method":     r.Method,
		"path":       r.URL.Path,
	}
}

// ClientIP extracts the client address, checking X-Forwarded-For first.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
