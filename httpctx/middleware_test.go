package httpctx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/revisionable"
	"github.com/mickamy/revisionable/httpctx"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded for takes first address",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			remoteAddr: "10.0.0.1:1234",
			want:       "203.0.113.7",
		},
		{
			name:       "real ip",
			headers:    map[string]string{"X-Real-IP": "198.51.100.2"},
			remoteAddr: "10.0.0.1:1234",
			want:       "198.51.100.2",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.1:5555",
			want:       "192.0.2.1",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "remote addr without port left as is",
			remoteAddr: "192.0.2.9",
			want:       "192.0.2.9",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, httpctx.ClientIP(r))
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got context.Context
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpctx.Middleware(httpctx.Options{
		Actor: func(r *http.Request) (revisionable.Actor, bool) {
			id := r.Header.Get("X-User-ID")
			return revisionable.Actor{Type: "admin", ID: id}, id != ""
		},
	}))
	r.Post("/posts", func(w http.ResponseWriter, r *http.Request) {
		got = r.Context()
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/posts", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-User-ID", "42")
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)

	actor, ok := revisionable.ActorFromContext(got)
	require.True(t, ok)
	assert.Equal(t, revisionable.Actor{Type: "admin", ID: "42"}, actor)
	assert.Equal(t, "192.0.2.1", revisionable.ContextRequest{}.ClientIP(got))
	assert.Equal(t, map[string]string{
		"request_id": "req-1",
		"method":     http.MethodPost,
		"path":       "/posts",
	}, revisionable.AmbientFromContext(got))
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	t.Parallel()

	var ambient any
	h := httpctx.Middleware(httpctx.Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ambient = revisionable.AmbientFromContext(r.Context())
		_, ok := revisionable.ActorFromContext(r.Context())
		assert.False(t, ok)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	m, ok := ambient.(map[string]string)
	require.True(t, ok)
	assert.Len(t, m["request_id"], 36)
}
