package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

type stubResolver struct {
	actors map[string]identity.Actor
	err    error
}

func (s *stubResolver) Resolve(ctx context.Context, token string) (identity.Actor, error) {
	if s.err != nil {
		return identity.Actor{}, s.err
	}
	actor, ok := s.actors[token]
	if !ok {
		return identity.Actor{}, identity.ErrUnauthenticated
	}
	return actor, nil
}

func TestAuthMiddleware_Handler(t *testing.T) {
	chef := identity.Actor{UserID: "chef-1", Role: identity.RoleChef}
	resolver := &stubResolver{actors: map[string]identity.Actor{"good": chef}}

	tests := []struct {
		name       string
		optional   bool
		header     string
		wantStatus int
		wantActor  identity.Actor
		wantSet    bool
	}{
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantActor: chef, wantSet: true},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantActor: chef, wantSet: true},
		{name: "missing header required", wantStatus: http.StatusUnauthorized},
		{name: "missing header optional", optional: true, wantStatus: http.StatusOK, wantActor: identity.Anonymous(), wantSet: true},
		{name: "bad scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "unknown token optional", optional: true, header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			var (
				got    identity.Actor
				gotSet bool
				called bool
			)
			handler := NewAuthMiddleware(resolver, tt.optional, logger).Handler(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					called = true
					got, gotSet = contextkeys.Actor(r.Context())
				}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			if called {
				assert.Equal(t, tt.wantSet, gotSet)
				assert.Equal(t, tt.wantActor, got)
			}
		})
	}
}

func TestAuthMiddleware_ResolverFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	resolver := &stubResolver{err: errors.New("database down")}
	handler := NewAuthMiddleware(resolver, true, logger).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "failed to resolve credentials", hook.LastEntry().Message)
}

func TestRequireAuthenticated(t *testing.T) {
	handler := RequireAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextkeys.WithActor(req.Context(), identity.Anonymous()))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextkeys.WithActor(req.Context(), identity.Actor{UserID: "s1", Role: identity.RoleStudent}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
