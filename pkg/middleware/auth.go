package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

// AuthMiddleware resolves the bearer token on each request into an actor
type AuthMiddleware struct {
	resolver identity.Resolver
	optional bool // If true, requests without credentials continue as anonymous
	logger   *logrus.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver identity.Resolver, optional bool, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		optional: optional,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with authentication. A present but invalid
// token is always rejected, even in optional mode.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				ctx := contextkeys.WithActor(r.Context(), identity.Anonymous())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		actor, err := m.resolver.Resolve(r.Context(), parts[1])
		if err != nil {
			if errors.Is(err, identity.ErrUnauthenticated) {
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			m.logger.WithError(err).WithField("request_id", contextkeys.RequestID(r.Context())).
				Error("failed to resolve credentials")
			httputil.WriteServiceUnavailable(w, "unable to verify credentials")
			return
		}

		ctx := contextkeys.WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthenticated rejects anonymous actors with 401
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := contextkeys.Actor(r.Context())
		if actor.IsAnonymous() {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
