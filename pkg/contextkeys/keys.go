// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/chefhub/pkg/contextkeys"
//	ctx = contextkeys.WithActor(ctx, actor)
//	actor, ok := contextkeys.Actor(ctx)
package contextkeys

import (
	"context"

	"github.com/platinummonkey/chefhub/pkg/identity"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains identity.Actor
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: every API handler that calls the platform service
	// Type: identity.Actor
	ActorKey Key = "actor"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, webhook delivery logs
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *logrus.Entry
	// Set by: observability.WithLogger
	// Used by: Handlers that need structured logging with request context
	// Type: *logrus.Entry
	LoggerKey Key = "logger"
)

// WithActor stores the resolved actor in the context
func WithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// Actor returns the actor stored in the context. Requests that carried no
// credentials yield the anonymous actor and ok=false.
func Actor(ctx context.Context) (identity.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(identity.Actor)
	if !ok {
		return identity.Anonymous(), false
	}
	return actor, true
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
