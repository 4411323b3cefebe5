package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes any buffered events
	Close() error
}

// ShouldRecord reports whether a gate decision belongs in the audit trail.
// Every denial is recorded, and so is every authorized mutation or purchase.
// Allowed reads are not.
func ShouldRecord(op authz.Operation, decision authz.Decision) bool {
	if !decision.Allowed() {
		return true
	}
	return op.IsMutation() || op == authz.OpEnroll
}

// NewDecisionEvent builds the audit event for a gate decision. The request
// id is taken from ctx.
func NewDecisionEvent(ctx context.Context, actor identity.Actor, op authz.Operation, kind authz.Kind, resourceID string, decision authz.Decision) *AuditEvent {
	event := &AuditEvent{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Status:       EventStatusAllowed,
		ActorID:      actor.UserID,
		ActorRole:    string(actor.Role),
		ResourceType: string(kind),
		ResourceID:   resourceID,
		Operation:    string(op),
		Reason:       string(decision.Reason),
		RequestID:    contextkeys.RequestID(ctx),
	}

	switch {
	case !decision.Allowed():
		event.EventType = EventAccessDenied
		event.Status = EventStatusDenied
	case op == authz.OpEnroll:
		event.EventType = EventEnrollAllowed
	default:
		event.EventType = EventMutationAllowed
	}
	return event
}

// NoOpLogger discards every event
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, *AuditEvent) error { return nil }
func (NoOpLogger) Close() error                           { return nil }
