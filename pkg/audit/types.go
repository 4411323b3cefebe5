package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// EventAccessDenied is recorded for every denied gate decision
	EventAccessDenied EventType = "access.denied"
	// EventMutationAllowed is recorded when a content mutation is authorized
	EventMutationAllowed EventType = "access.mutation_allowed"
	// EventEnrollAllowed is recorded when a purchase attempt is authorized
	EventEnrollAllowed EventType = "access.enroll_allowed"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusAllowed EventStatus = "allowed"
	EventStatusDenied  EventStatus = "denied"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information; empty for anonymous callers
	ActorID   string `json:"actor_id,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`

	// Resource information
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Operation    string `json:"operation,omitempty"`
	Reason       string `json:"reason,omitempty"`

	RequestID string                 `json:"request_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	ActorID      string
	ResourceType string
	ResourceID   string
	Status       EventStatus

	// Pagination; Limit defaults to 50 and is capped at 500
	Limit  int
	Offset int
}

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

func (f SearchFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultSearchLimit
	case f.Limit > maxSearchLimit:
		return maxSearchLimit
	}
	return f.Limit
}
