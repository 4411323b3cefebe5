package enrollment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidTransition is returned for any edge the state machine does
	// not allow, including transitions on unknown enrollments
	ErrInvalidTransition = errors.New("invalid enrollment transition")
	// ErrDuplicateIdempotencyKey is returned when a key is reused for a
	// different user or course
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used for a different enrollment")
	// ErrNotFound is returned when no enrollment matches
	ErrNotFound = errors.New("enrollment not found")
	// ErrInvalidRequest is returned for malformed ledger requests
	ErrInvalidRequest = errors.New("invalid enrollment request")
)

// Enrollment is one purchase attempt by a user for a course
type Enrollment struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	CourseID         string    `json:"course_id"`
	State            State     `json:"state"`
	IdempotencyKey   string    `json:"idempotency_key"`
	AmountCents      int64     `json:"amount_cents"`
	ConfirmationRef  string    `json:"confirmation_ref,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastTransitionAt time.Time `json:"last_transition_at"`
}

// Event is one row of the append-only transition log
type Event struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	Sequence     int       `json:"sequence"`
	From         State     `json:"from,omitempty"`
	To           State     `json:"to"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// BeginRequest starts or resumes an enrollment
type BeginRequest struct {
	UserID   string
	CourseID string
	// IdempotencyKey collapses retries. When empty a key is derived from the
	// user, the course and the number of earlier terminal attempts.
	IdempotencyKey string
	AmountCents    int64
}

// BeginResult is returned by BeginEnrollment
type BeginResult struct {
	Enrollment *Enrollment `json:"enrollment"`
	// Created is false when an existing row was returned
	Created bool `json:"created"`
}

// Stats summarizes the enrollments of one course
type Stats struct {
	CourseID           string `json:"course_id"`
	ActiveEnrollments  int64  `json:"active_enrollments"`
	PendingEnrollments int64  `json:"pending_enrollments"`
	RevenueCents       int64  `json:"revenue_cents"`
}

// PaymentInitiator asks the payment collaborator to charge for a new
// pending enrollment. The collaborator later calls Confirm or Fail.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, e *Enrollment) error
}

// Notifier is told about every state change after it commits
type Notifier interface {
	NotifyTransition(ctx context.Context, e *Enrollment, from State) error
}
