package webhooks

import (
	"context"

	"github.com/platinummonkey/chefhub/pkg/enrollment"
)

// InitiatePayment asks the payment endpoint to charge for a new pending
// enrollment. The payment service answers later through the signed
// confirm and fail callbacks.
func (d *Dispatcher) InitiatePayment(ctx context.Context, e *enrollment.Enrollment) error {
	return d.Dispatch(ctx, EventPaymentRequested, map[string]interface{}{
		"enrollment_id":   e.ID,
		"user_id":         e.UserID,
		"course_id":       e.CourseID,
		"amount_cents":    e.AmountCents,
		"idempotency_key": e.IdempotencyKey,
	})
}

// NotifyTransition publishes a committed enrollment transition
func (d *Dispatcher) NotifyTransition(ctx context.Context, e *enrollment.Enrollment, from enrollment.State) error {
	data := map[string]interface{}{
		"enrollment_id": e.ID,
		"user_id":       e.UserID,
		"course_id":     e.CourseID,
		"from":          string(from),
		"to":            string(e.State),
		"at":            e.LastTransitionAt,
	}
	if e.ConfirmationRef != "" {
		data["confirmation_ref"] = e.ConfirmationRef
	}
	if e.Reason != "" {
		data["reason"] = e.Reason
	}
	return d.Dispatch(ctx, EventType("enrollment."+string(e.State)), data)
}

var (
	_ enrollment.PaymentInitiator = (*Dispatcher)(nil)
	_ enrollment.Notifier         = (*Dispatcher)(nil)
)
