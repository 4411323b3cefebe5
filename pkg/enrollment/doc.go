// Package enrollment is the ledger of course purchases.
//
// Each purchase attempt is one row moving through a small state machine:
//
//	pending -> active -> revoked
//	pending -> failed
//
// # Idempotency
//
// BeginEnrollment inserts with ON CONFLICT (idempotency_key) DO NOTHING and
// then reads the row by key, so concurrent retries with the same key end up
// with one row. When the caller supplies no key, DeriveKey builds one from
// the user, the course and the number of earlier failed or revoked attempts.
// A partial unique index keeps at most one active row per user and course.
//
// # Transitions
//
// Confirm, Fail and Revoke run a conditional UPDATE guarded by the expected
// current state. Repeating a transition that already happened is a no-op;
// any other edge returns ErrInvalidTransition. Every committed change
// appends a row to enrollment_events.
//
// # Collaborators
//
// The PaymentInitiator is called for newly created rows and the Notifier for
// every committed transition. Both run after commit through async.SafeGo and
// never hold a transaction open.
//
// # Sweeper
//
// Sweeper runs on a cron schedule and fails pending rows older than the
// configured TTL with reason "expired".
package enrollment
