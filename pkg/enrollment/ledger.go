package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/chefhub/pkg/async"
	"github.com/platinummonkey/chefhub/pkg/storage"
)

const (
	tracerName = "github.com/platinummonkey/chefhub/pkg/enrollment"

	defaultCollaboratorTimeout = 10 * time.Second
	maxTransitionAttempts      = 3

	enrollmentColumns = `id, user_id, course_id, state, idempotency_key, amount_cents, confirmation_ref,
		reason, created_at, last_transition_at`
)

// keyNamespace seeds derived idempotency keys
var keyNamespace = uuid.MustParse("6f1f3c52-8a7e-4c1b-9d2e-3b5a7c9e1f40")

// errLostRace is returned inside a transition when the row changed between
// the read and the conditional update
var errLostRace = errors.New("enrollment changed concurrently")

// Ledger owns enrollment rows and their transition log. All writes go
// through conditional statements so concurrent callers agree on one winner.
type Ledger struct {
	db                  *sql.DB
	logger              *logrus.Logger
	payments            PaymentInitiator
	notifier            Notifier
	metrics             *Metrics
	tracer              trace.Tracer
	collaboratorTimeout time.Duration
	now                 func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithPaymentInitiator sets the collaborator charged for new enrollments
func WithPaymentInitiator(p PaymentInitiator) Option {
	return func(l *Ledger) { l.payments = p }
}

// WithNotifier sets the collaborator told about committed transitions
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithMetrics records begins and transitions in m
func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithTracerProvider overrides the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Ledger) { l.tracer = tp.Tracer(tracerName) }
}

// WithCollaboratorTimeout bounds each payment or notification call
func WithCollaboratorTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.collaboratorTimeout = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a ledger over db
func NewLedger(db *sql.DB, logger *logrus.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &Ledger{
		db:                  db,
		logger:              logger,
		tracer:              otel.Tracer(tracerName),
		collaboratorTimeout: defaultCollaboratorTimeout,
		now:                 func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BeginEnrollment starts a purchase attempt or returns the one already in
// flight. An active enrollment for the pair is returned unchanged. A key
// whose row already ended in failed or revoked returns that row as is, so
// a new attempt needs a fresh key.
func (l *Ledger) BeginEnrollment(ctx context.Context, req BeginRequest) (*BeginResult, error) {
	ctx, span := l.tracer.Start(ctx, "enrollment.Begin", trace.WithAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("course.id", req.CourseID),
	))
	defer span.End()

	if req.UserID == "" || req.CourseID == "" {
		return nil, fmt.Errorf("%w: user and course are required", ErrInvalidRequest)
	}
	if req.AmountCents < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidRequest)
	}

	var (
		result  *BeginResult
		outcome string
	)
	err := storage.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		active, err := l.findActive(ctx, tx, req.UserID, req.CourseID)
		if err != nil {
			return err
		}
		if active != nil {
			result, outcome = &BeginResult{Enrollment: active}, "already_active"
			return nil
		}

		key := req.IdempotencyKey
		if key == "" {
			if key, err = l.deriveKey(ctx, tx, req.UserID, req.CourseID); err != nil {
				return err
			}
		}

		now := l.now()
		e := &Enrollment{
			ID:               uuid.New().String(),
			UserID:           req.UserID,
			CourseID:         req.CourseID,
			State:            StatePending,
			IdempotencyKey:   key,
			AmountCents:      req.AmountCents,
			CreatedAt:        now,
			LastTransitionAt: now,
		}

		query := `
			INSERT INTO enrollments (id, user_id, course_id, state, idempotency_key, amount_cents,
				confirmation_ref, reason, created_at, last_transition_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (idempotency_key) DO NOTHING
		`
		res, err := tx.ExecContext(ctx, query,
			e.ID, e.UserID, e.CourseID, string(e.State), e.IdempotencyKey, e.AmountCents,
			e.ConfirmationRef, e.Reason, e.CreatedAt, e.LastTransitionAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert enrollment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check inserted enrollment: %w", err)
		}

		if n == 1 {
			if err := l.appendEvent(ctx, tx, e.ID, "", StatePending, "created", now); err != nil {
				return err
			}
			result, outcome = &BeginResult{Enrollment: e, Created: true}, "created"
			return nil
		}

		existing, err := l.getByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing.UserID != req.UserID || existing.CourseID != req.CourseID {
			return fmt.Errorf("%w: key %q", ErrDuplicateIdempotencyKey, key)
		}
		result, outcome = &BeginResult{Enrollment: existing}, "replayed"
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("enrollment.outcome", outcome))
	if l.metrics != nil {
		l.metrics.Begins.WithLabelValues(outcome).Inc()
	}
	l.logger.WithFields(logrus.Fields{
		"enrollment_id": result.Enrollment.ID,
		"user_id":       req.UserID,
		"course_id":     req.CourseID,
		"outcome":       outcome,
	}).Debug("enrollment begun")

	if result.Created && l.payments != nil {
		e := *result.Enrollment
		async.SafeGo(context.WithoutCancel(ctx), l.collaboratorTimeout, "initiate payment", func(ctx context.Context) error {
			return l.payments.InitiatePayment(ctx, &e)
		})
	}
	return result, nil
}

// Confirm moves a pending enrollment to active. Confirming again with the
// same reference is a no-op.
func (l *Ledger) Confirm(ctx context.Context, id, ref string) (*Enrollment, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: confirmation reference is required", ErrInvalidRequest)
	}
	return l.transition(ctx, id, edge{
		name:  "confirm",
		apply: State.Confirm,
		noop:  func(e *Enrollment) bool { return e.State == StateActive && e.ConfirmationRef == ref },
		set:   func(e *Enrollment) { e.ConfirmationRef = ref },
	})
}

// Fail moves a pending enrollment to failed. Failing a failed enrollment is
// a no-op.
func (l *Ledger) Fail(ctx context.Context, id, reason string) (*Enrollment, error) {
	return l.transition(ctx, id, edge{
		name:  "fail",
		apply: State.Fail,
		noop:  func(e *Enrollment) bool { return e.State == StateFailed },
		set:   func(e *Enrollment) { e.Reason = reason },
	})
}

// Revoke moves an active enrollment to revoked. Revoking a revoked
// enrollment succeeds without writing anything. The row comes back with
// its original reason, and no event or notification is produced.
func (l *Ledger) Revoke(ctx context.Context, id, reason string) (*Enrollment, error) {
	return l.transition(ctx, id, edge{
		name:  "revoke",
		apply: State.Revoke,
		noop:  func(e *Enrollment) bool { return e.State == StateRevoked },
		set:   func(e *Enrollment) { e.Reason = reason },
	})
}

type edge struct {
	name  string
	apply func(State) (State, error)
	noop  func(*Enrollment) bool
	set   func(*Enrollment)
}

func (l *Ledger) transition(ctx context.Context, id string, ed edge) (*Enrollment, error) {
	ctx, span := l.tracer.Start(ctx, "enrollment."+ed.name, trace.WithAttributes(
		attribute.String("enrollment.id", id),
	))
	defer span.End()

	for attempt := 1; ; attempt++ {
		e, from, changed, err := l.tryTransition(ctx, id, ed)
		if errors.Is(err, errLostRace) && attempt < maxTransitionAttempts {
			continue
		}
		if errors.Is(err, errLostRace) {
			err = fmt.Errorf("%w: enrollment %s kept changing", ErrInvalidTransition, id)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if changed {
			l.afterTransition(ctx, e, from)
		}
		return e, nil
	}
}

func (l *Ledger) tryTransition(ctx context.Context, id string, ed edge) (*Enrollment, State, bool, error) {
	var (
		e       *Enrollment
		from    State
		changed bool
	)
	err := storage.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		e, err = l.get(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		if err != nil {
			return err
		}
		if ed.noop(e) {
			return nil
		}

		from = e.State
		to, err := ed.apply(from)
		if err != nil {
			return fmt.Errorf("enrollment %s: %w", id, err)
		}

		if to == StateActive {
			var others int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM enrollments WHERE user_id = $1 AND course_id = $2 AND state = $3 AND id <> $4`,
				e.UserID, e.CourseID, string(StateActive), e.ID,
			).Scan(&others)
			if err != nil {
				return fmt.Errorf("failed to check active enrollments: %w", err)
			}
			if others > 0 {
				return fmt.Errorf("%w: user already has an active enrollment for course %s", ErrInvalidTransition, e.CourseID)
			}
		}

		ed.set(e)
		e.State = to
		e.LastTransitionAt = l.now()

		res, err := tx.ExecContext(ctx, `
			UPDATE enrollments
			SET state = $1, confirmation_ref = $2, reason = $3, last_transition_at = $4
			WHERE id = $5 AND state = $6
		`, string(e.State), e.ConfirmationRef, e.Reason, e.LastTransitionAt, e.ID, string(from))
		if storage.IsUniqueViolation(err) {
			return fmt.Errorf("%w: user already has an active enrollment for course %s", ErrInvalidTransition, e.CourseID)
		}
		if err != nil {
			return fmt.Errorf("failed to update enrollment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check updated enrollment: %w", err)
		}
		if n == 0 {
			return errLostRace
		}

		detail := e.Reason
		if to == StateActive {
			detail = e.ConfirmationRef
		}
		if err := l.appendEvent(ctx, tx, e.ID, from, to, detail, e.LastTransitionAt); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, "", false, err
	}
	return e, from, changed, nil
}

func (l *Ledger) afterTransition(ctx context.Context, e *Enrollment, from State) {
	if l.metrics != nil {
		l.metrics.Transitions.WithLabelValues(string(from), string(e.State)).Inc()
	}
	l.logger.WithFields(logrus.Fields{
		"enrollment_id": e.ID,
		"user_id":       e.UserID,
		"course_id":     e.CourseID,
		"from":          from,
		"to":            e.State,
	}).Info("enrollment transitioned")

	if l.notifier == nil {
		return
	}
	snapshot := *e
	async.SafeGo(context.WithoutCancel(ctx), l.collaboratorTimeout, "notify enrollment transition", func(ctx context.Context) error {
		return l.notifier.NotifyTransition(ctx, &snapshot, from)
	})
}

// HasActiveAccess reports whether the user holds an active enrollment in the
// course
func (l *Ledger) HasActiveAccess(ctx context.Context, userID, courseID string) (bool, error) {
	if userID == "" || courseID == "" {
		return false, nil
	}
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE user_id = $1 AND course_id = $2 AND state = $3`,
		userID, courseID, string(StateActive),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return n > 0, nil
}

// Get loads one enrollment
func (l *Ledger) Get(ctx context.Context, id string) (*Enrollment, error) {
	return l.get(ctx, l.db, id)
}

// ListForUser returns every enrollment of a user, newest first
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]*Enrollment, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []*Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// History returns the transition log of an enrollment in order
func (l *Ledger) History(ctx context.Context, id string) ([]*Event, error) {
	if _, err := l.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, enrollment_id, sequence, from_state, to_state, detail, occurred_at
		FROM enrollment_events
		WHERE enrollment_id = $1
		ORDER BY sequence
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment history: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var (
			ev       Event
			from, to string
		)
		if err := rows.Scan(&ev.ID, &ev.EnrollmentID, &ev.Sequence, &from, &to, &ev.Detail, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment event: %w", err)
		}
		ev.From, ev.To = State(from), State(to)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// CourseStats counts enrollments of a course and sums the revenue of the
// active ones
func (l *Ledger) CourseStats(ctx context.Context, courseID string) (*Stats, error) {
	stats := &Stats{CourseID: courseID}
	err := l.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN state = $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = $1 THEN amount_cents ELSE 0 END), 0)
		FROM enrollments
		WHERE course_id = $3
	`, string(StateActive), string(StatePending), courseID).Scan(
		&stats.ActiveEnrollments, &stats.PendingEnrollments, &stats.RevenueCents,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute course stats: %w", err)
	}
	return stats, nil
}

// PendingOlderThan returns the ids of pending enrollments created before
// cutoff, oldest first
func (l *Ledger) PendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id FROM enrollments
		WHERE state = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, string(StatePending), cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending enrollments: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (l *Ledger) deriveKey(ctx context.Context, tx *sql.Tx, userID, courseID string) (string, error) {
	var attempt int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE user_id = $1 AND course_id = $2 AND state IN ($3, $4)`,
		userID, courseID, string(StateFailed), string(StateRevoked),
	).Scan(&attempt)
	if err != nil {
		return "", fmt.Errorf("failed to count enrollment attempts: %w", err)
	}
	return DeriveKey(userID, courseID, attempt), nil
}

// DeriveKey returns the idempotency key used when a caller supplies none.
// attempt is the number of earlier terminal enrollments for the pair.
func DeriveKey(userID, courseID string, attempt int) string {
	name := userID + "|" + courseID + "|" + strconv.Itoa(attempt)
	return uuid.NewSHA1(keyNamespace, []byte(name)).String()
}

func (l *Ledger) appendEvent(ctx context.Context, tx *sql.Tx, enrollmentID string, from, to State, detail string, at time.Time) error {
	query := `
		INSERT INTO enrollment_events (id, enrollment_id, sequence, from_state, to_state, detail, occurred_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM enrollment_events WHERE enrollment_id = $2), $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, query, uuid.New().String(), enrollmentID, string(from), string(to), detail, at); err != nil {
		return fmt.Errorf("failed to append enrollment event: %w", err)
	}
	return nil
}

func (l *Ledger) findActive(ctx context.Context, q queryer, userID, courseID string) (*Enrollment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2 AND state = $3`,
		userID, courseID, string(StateActive))
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active enrollment: %w", err)
	}
	return e, nil
}

func (l *Ledger) getByKey(ctx context.Context, q queryer, key string) (*Enrollment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE idempotency_key = $1`, key)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("enrollment with key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment by key: %w", err)
	}
	return e, nil
}

func (l *Ledger) get(ctx context.Context, q queryer, id string) (*Enrollment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("enrollment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnrollment(row rowScanner) (*Enrollment, error) {
	var (
		e     Enrollment
		state string
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.CourseID, &state, &e.IdempotencyKey, &e.AmountCents,
		&e.ConfirmationRef, &e.Reason, &e.CreatedAt, &e.LastTransitionAt,
	)
	if err != nil {
		return nil, err
	}
	if e.State, err = ParseState(state); err != nil {
		return nil, err
	}
	return &e, nil
}
