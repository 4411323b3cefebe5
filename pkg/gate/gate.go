package gate

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/chefhub/pkg/audit"
	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

const tracerName = "github.com/platinummonkey/chefhub/pkg/gate"

// ContentReader loads the entities whose facts feed a decision
type ContentReader interface {
	GetCourse(ctx context.Context, courseID string) (*content.Course, error)
	GetClass(ctx context.Context, classID string) (*content.Class, error)
	GetRecipe(ctx context.Context, recipeID string) (*content.Recipe, error)
	GetBook(ctx context.Context, bookID string) (*content.Book, error)
}

// AccessLedger answers whether a user holds an active enrollment
type AccessLedger interface {
	HasActiveAccess(ctx context.Context, userID, courseID string) (bool, error)
}

// Ref names the entity an operation applies to. An empty ID with OpCreate
// means a new top-level course, recipe or book.
type Ref struct {
	Kind authz.Kind
	ID   string
	// ViaClassID is set when a recipe is reached through a class. The
	// recipe then inherits the visibility of that class.
	ViaClassID string
}

// Course, Class, Recipe and Book build refs
func Course(id string) Ref { return Ref{Kind: authz.KindCourse, ID: id} }
func Class(id string) Ref  { return Ref{Kind: authz.KindClass, ID: id} }
func Recipe(id string) Ref { return Ref{Kind: authz.KindRecipe, ID: id} }
func Book(id string) Ref   { return Ref{Kind: authz.KindBook, ID: id} }

// RecipeInClass refers to a recipe reached through one of a class's content
// blocks
func RecipeInClass(recipeID, classID string) Ref {
	return Ref{Kind: authz.KindRecipe, ID: recipeID, ViaClassID: classID}
}

// Gate combines the authorization rules with the enrollment ledger. It is
// the only component that answers "may this actor do this now" and it never
// changes state.
type Gate struct {
	content   ContentReader
	ledger    AccessLedger
	logger    *logrus.Logger
	tracer    trace.Tracer
	decisions *prometheus.CounterVec
	audit     audit.Logger
}

// Option configures a Gate
type Option func(*Gate)

// WithTracerProvider overrides the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gate) { g.tracer = tp.Tracer(tracerName) }
}

// WithRegisterer registers the decision counter with reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(g *Gate) { reg.MustRegister(g.decisions) }
}

// WithAuditLogger records denials and authorized mutations
func WithAuditLogger(l audit.Logger) Option {
	return func(g *Gate) { g.audit = l }
}

// New creates a gate
func New(reader ContentReader, ledger AccessLedger, logger *logrus.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	g := &Gate{
		content: reader,
		ledger:  ledger,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		audit:   audit.NoOpLogger{},
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefhub_access_decisions_total",
				Help: "Access gate decisions by entity kind, operation and outcome",
			},
			[]string{"kind", "operation", "effect", "reason"},
		),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decisions exposes the decision counter
func (g *Gate) Decisions() *prometheus.CounterVec {
	return g.decisions
}

// Authorize decides whether actor may perform op on ref. The returned
// decision is never gated: gated reads are settled against the ledger.
// Errors are returned only when facts could not be loaded, including
// content.ErrNotFound for unknown entities.
func (g *Gate) Authorize(ctx context.Context, actor identity.Actor, op authz.Operation, ref Ref) (authz.Decision, error) {
	ctx, span := g.tracer.Start(ctx, "gate.Authorize", trace.WithAttributes(
		attribute.String("authz.kind", string(ref.Kind)),
		attribute.String("authz.operation", string(op)),
		attribute.String("authz.target", ref.ID),
		attribute.Bool("authz.anonymous", actor.IsAnonymous()),
	))
	defer span.End()

	decision, err := g.authorize(ctx, actor, op, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return authz.Decision{}, err
	}

	span.SetAttributes(
		attribute.String("authz.effect", string(decision.Effect)),
		attribute.String("authz.reason", string(decision.Reason)),
	)
	g.decisions.WithLabelValues(string(ref.Kind), string(op), string(decision.Effect), string(decision.Reason)).Inc()

	if !decision.Allowed() {
		g.logger.WithFields(logrus.Fields{
			"user_id":   actor.UserID,
			"kind":      ref.Kind,
			"target":    ref.ID,
			"operation": op,
			"reason":    decision.Reason,
		}).Debug("access denied")
	}

	if audit.ShouldRecord(op, decision) {
		event := audit.NewDecisionEvent(ctx, actor, op, ref.Kind, ref.ID, decision)
		if err := g.audit.Log(ctx, event); err != nil {
			g.logger.WithError(err).WithField("audit_id", event.ID).Warn("failed to record audit event")
		}
	}
	return decision, nil
}

// Require is Authorize for callers that only need an error: nil when
// allowed, otherwise the authz sentinel matching the denial
func (g *Gate) Require(ctx context.Context, actor identity.Actor, op authz.Operation, ref Ref) error {
	decision, err := g.Authorize(ctx, actor, op, ref)
	if err != nil {
		return err
	}
	return decision.Err()
}

func (g *Gate) authorize(ctx context.Context, actor identity.Actor, op authz.Operation, ref Ref) (authz.Decision, error) {
	target, err := g.resolve(ctx, op, ref)
	if err != nil {
		return authz.Decision{}, err
	}

	decision := authz.Decide(actor, op, target)
	if decision.Effect != authz.Gated {
		return decision, nil
	}

	ok, err := g.ledger.HasActiveAccess(ctx, actor.UserID, target.CourseID)
	if err != nil {
		return authz.Decision{}, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if ok {
		return authz.Decision{Effect: authz.Allow, Reason: authz.ReasonEnrolled}, nil
	}
	return authz.Decision{Effect: authz.Deny, Reason: authz.ReasonNotEnrolled}, nil
}
