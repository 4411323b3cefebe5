package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/identity"
	"github.com/platinummonkey/chefhub/pkg/middleware"
	"github.com/platinummonkey/chefhub/pkg/platform"
)

// Platform is the set of platform operations the API exposes
type Platform interface {
	CreateCourse(ctx context.Context, actor identity.Actor, in content.CourseInput) (*content.Course, error)
	UpdateCourse(ctx context.Context, actor identity.Actor, courseID string, in content.CourseInput) (*content.Course, error)
	PublishCourse(ctx context.Context, actor identity.Actor, courseID string) (*content.Course, error)
	ArchiveCourse(ctx context.Context, actor identity.Actor, courseID string) (*content.Course, error)
	MyCourses(ctx context.Context, actor identity.Actor) ([]*content.Course, error)
	CreateClass(ctx context.Context, actor identity.Actor, courseID string, in content.ClassInput) (*content.Class, error)
	UpdateClass(ctx context.Context, actor identity.Actor, classID string, in content.ClassInput) (*content.Class, error)
	ArchiveClass(ctx context.Context, actor identity.Actor, classID string) (*content.Class, error)
	ReorderClasses(ctx context.Context, actor identity.Actor, courseID string, order []string) (*content.Course, error)

	CreateRecipe(ctx context.Context, actor identity.Actor, in content.RecipeInput) (*content.Recipe, error)
	UpdateRecipe(ctx context.Context, actor identity.Actor, recipeID string, in content.RecipeInput) (*content.Recipe, error)
	ArchiveRecipe(ctx context.Context, actor identity.Actor, recipeID string) (*content.Recipe, error)
	MyRecipes(ctx context.Context, actor identity.Actor) ([]*content.Recipe, error)
	RecipeUsage(ctx context.Context, actor identity.Actor, recipeID string) ([]*content.Class, error)
	CreateBook(ctx context.Context, actor identity.Actor, in content.BookInput) (*content.Book, error)
	UpdateBook(ctx context.Context, actor identity.Actor, bookID string, in content.BookInput) (*content.Book, error)
	ArchiveBook(ctx context.Context, actor identity.Actor, bookID string) (*content.Book, error)

	BrowseCourses(ctx context.Context) ([]platform.CourseSummary, error)
	GetCourseDetail(ctx context.Context, actor identity.Actor, courseID string) (*platform.CourseDetail, error)
	GetClassDetail(ctx context.Context, actor identity.Actor, classID string) (*platform.ClassDetail, error)
	GetRecipeDetail(ctx context.Context, actor identity.Actor, recipeID, viaClassID string) (*content.Recipe, error)
	GetBookDetail(ctx context.Context, actor identity.Actor, bookID string) (*platform.BookDetail, error)

	PurchaseCourse(ctx context.Context, actor identity.Actor, courseID, idempotencyKey string) (*enrollment.BeginResult, error)
	ConfirmPayment(ctx context.Context, enrollmentID, ref string) (*enrollment.Enrollment, error)
	FailPayment(ctx context.Context, enrollmentID, reason string) (*enrollment.Enrollment, error)
	RevokeEnrollment(ctx context.Context, enrollmentID, reason string) (*enrollment.Enrollment, error)
	MyEnrollments(ctx context.Context, actor identity.Actor) ([]*enrollment.Enrollment, error)
	EnrollmentHistory(ctx context.Context, actor identity.Actor, enrollmentID string) ([]*enrollment.Event, error)
	CourseStats(ctx context.Context, actor identity.Actor, courseID string) (*enrollment.Stats, error)
	CompleteClass(ctx context.Context, actor identity.Actor, classID string) error
	CourseProgress(ctx context.Context, actor identity.Actor, courseID string) (*platform.Progress, error)
}

var _ Platform = (*platform.Service)(nil)

// Config carries the optional collaborators of a Server
type Config struct {
	// PaymentWebhookSecret verifies payment callbacks. Callbacks are
	// rejected while it is empty.
	PaymentWebhookSecret string
	// RateLimits is applied after authentication when set
	RateLimits *middleware.RateLimitMiddleware
	// MaxBodyBytes bounds request bodies, 1 MiB when zero
	MaxBodyBytes int64
	// Middleware runs on matched /api/v1 routes, after logging
	Middleware []mux.MiddlewareFunc
	// Audit serves GET /me/audit when set
	Audit AuditSearcher
}

// Server represents our API server
type Server struct {
	platform      Platform
	router        *mux.Router
	auth          *middleware.AuthMiddleware
	webhookSecret string
	audit         AuditSearcher
	logger        *logrus.Logger
}

// NewServer creates a new API server with every route registered
func NewServer(p Platform, resolver identity.Resolver, cfg Config, logger *logrus.Logger) *Server {
	s := &Server{
		platform:      p,
		router:        mux.NewRouter(),
		auth:          middleware.NewAuthMiddleware(resolver, true, logger),
		webhookSecret: cfg.PaymentWebhookSecret,
		audit:         cfg.Audit,
		logger:        logger,
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	// mux only runs Use middleware on matched routes, so the fallback
	// handlers are wrapped with the same chain.
	base := httputil.Chain(httputil.RequestIDMiddleware, httputil.RecoveryMiddleware(logger))
	s.router.Use(base)
	s.router.NotFoundHandler = base(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "route not found")
	}))
	s.router.MethodNotAllowedHandler = base(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorCode(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}))

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(httputil.LoggingMiddleware(logger), httputil.MaxBytesMiddleware(cfg.MaxBodyBytes))
	v1.Use(cfg.Middleware...)

	hooks := v1.PathPrefix("/webhooks").Subrouter()
	s.setupWebhookRoutes(hooks)

	public := v1.NewRoute().Subrouter()
	public.Use(s.auth.Handler)
	if cfg.RateLimits != nil {
		public.Use(cfg.RateLimits.Handler)
	}
	s.setupCourseRoutes(public)
	s.setupContentRoutes(public)
	s.setupEnrollmentRoutes(public)
	s.setupAuditRoutes(public)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar outside /api/v1,
// such as health and metrics endpoints
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
