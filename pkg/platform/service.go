package platform

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/gate"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

// ContentStore is the part of the content store the platform drives
type ContentStore interface {
	gate.ContentReader
	PublishedLister

	CreateCourse(ctx context.Context, chefID string, in content.CourseInput) (*content.Course, error)
	UpdateCourse(ctx context.Context, actorID, courseID string, in content.CourseInput) (*content.Course, error)
	PublishCourse(ctx context.Context, actorID, courseID string) (*content.Course, error)
	ArchiveCourse(ctx context.Context, actorID, courseID string) (*content.Course, error)
	ListChefCourses(ctx context.Context, chefID string) ([]*content.Course, error)

	CreateClass(ctx context.Context, actorID, courseID string, in content.ClassInput) (*content.Class, error)
	UpdateClass(ctx context.Context, actorID, classID string, in content.ClassInput) (*content.Class, error)
	ArchiveClass(ctx context.Context, actorID, classID string) (*content.Class, error)
	ReorderClasses(ctx context.Context, actorID, courseID string, order []string) (*content.Course, error)
	ListCourseClasses(ctx context.Context, courseID string) ([]*content.Class, error)

	CreateRecipe(ctx context.Context, chefID string, in content.RecipeInput) (*content.Recipe, error)
	UpdateRecipe(ctx context.Context, actorID, recipeID string, in content.RecipeInput) (*content.Recipe, error)
	ArchiveRecipe(ctx context.Context, actorID, recipeID string) (*content.Recipe, error)
	ListChefRecipes(ctx context.Context, chefID string) ([]*content.Recipe, error)
	ClassesUsingRecipe(ctx context.Context, recipeID string) ([]*content.Class, error)

	CreateBook(ctx context.Context, chefID string, in content.BookInput) (*content.Book, error)
	UpdateBook(ctx context.Context, actorID, bookID string, in content.BookInput) (*content.Book, error)
	ArchiveBook(ctx context.Context, actorID, bookID string) (*content.Book, error)
}

// Ledger is the part of the enrollment ledger the platform drives
type Ledger interface {
	gate.AccessLedger

	BeginEnrollment(ctx context.Context, req enrollment.BeginRequest) (*enrollment.BeginResult, error)
	Confirm(ctx context.Context, id, ref string) (*enrollment.Enrollment, error)
	Fail(ctx context.Context, id, reason string) (*enrollment.Enrollment, error)
	Revoke(ctx context.Context, id, reason string) (*enrollment.Enrollment, error)
	Get(ctx context.Context, id string) (*enrollment.Enrollment, error)
	ListForUser(ctx context.Context, userID string) ([]*enrollment.Enrollment, error)
	History(ctx context.Context, id string) ([]*enrollment.Event, error)
	CourseStats(ctx context.Context, courseID string) (*enrollment.Stats, error)
	RecordClassCompletion(ctx context.Context, userID, classID string) error
	CompletedClasses(ctx context.Context, userID, courseID string) ([]string, error)
}

// Authorizer is the access gate
type Authorizer interface {
	Authorize(ctx context.Context, actor identity.Actor, op authz.Operation, ref gate.Ref) (authz.Decision, error)
	Require(ctx context.Context, actor identity.Actor, op authz.Operation, ref gate.Ref) error
}

// Service is the inbound surface of the platform. Every call is checked by
// the access gate before it reaches a store; the stores re-check ownership
// on their own.
type Service struct {
	content ContentStore
	ledger  Ledger
	gate    Authorizer
	catalog *Catalog
	logger  *logrus.Logger
}

// NewService wires the platform facade
func NewService(store ContentStore, ledger Ledger, authorizer Authorizer, catalog *Catalog, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if catalog == nil {
		catalog = NewCatalog(store, nil, 0, logger)
	}
	return &Service{
		content: store,
		ledger:  ledger,
		gate:    authorizer,
		catalog: catalog,
		logger:  logger,
	}
}

// invalidateCatalog drops the cached listing after a course change. A
// failure only delays visibility until the entry expires.
func (s *Service) invalidateCatalog(ctx context.Context, courseID string) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.WithError(err).WithField("course_id", courseID).Warn("catalog invalidation failed")
	}
}
