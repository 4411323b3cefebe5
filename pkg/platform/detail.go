package platform

import (
	"context"
	"errors"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/gate"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

// ClassOutline is the part of a class visible from its course page
type ClassOutline struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Position        int    `json:"position"`
	DurationMinutes int    `json:"duration_minutes"`
	FreePreview     bool   `json:"free_preview"`
}

// CourseDetail is a course with its outline and the caller's relation to it
type CourseDetail struct {
	Course   *content.Course `json:"course"`
	Outline  []ClassOutline  `json:"outline"`
	Owner    bool            `json:"owner"`
	Enrolled bool            `json:"enrolled"`
}

// ClassDetail is a class with the recipes of its content blocks
type ClassDetail struct {
	Class   *content.Class    `json:"class"`
	Recipes []*content.Recipe `json:"recipes"`
}

// BookDetail is a book with the recipes the caller may read
type BookDetail struct {
	Book    *content.Book     `json:"book"`
	Recipes []*content.Recipe `json:"recipes"`
}

// BrowseCourses lists published course metadata. Safe for anonymous callers.
func (s *Service) BrowseCourses(ctx context.Context) ([]CourseSummary, error) {
	return s.catalog.Published(ctx)
}

// GetCourseDetail returns a course and its outline. Owners see archived
// classes too.
func (s *Service) GetCourseDetail(ctx context.Context, actor identity.Actor, courseID string) (*CourseDetail, error) {
	decision, err := s.gate.Authorize(ctx, actor, authz.OpRead, gate.Course(courseID))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed() {
		return nil, decision.Err()
	}

	c, err := s.content.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	classes, err := s.content.ListCourseClasses(ctx, courseID)
	if err != nil {
		return nil, err
	}

	detail := &CourseDetail{
		Course:  c,
		Outline: make([]ClassOutline, 0, len(classes)),
		Owner:   decision.Reason == authz.ReasonOwner,
	}
	for _, cl := range classes {
		if cl.State == content.ClassArchived && !detail.Owner {
			continue
		}
		detail.Outline = append(detail.Outline, ClassOutline{
			ID:              cl.ID,
			Title:           cl.Title,
			Position:        cl.Position,
			DurationMinutes: cl.DurationMinutes,
			FreePreview:     cl.FreePreview,
		})
	}

	if !actor.IsAnonymous() && !detail.Owner {
		if detail.Enrolled, err = s.ledger.HasActiveAccess(ctx, actor.UserID, courseID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// GetClassDetail returns a class and its recipes to owners, enrolled
// students and, for preview classes, everyone
func (s *Service) GetClassDetail(ctx context.Context, actor identity.Actor, classID string) (*ClassDetail, error) {
	if err := s.gate.Require(ctx, actor, authz.OpRead, gate.Class(classID)); err != nil {
		return nil, err
	}

	cl, err := s.content.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	recipes := make([]*content.Recipe, 0, len(cl.RecipeIDs))
	for _, id := range cl.RecipeIDs {
		r, err := s.content.GetRecipe(ctx, id)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}
	return &ClassDetail{Class: cl, Recipes: recipes}, nil
}

// GetRecipeDetail returns a recipe. viaClassID may name a class whose
// content references the recipe; the class then decides visibility of a
// non-public recipe.
func (s *Service) GetRecipeDetail(ctx context.Context, actor identity.Actor, recipeID, viaClassID string) (*content.Recipe, error) {
	ref := gate.Recipe(recipeID)
	if viaClassID != "" {
		ref = gate.RecipeInClass(recipeID, viaClassID)
	}
	if err := s.gate.Require(ctx, actor, authz.OpRead, ref); err != nil {
		return nil, err
	}
	return s.content.GetRecipe(ctx, recipeID)
}

// GetBookDetail returns a book with only the recipes the caller may read
func (s *Service) GetBookDetail(ctx context.Context, actor identity.Actor, bookID string) (*BookDetail, error) {
	if err := s.gate.Require(ctx, actor, authz.OpRead, gate.Book(bookID)); err != nil {
		return nil, err
	}

	b, err := s.content.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	recipes := make([]*content.Recipe, 0, len(b.RecipeIDs))
	for _, id := range b.RecipeIDs {
		decision, err := s.gate.Authorize(ctx, actor, authz.OpRead, gate.Recipe(id))
		if errors.Is(err, content.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !decision.Allowed() {
			continue
		}
		r, err := s.content.GetRecipe(ctx, id)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}
	return &BookDetail{Book: b, Recipes: recipes}, nil
}
