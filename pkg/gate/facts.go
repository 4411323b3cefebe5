package gate

import (
	"context"
	"fmt"
	"slices"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
)

// resolve loads the target and its ancestors by explicit parent lookups
// and flattens them into authorization facts
func (g *Gate) resolve(ctx context.Context, op authz.Operation, ref Ref) (authz.Target, error) {
	if ref.ID == "" {
		if op != authz.OpCreate {
			return authz.Target{}, fmt.Errorf("%s %s: %w", op, ref.Kind, content.ErrNotFound)
		}
		return authz.Target{Kind: ref.Kind}, nil
	}

	switch ref.Kind {
	case authz.KindCourse:
		return g.courseFacts(ctx, ref.ID)
	case authz.KindClass:
		return g.classFacts(ctx, ref.ID)
	case authz.KindRecipe:
		return g.recipeFacts(ctx, ref)
	case authz.KindBook:
		return g.bookFacts(ctx, ref.ID)
	}
	return authz.Target{}, fmt.Errorf("unknown entity kind %q", ref.Kind)
}

func (g *Gate) courseFacts(ctx context.Context, courseID string) (authz.Target, error) {
	c, err := g.content.GetCourse(ctx, courseID)
	if err != nil {
		return authz.Target{}, err
	}
	return authz.Target{
		Kind:      authz.KindCourse,
		ID:        c.ID,
		OwnerID:   c.ChefID,
		Published: c.State == content.LifecyclePublished,
		Archived:  c.State == content.LifecycleArchived,
		CourseID:  c.ID,
	}, nil
}

func (g *Gate) classFacts(ctx context.Context, classID string) (authz.Target, error) {
	cl, c, err := g.loadClass(ctx, classID)
	if err != nil {
		return authz.Target{}, err
	}
	return classTarget(cl, c), nil
}

func (g *Gate) loadClass(ctx context.Context, classID string) (*content.Class, *content.Course, error) {
	cl, err := g.content.GetClass(ctx, classID)
	if err != nil {
		return nil, nil, err
	}
	c, err := g.content.GetCourse(ctx, cl.CourseID)
	if err != nil {
		return nil, nil, fmt.Errorf("parent of class %s: %w", classID, err)
	}
	return cl, c, nil
}

// classTarget gates a class unless it or its course is a free preview
func classTarget(cl *content.Class, c *content.Course) authz.Target {
	return authz.Target{
		Kind:      authz.KindClass,
		ID:        cl.ID,
		OwnerID:   c.ChefID,
		Published: c.State == content.LifecyclePublished,
		Archived:  c.State == content.LifecycleArchived || cl.State == content.ClassArchived,
		Gated:     !(c.FreePreview || cl.FreePreview),
		CourseID:  c.ID,
	}
}

func (g *Gate) recipeFacts(ctx context.Context, ref Ref) (authz.Target, error) {
	r, err := g.content.GetRecipe(ctx, ref.ID)
	if err != nil {
		return authz.Target{}, err
	}

	public := authz.Target{
		Kind:      authz.KindRecipe,
		ID:        r.ID,
		OwnerID:   r.ChefID,
		Published: r.IsPublic,
		Archived:  r.Archived,
	}
	if ref.ViaClassID == "" || (r.IsPublic && !r.Archived) {
		return public, nil
	}

	cl, c, err := g.loadClass(ctx, ref.ViaClassID)
	if err != nil {
		return authz.Target{}, err
	}
	if !slices.Contains(cl.RecipeIDs, r.ID) {
		return authz.Target{}, fmt.Errorf("recipe %s in class %s: %w", r.ID, cl.ID, content.ErrNotFound)
	}

	// The course owner may differ from the recipe owner only if the
	// hierarchy is broken; ownership of a recipe stays with its chef.
	t := classTarget(cl, c)
	t.Kind = authz.KindRecipe
	t.ID = r.ID
	t.OwnerID = r.ChefID
	return t, nil
}

func (g *Gate) bookFacts(ctx context.Context, bookID string) (authz.Target, error) {
	b, err := g.content.GetBook(ctx, bookID)
	if err != nil {
		return authz.Target{}, err
	}
	return authz.Target{
		Kind:      authz.KindBook,
		ID:        b.ID,
		OwnerID:   b.ChefID,
		Published: b.IsPublic,
		Archived:  b.Archived,
	}, nil
}
