package platform

import (
	"context"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/gate"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

// CreateRecipe creates a recipe owned by the acting chef
func (s *Service) CreateRecipe(ctx context.Context, actor identity.Actor, in content.RecipeInput) (*content.Recipe, error) {
	if err := s.gate.Require(ctx, actor, authz.OpCreate, gate.Recipe("")); err != nil {
		return nil, err
	}
	return s.content.CreateRecipe(ctx, actor.UserID, in)
}

// UpdateRecipe replaces a recipe's mutable fields
func (s *Service) UpdateRecipe(ctx context.Context, actor identity.Actor, recipeID string, in content.RecipeInput) (*content.Recipe, error) {
	if err := s.gate.Require(ctx, actor, authz.OpUpdate, gate.Recipe(recipeID)); err != nil {
		return nil, err
	}
	return s.content.UpdateRecipe(ctx, actor.UserID, recipeID, in)
}

// ArchiveRecipe archives a recipe without touching the classes and books
// that reference it
func (s *Service) ArchiveRecipe(ctx context.Context, actor identity.Actor, recipeID string) (*content.Recipe, error) {
	if err := s.gate.Require(ctx, actor, authz.OpArchive, gate.Recipe(recipeID)); err != nil {
		return nil, err
	}
	return s.content.ArchiveRecipe(ctx, actor.UserID, recipeID)
}

// MyRecipes lists the acting chef's recipes
func (s *Service) MyRecipes(ctx context.Context, actor identity.Actor) ([]*content.Recipe, error) {
	if !actor.IsChef() {
		return nil, authz.ErrRoleNotPermitted
	}
	return s.content.ListChefRecipes(ctx, actor.UserID)
}

// RecipeUsage lists the classes that use a recipe. Only the recipe's owner
// may ask.
func (s *Service) RecipeUsage(ctx context.Context, actor identity.Actor, recipeID string) ([]*content.Class, error) {
	if err := s.gate.Require(ctx, actor, authz.OpUpdate, gate.Recipe(recipeID)); err != nil {
		return nil, err
	}
	return s.content.ClassesUsingRecipe(ctx, recipeID)
}

// CreateBook creates a book of the acting chef's recipes
func (s *Service) CreateBook(ctx context.Context, actor identity.Actor, in content.BookInput) (*content.Book, error) {
	if err := s.gate.Require(ctx, actor, authz.OpCreate, gate.Book("")); err != nil {
		return nil, err
	}
	return s.content.CreateBook(ctx, actor.UserID, in)
}

// UpdateBook replaces a book's mutable fields and entries
func (s *Service) UpdateBook(ctx context.Context, actor identity.Actor, bookID string, in content.BookInput) (*content.Book, error) {
	if err := s.gate.Require(ctx, actor, authz.OpUpdate, gate.Book(bookID)); err != nil {
		return nil, err
	}
	return s.content.UpdateBook(ctx, actor.UserID, bookID, in)
}

// ArchiveBook archives a book. Its recipes are untouched.
func (s *Service) ArchiveBook(ctx context.Context, actor identity.Actor, bookID string) (*content.Book, error) {
	if err := s.gate.Require(ctx, actor, authz.OpArchive, gate.Book(bookID)); err != nil {
		return nil, err
	}
	return s.content.ArchiveBook(ctx, actor.UserID, bookID)
}
