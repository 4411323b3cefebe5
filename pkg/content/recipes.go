package content

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/chefhub/pkg/storage"
)

const recipeColumns = `id, chef_id, title, slug, description, ingredients, instructions, prep_minutes,
	cook_minutes, servings, difficulty, is_public, archived, created_at, updated_at`

// CreateRecipe creates a recipe owned by chefID
func (s *Store) CreateRecipe(ctx context.Context, chefID string, in RecipeInput) (*Recipe, error) {
	if chefID == "" {
		return nil, validationError("owner is required")
	}
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	r := &Recipe{
		ID:           uuid.New().String(),
		ChefID:       chefID,
		Title:        in.Title,
		Description:  in.Description,
		Ingredients:  in.Ingredients,
		Instructions: in.Instructions,
		PrepMinutes:  in.PrepMinutes,
		CookMinutes:  in.CookMinutes,
		Servings:     in.Servings,
		Difficulty:   in.Difficulty,
		IsPublic:     in.IsPublic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.Slug = slugify(r.Title, r.ID)

	query := `
		INSERT INTO recipes (id, chef_id, title, slug, description, ingredients, instructions, prep_minutes,
			cook_minutes, servings, difficulty, is_public, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ChefID, r.Title, r.Slug, r.Description, r.Ingredients, r.Instructions, r.PrepMinutes,
		r.CookMinutes, r.Servings, string(r.Difficulty), r.IsPublic, r.Archived, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}
	return r, nil
}

// UpdateRecipe replaces the mutable fields of a recipe
func (s *Store) UpdateRecipe(ctx context.Context, actorID, recipeID string, in RecipeInput) (*Recipe, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *Recipe
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		r, err := s.getOwnedRecipe(ctx, tx, actorID, recipeID)
		if err != nil {
			return err
		}
		if r.Archived {
			return fmt.Errorf("%w: recipe %s is archived", ErrInvalidHierarchy, recipeID)
		}

		r.Title = in.Title
		r.Description = in.Description
		r.Ingredients = in.Ingredients
		r.Instructions = in.Instructions
		r.PrepMinutes = in.PrepMinutes
		r.CookMinutes = in.CookMinutes
		r.Servings = in.Servings
		r.Difficulty = in.Difficulty
		r.IsPublic = in.IsPublic
		r.UpdatedAt = s.now()

		query := `
			UPDATE recipes
			SET title = $1, description = $2, ingredients = $3, instructions = $4, prep_minutes = $5,
				cook_minutes = $6, servings = $7, difficulty = $8, is_public = $9, updated_at = $10
			WHERE id = $11
		`
		if _, err := tx.ExecContext(ctx, query,
			r.Title, r.Description, r.Ingredients, r.Instructions, r.PrepMinutes,
			r.CookMinutes, r.Servings, string(r.Difficulty), r.IsPublic, r.UpdatedAt, r.ID,
		); err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ArchiveRecipe soft-archives a recipe. Classes and books that reference it
// keep their references.
func (s *Store) ArchiveRecipe(ctx context.Context, actorID, recipeID string) (*Recipe, error) {
	var archived *Recipe
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		r, err := s.getOwnedRecipe(ctx, tx, actorID, recipeID)
		if err != nil {
			return err
		}
		if !r.Archived {
			r.Archived = true
			r.UpdatedAt = s.now()
			if _, err := tx.ExecContext(ctx,
				`UPDATE recipes SET archived = $1, updated_at = $2 WHERE id = $3`,
				true, r.UpdatedAt, r.ID,
			); err != nil {
				return fmt.Errorf("failed to archive recipe: %w", err)
			}
		}
		archived = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// GetRecipe loads a recipe by id
func (s *Store) GetRecipe(ctx context.Context, recipeID string) (*Recipe, error) {
	return s.getRecipe(ctx, s.db, recipeID)
}

// ListChefRecipes returns every recipe owned by chefID
func (s *Store) ListChefRecipes(ctx context.Context, chefID string) ([]*Recipe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE chef_id = $1 ORDER BY created_at DESC`, chefID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []*Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

func (s *Store) getOwnedRecipe(ctx context.Context, q queryer, actorID, recipeID string) (*Recipe, error) {
	r, err := s.getRecipe(ctx, q, recipeID)
	if err != nil {
		return nil, err
	}
	if r.ChefID != actorID {
		return nil, fmt.Errorf("%w: recipe %s is not owned by %s", ErrOwnershipViolation, recipeID, actorID)
	}
	return r, nil
}

func (s *Store) getRecipe(ctx context.Context, q queryer, recipeID string) (*Recipe, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, recipeID)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recipe %s: %w", recipeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return r, nil
}

func scanRecipe(row rowScanner) (*Recipe, error) {
	var (
		r          Recipe
		difficulty string
	)
	err := row.Scan(
		&r.ID, &r.ChefID, &r.Title, &r.Slug, &r.Description, &r.Ingredients, &r.Instructions,
		&r.PrepMinutes, &r.CookMinutes, &r.Servings, &difficulty, &r.IsPublic, &r.Archived,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Difficulty = Difficulty(difficulty)
	return &r, nil
}
