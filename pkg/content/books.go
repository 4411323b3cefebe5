package content

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/chefhub/pkg/storage"
)

const bookColumns = `id, chef_id, title, slug, description, author, is_public, archived, created_at, updated_at`

// CreateBook creates a book owned by chefID. Entries must reference the
// chef's own recipes.
func (s *Store) CreateBook(ctx context.Context, chefID string, in BookInput) (*Book, error) {
	if chefID == "" {
		return nil, validationError("owner is required")
	}
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created *Book
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.checkRecipeRefs(ctx, tx, chefID, in.RecipeIDs); err != nil {
			return err
		}

		now := s.now()
		b := &Book{
			ID:          uuid.New().String(),
			ChefID:      chefID,
			Title:       in.Title,
			Description: in.Description,
			Author:      in.Author,
			IsPublic:    in.IsPublic,
			RecipeIDs:   in.RecipeIDs,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		b.Slug = slugify(b.Title, b.ID)

		query := `
			INSERT INTO books (id, chef_id, title, slug, description, author, is_public, archived, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		if _, err := tx.ExecContext(ctx, query,
			b.ID, b.ChefID, b.Title, b.Slug, b.Description, b.Author, b.IsPublic, b.Archived,
			b.CreatedAt, b.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create book: %w", err)
		}
		if err := writeRefs(ctx, tx, "book_recipes", "book_id", b.ID, b.RecipeIDs); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateBook replaces the mutable fields and entries of a book
func (s *Store) UpdateBook(ctx context.Context, actorID, bookID string, in BookInput) (*Book, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *Book
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := s.getOwnedBook(ctx, tx, actorID, bookID)
		if err != nil {
			return err
		}
		if b.Archived {
			return fmt.Errorf("%w: book %s is archived", ErrInvalidHierarchy, bookID)
		}
		if err := s.checkRecipeRefs(ctx, tx, b.ChefID, in.RecipeIDs); err != nil {
			return err
		}

		b.Title = in.Title
		b.Description = in.Description
		b.Author = in.Author
		b.IsPublic = in.IsPublic
		b.RecipeIDs = in.RecipeIDs
		b.UpdatedAt = s.now()

		if _, err := tx.ExecContext(ctx,
			`UPDATE books SET title = $1, description = $2, author = $3, is_public = $4, updated_at = $5 WHERE id = $6`,
			b.Title, b.Description, b.Author, b.IsPublic, b.UpdatedAt, b.ID,
		); err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM book_recipes WHERE book_id = $1`, b.ID); err != nil {
			return fmt.Errorf("failed to clear book entries: %w", err)
		}
		if err := writeRefs(ctx, tx, "book_recipes", "book_id", b.ID, b.RecipeIDs); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ArchiveBook soft-archives a book. The referenced recipes are untouched.
func (s *Store) ArchiveBook(ctx context.Context, actorID, bookID string) (*Book, error) {
	var archived *Book
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := s.getOwnedBook(ctx, tx, actorID, bookID)
		if err != nil {
			return err
		}
		if !b.Archived {
			b.Archived = true
			b.UpdatedAt = s.now()
			if _, err := tx.ExecContext(ctx,
				`UPDATE books SET archived = $1, updated_at = $2 WHERE id = $3`,
				true, b.UpdatedAt, b.ID,
			); err != nil {
				return fmt.Errorf("failed to archive book: %w", err)
			}
		}
		archived = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// GetBook loads a book with its ordered recipe references
func (s *Store) GetBook(ctx context.Context, bookID string) (*Book, error) {
	return s.getBook(ctx, s.db, bookID)
}

func (s *Store) getOwnedBook(ctx context.Context, q queryer, actorID, bookID string) (*Book, error) {
	b, err := s.getBook(ctx, q, bookID)
	if err != nil {
		return nil, err
	}
	if b.ChefID != actorID {
		return nil, fmt.Errorf("%w: book %s is not owned by %s", ErrOwnershipViolation, bookID, actorID)
	}
	return b, nil
}

func (s *Store) getBook(ctx context.Context, q queryer, bookID string) (*Book, error) {
	var b Book
	err := q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, bookID).Scan(
		&b.ID, &b.ChefID, &b.Title, &b.Slug, &b.Description, &b.Author, &b.IsPublic, &b.Archived,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if b.RecipeIDs, err = readRefs(ctx, q, "book_recipes", "book_id", bookID); err != nil {
		return nil, err
	}
	return &b, nil
}
