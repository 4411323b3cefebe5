package content

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/chefhub/pkg/storage"
)

const classColumns = `id, course_id, title, description, notes, video_url, duration_minutes, position,
	state, free_preview, created_at, updated_at`

// CreateClass appends a class to the end of a course's class sequence
func (s *Store) CreateClass(ctx context.Context, actorID, courseID string, in ClassInput) (*Class, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created *Class
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		course, err := s.lockOwnedCourse(ctx, tx, actorID, courseID)
		if err != nil {
			return err
		}
		if course.State == LifecycleArchived {
			return fmt.Errorf("%w: course %s is archived", ErrInvalidHierarchy, courseID)
		}
		if err := s.checkRecipeRefs(ctx, tx, course.ChefID, in.RecipeIDs); err != nil {
			return err
		}

		var position int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM classes WHERE course_id = $1`, courseID,
		).Scan(&position); err != nil {
			return fmt.Errorf("failed to compute class position: %w", err)
		}

		now := s.now()
		cl := &Class{
			ID:              uuid.New().String(),
			CourseID:        courseID,
			Title:           in.Title,
			Description:     in.Description,
			Notes:           in.Notes,
			VideoURL:        in.VideoURL,
			DurationMinutes: in.DurationMinutes,
			Position:        position,
			State:           ClassActive,
			FreePreview:     in.FreePreview,
			RecipeIDs:       in.RecipeIDs,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		query := `
			INSERT INTO classes (id, course_id, title, description, notes, video_url, duration_minutes, position,
				state, free_preview, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		if _, err := tx.ExecContext(ctx, query,
			cl.ID, cl.CourseID, cl.Title, cl.Description, cl.Notes, cl.VideoURL, cl.DurationMinutes,
			cl.Position, string(cl.State), cl.FreePreview, cl.CreatedAt, cl.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create class: %w", err)
		}
		if err := writeRefs(ctx, tx, "class_recipes", "class_id", cl.ID, cl.RecipeIDs); err != nil {
			return err
		}
		if err := s.verifyCourse(ctx, tx, courseID); err != nil {
			return err
		}
		created = cl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateClass replaces the mutable fields of a class. The parent course
// never changes.
func (s *Store) UpdateClass(ctx context.Context, actorID, classID string, in ClassInput) (*Class, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *Class
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		cl, err := s.getClass(ctx, tx, classID)
		if err != nil {
			return err
		}
		course, err := s.lockOwnedCourse(ctx, tx, actorID, cl.CourseID)
		if err != nil {
			return err
		}
		if course.State == LifecycleArchived || cl.State == ClassArchived {
			return fmt.Errorf("%w: class %s is archived", ErrInvalidHierarchy, classID)
		}
		if err := s.checkRecipeRefs(ctx, tx, course.ChefID, in.RecipeIDs); err != nil {
			return err
		}

		cl.Title = in.Title
		cl.Description = in.Description
		cl.Notes = in.Notes
		cl.VideoURL = in.VideoURL
		cl.DurationMinutes = in.DurationMinutes
		cl.FreePreview = in.FreePreview
		cl.RecipeIDs = in.RecipeIDs
		cl.UpdatedAt = s.now()

		query := `
			UPDATE classes
			SET title = $1, description = $2, notes = $3, video_url = $4, duration_minutes = $5,
				free_preview = $6, updated_at = $7
			WHERE id = $8
		`
		if _, err := tx.ExecContext(ctx, query,
			cl.Title, cl.Description, cl.Notes, cl.VideoURL, cl.DurationMinutes,
			cl.FreePreview, cl.UpdatedAt, cl.ID,
		); err != nil {
			return fmt.Errorf("failed to update class: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_recipes WHERE class_id = $1`, cl.ID); err != nil {
			return fmt.Errorf("failed to clear class recipes: %w", err)
		}
		if err := writeRefs(ctx, tx, "class_recipes", "class_id", cl.ID, cl.RecipeIDs); err != nil {
			return err
		}
		if err := s.verifyCourse(ctx, tx, cl.CourseID); err != nil {
			return err
		}
		updated = cl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReorderClasses replaces the class sequence of a course. order must be a
// permutation of the course's current classes.
func (s *Store) ReorderClasses(ctx context.Context, actorID, courseID string, order []string) (*Course, error) {
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		course, err := s.lockOwnedCourse(ctx, tx, actorID, courseID)
		if err != nil {
			return err
		}
		if course.State == LifecycleArchived {
			return fmt.Errorf("%w: course %s is archived", ErrInvalidHierarchy, courseID)
		}
		if !isPermutation(course.ClassIDs, order) {
			return fmt.Errorf("%w: order must list each class of course %s exactly once", ErrInvalidHierarchy, courseID)
		}

		// Two passes so the (course_id, position) unique index never sees a
		// transient duplicate.
		now := s.now()
		for i, id := range order {
			if _, err := tx.ExecContext(ctx,
				`UPDATE classes SET position = $1 WHERE id = $2`, -(i + 1), id,
			); err != nil {
				return fmt.Errorf("failed to reorder class %s: %w", id, err)
			}
		}
		for i, id := range order {
			if _, err := tx.ExecContext(ctx,
				`UPDATE classes SET position = $1, updated_at = $2 WHERE id = $3`, i, now, id,
			); err != nil {
				return fmt.Errorf("failed to reorder class %s: %w", id, err)
			}
		}
		return s.verifyCourse(ctx, tx, courseID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCourse(ctx, courseID)
}

// ArchiveClass soft-archives a single class. It keeps its position and its
// recipe references; the recipes themselves are untouched. Archiving an
// archived class returns it unchanged.
func (s *Store) ArchiveClass(ctx context.Context, actorID, classID string) (*Class, error) {
	var archived *Class
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		cl, err := s.getClass(ctx, tx, classID)
		if err != nil {
			return err
		}
		if _, err := s.lockOwnedCourse(ctx, tx, actorID, cl.CourseID); err != nil {
			return err
		}

		now := s.now()
		res, err := tx.ExecContext(ctx,
			`UPDATE classes SET state = $1, updated_at = $2 WHERE id = $3 AND state <> $1`,
			string(ClassArchived), now, cl.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to archive class %s: %w", classID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			cl.State = ClassArchived
			cl.UpdatedAt = now
		}
		if err := s.verifyCourse(ctx, tx, cl.CourseID); err != nil {
			return err
		}
		archived = cl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// GetClass loads a class with its ordered recipe references
func (s *Store) GetClass(ctx context.Context, classID string) (*Class, error) {
	return s.getClass(ctx, s.db, classID)
}

// ListCourseClasses returns the classes of a course in sequence order
func (s *Store) ListCourseClasses(ctx context.Context, courseID string) ([]*Class, error) {
	return s.listClasses(ctx,
		`SELECT `+classColumns+` FROM classes WHERE course_id = $1 ORDER BY position`,
		courseID,
	)
}

// ClassesUsingRecipe returns every class whose content references the recipe
func (s *Store) ClassesUsingRecipe(ctx context.Context, recipeID string) ([]*Class, error) {
	return s.listClasses(ctx, `
		SELECT c.id, c.course_id, c.title, c.description, c.notes, c.video_url, c.duration_minutes,
			c.position, c.state, c.free_preview, c.created_at, c.updated_at
		FROM classes c
		JOIN class_recipes cr ON cr.class_id = c.id
		WHERE cr.recipe_id = $1
		ORDER BY c.course_id, c.position
	`, recipeID)
}

func (s *Store) listClasses(ctx context.Context, query string, args ...interface{}) ([]*Class, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	classes := []*Class{}
	for rows.Next() {
		cl, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, cl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate classes: %w", err)
	}
	rows.Close()

	for _, cl := range classes {
		if cl.RecipeIDs, err = readRefs(ctx, s.db, "class_recipes", "class_id", cl.ID); err != nil {
			return nil, err
		}
	}
	return classes, nil
}

func (s *Store) getClass(ctx context.Context, q queryer, classID string) (*Class, error) {
	row := q.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, classID)
	cl, err := scanClass(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("class %s: %w", classID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	if cl.RecipeIDs, err = readRefs(ctx, q, "class_recipes", "class_id", classID); err != nil {
		return nil, err
	}
	return cl, nil
}

// verifyCourse checks that every class of the course hangs off a course
// owned by one chef and that positions form the sequence 0..n-1
func (s *Store) verifyCourse(ctx context.Context, q queryer, courseID string) error {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.position, co.chef_id
		FROM classes c
		JOIN courses co ON co.id = c.course_id
		WHERE c.course_id = $1
		ORDER BY c.position
	`, courseID)
	if err != nil {
		return fmt.Errorf("failed to verify course: %w", err)
	}
	defer rows.Close()

	expected := 0
	owner := ""
	for rows.Next() {
		var (
			id, chefID string
			position   int
		)
		if err := rows.Scan(&id, &position, &chefID); err != nil {
			return fmt.Errorf("failed to scan class: %w", err)
		}
		if position != expected {
			return fmt.Errorf("%w: class %s at position %d, expected %d", ErrInvalidHierarchy, id, position, expected)
		}
		if owner != "" && owner != chefID {
			return fmt.Errorf("%w: class %s belongs to a different chef", ErrInvalidHierarchy, id)
		}
		owner = chefID
		expected++
	}
	return rows.Err()
}

// checkRecipeRefs rejects references to missing, archived, or foreign recipes
func (s *Store) checkRecipeRefs(ctx context.Context, q queryer, chefID string, recipeIDs []string) error {
	for _, id := range recipeIDs {
		var (
			owner    string
			archived bool
		)
		err := q.QueryRowContext(ctx, `SELECT chef_id, archived FROM recipes WHERE id = $1`, id).Scan(&owner, &archived)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: recipe %s does not exist", ErrInvalidHierarchy, id)
		}
		if err != nil {
			return fmt.Errorf("failed to check recipe %s: %w", id, err)
		}
		if owner != chefID {
			return fmt.Errorf("%w: recipe %s belongs to another chef", ErrInvalidHierarchy, id)
		}
		if archived {
			return fmt.Errorf("%w: recipe %s is archived", ErrInvalidHierarchy, id)
		}
	}
	return nil
}

func writeRefs(ctx context.Context, tx *sql.Tx, table, ownerColumn, ownerID string, recipeIDs []string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, recipe_id, position) VALUES ($1, $2, $3)`, table, ownerColumn)
	for i, recipeID := range recipeIDs {
		if _, err := tx.ExecContext(ctx, query, ownerID, recipeID, i); err != nil {
			return fmt.Errorf("failed to write recipe reference %s: %w", recipeID, err)
		}
	}
	return nil
}

func readRefs(ctx context.Context, q queryer, table, ownerColumn, ownerID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT recipe_id FROM %s WHERE %s = $1 ORDER BY position`, table, ownerColumn)
	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe references: %w", err)
	}
	return scanIDs(rows)
}

func scanClass(row rowScanner) (*Class, error) {
	var (
		cl    Class
		state string
	)
	err := row.Scan(
		&cl.ID, &cl.CourseID, &cl.Title, &cl.Description, &cl.Notes, &cl.VideoURL, &cl.DurationMinutes,
		&cl.Position, &state, &cl.FreePreview, &cl.CreatedAt, &cl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cl.State = ClassState(state)
	return &cl, nil
}

func isPermutation(current, order []string) bool {
	if len(current) != len(order) {
		return false
	}
	seen := make(map[string]int, len(current))
	for _, id := range current {
		seen[id]++
	}
	for _, id := range order {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
