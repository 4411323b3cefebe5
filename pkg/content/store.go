package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/chefhub/pkg/storage"
)

const defaultArchiveConcurrency = 4

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store persists the course, class, recipe and book hierarchy. Every write
// re-checks ownership and the containment invariants inside its own
// transaction, independently of any authorization done by the caller.
type Store struct {
	db                 *sql.DB
	archiveConcurrency int
	now                func() time.Time
}

// NewStore creates a new content store
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                 db,
		archiveConcurrency: defaultArchiveConcurrency,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// SetArchiveConcurrency bounds how many classes are archived in parallel
// when a course is archived
func (s *Store) SetArchiveConcurrency(n int) {
	if n > 0 {
		s.archiveConcurrency = n
	}
}

const courseColumns = `id, chef_id, title, slug, description, short_description, price_cents, level,
	duration_hours, state, free_preview, created_at, updated_at, published_at`

// CreateCourse creates a draft course owned by chefID
func (s *Store) CreateCourse(ctx context.Context, chefID string, in CourseInput) (*Course, error) {
	if chefID == "" {
		return nil, validationError("owner is required")
	}
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Course{
		ID:               uuid.New().String(),
		ChefID:           chefID,
		Title:            in.Title,
		Description:      in.Description,
		ShortDescription: in.ShortDescription,
		PriceCents:       in.PriceCents,
		Level:            in.Level,
		DurationHours:    in.DurationHours,
		State:            LifecycleDraft,
		FreePreview:      in.FreePreview,
		ClassIDs:         []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	c.Slug = slugify(c.Title, c.ID)

	query := `
		INSERT INTO courses (id, chef_id, title, slug, description, short_description, price_cents, level,
			duration_hours, state, free_preview, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ChefID, c.Title, c.Slug, c.Description, c.ShortDescription, c.PriceCents,
		string(c.Level), c.DurationHours, string(c.State), c.FreePreview, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	return c, nil
}

// UpdateCourse replaces the mutable fields of a course
func (s *Store) UpdateCourse(ctx context.Context, actorID, courseID string, in CourseInput) (*Course, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *Course
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.lockOwnedCourse(ctx, tx, actorID, courseID)
		if err != nil {
			return err
		}
		if c.State == LifecycleArchived {
			return fmt.Errorf("%w: course %s is archived", ErrInvalidHierarchy, courseID)
		}

		c.Title = in.Title
		c.Description = in.Description
		c.ShortDescription = in.ShortDescription
		c.PriceCents = in.PriceCents
		c.Level = in.Level
		c.DurationHours = in.DurationHours
		c.FreePreview = in.FreePreview
		c.UpdatedAt = s.now()

		query := `
			UPDATE courses
			SET title = $1, description = $2, short_description = $3, price_cents = $4, level = $5,
				duration_hours = $6, free_preview = $7, updated_at = $8
			WHERE id = $9
		`
		if _, err := tx.ExecContext(ctx, query,
			c.Title, c.Description, c.ShortDescription, c.PriceCents, string(c.Level),
			c.DurationHours, c.FreePreview, c.UpdatedAt, c.ID,
		); err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PublishCourse moves a draft course to published. Publishing an already
// published course is a no-op.
func (s *Store) PublishCourse(ctx context.Context, actorID, courseID string) (*Course, error) {
	var published *Course
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.lockOwnedCourse(ctx, tx, actorID, courseID)
		if err != nil {
			return err
		}
		switch c.State {
		case LifecyclePublished:
			published = c
			return nil
		case LifecycleArchived:
			return fmt.Errorf("%w: archived course %s cannot be published", ErrInvalidHierarchy, courseID)
		}

		now := s.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE courses SET state = $1, published_at = $2, updated_at = $3 WHERE id = $4`,
			string(LifecyclePublished), now, now, c.ID,
		); err != nil {
			return fmt.Errorf("failed to publish course: %w", err)
		}
		c.State = LifecyclePublished
		c.PublishedAt = &now
		c.UpdatedAt = now
		published = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

// ArchiveCourse soft-archives a course and then each of its classes. Each
// class is archived in its own transaction; if the cascade is interrupted,
// calling ArchiveCourse again completes it. Referenced recipes are left
// untouched.
func (s *Store) ArchiveCourse(ctx context.Context, actorID, courseID string) (*Course, error) {
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.lockOwnedCourse(ctx, tx, actorID, courseID)
		if err != nil {
			return err
		}
		if c.State == LifecycleArchived {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE courses SET state = $1, updated_at = $2 WHERE id = $3`,
			string(LifecycleArchived), s.now(), c.ID,
		); err != nil {
			return fmt.Errorf("failed to archive course: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pending, err := s.activeClassIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.archiveConcurrency)
	for _, classID := range pending {
		classID := classID
		g.Go(func() error {
			return s.archiveClass(gctx, classID)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to archive classes of course %s: %w", courseID, err)
	}

	return s.GetCourse(ctx, courseID)
}

func (s *Store) archiveClass(ctx context.Context, classID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE classes SET state = $1, updated_at = $2 WHERE id = $3 AND state <> $1`,
		string(ClassArchived), s.now(), classID,
	)
	if err != nil {
		return fmt.Errorf("failed to archive class %s: %w", classID, err)
	}
	return nil
}

func (s *Store) activeClassIDs(ctx context.Context, courseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM classes WHERE course_id = $1 AND state = $2 ORDER BY position`,
		courseID, string(ClassActive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return scanIDs(rows)
}

// GetCourse loads a course with its ordered class ids
func (s *Store) GetCourse(ctx context.Context, courseID string) (*Course, error) {
	return s.getCourse(ctx, s.db, courseID)
}

// ListPublishedCourses returns all published courses, newest first
func (s *Store) ListPublishedCourses(ctx context.Context) ([]*Course, error) {
	return s.listCourses(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE state = $1 ORDER BY published_at DESC, created_at DESC`,
		string(LifecyclePublished),
	)
}

// ListChefCourses returns every course owned by chefID, including drafts
func (s *Store) ListChefCourses(ctx context.Context, chefID string) ([]*Course, error) {
	return s.listCourses(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE chef_id = $1 ORDER BY created_at DESC`,
		chefID,
	)
}

func (s *Store) listCourses(ctx context.Context, query string, args ...interface{}) ([]*Course, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}

	for _, c := range courses {
		if c.ClassIDs, err = s.classIDs(ctx, s.db, c.ID); err != nil {
			return nil, err
		}
	}
	return courses, nil
}

// lockOwnedCourse touches the course row so concurrent writers to the same
// course serialize, then loads it and checks ownership
func (s *Store) lockOwnedCourse(ctx context.Context, tx *sql.Tx, actorID, courseID string) (*Course, error) {
	res, err := tx.ExecContext(ctx, `UPDATE courses SET updated_at = updated_at WHERE id = $1`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock course: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	c, err := s.getCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if c.ChefID != actorID {
		return nil, fmt.Errorf("%w: course %s is not owned by %s", ErrOwnershipViolation, courseID, actorID)
	}
	return c, nil
}

func (s *Store) getCourse(ctx context.Context, q queryer, courseID string) (*Course, error) {
	row := q.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, courseID)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if c.ClassIDs, err = s.classIDs(ctx, q, courseID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) classIDs(ctx context.Context, q queryer, courseID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM classes WHERE course_id = $1 ORDER BY position`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list class ids: %w", err)
	}
	return scanIDs(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCourse(row rowScanner) (*Course, error) {
	var (
		c           Course
		level       string
		state       string
		publishedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.ChefID, &c.Title, &c.Slug, &c.Description, &c.ShortDescription, &c.PriceCents,
		&level, &c.DurationHours, &state, &c.FreePreview, &c.CreatedAt, &c.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Level = Level(level)
	c.State = Lifecycle(state)
	if publishedAt.Valid {
		t := publishedAt.Time
		c.PublishedAt = &t
	}
	return &c, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return ids, nil
}
