package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL UNIQUE,
					display_name TEXT NOT NULL DEFAULT '',
					bio TEXT NOT NULL DEFAULT '',
					role TEXT NOT NULL CHECK (role IN ('chef', 'student')),
					external_issuer TEXT,
					external_subject TEXT,
					created_at TIMESTAMP NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_external_subject ON users(external_issuer, external_subject);
			`,
		},
		{
			Version:     2,
			Description: "Create content hierarchy tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS courses (
					id TEXT PRIMARY KEY,
					chef_id TEXT NOT NULL REFERENCES users(id),
					title TEXT NOT NULL,
					slug TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					short_description TEXT NOT NULL DEFAULT '',
					price_cents BIGINT NOT NULL DEFAULT 0 CHECK (price_cents >= 0),
					level TEXT NOT NULL DEFAULT 'beginner',
					duration_hours INTEGER NOT NULL DEFAULT 0,
					state TEXT NOT NULL DEFAULT 'draft' CHECK (state IN ('draft', 'published', 'archived')),
					free_preview BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL,
					published_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_courses_chef_id ON courses(chef_id);
				CREATE INDEX IF NOT EXISTS idx_courses_state ON courses(state);

				CREATE TABLE IF NOT EXISTS classes (
					id TEXT PRIMARY KEY,
					course_id TEXT NOT NULL REFERENCES courses(id),
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					notes TEXT NOT NULL DEFAULT '',
					video_url TEXT NOT NULL DEFAULT '',
					duration_minutes INTEGER NOT NULL DEFAULT 0,
					position INTEGER NOT NULL,
					state TEXT NOT NULL DEFAULT 'active' CHECK (state IN ('active', 'archived')),
					free_preview BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_classes_course_position ON classes(course_id, position);

				CREATE TABLE IF NOT EXISTS recipes (
					id TEXT PRIMARY KEY,
					chef_id TEXT NOT NULL REFERENCES users(id),
					title TEXT NOT NULL,
					slug TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					ingredients TEXT NOT NULL DEFAULT '',
					instructions TEXT NOT NULL DEFAULT '',
					prep_minutes INTEGER NOT NULL DEFAULT 0,
					cook_minutes INTEGER NOT NULL DEFAULT 0,
					servings INTEGER NOT NULL DEFAULT 1,
					difficulty TEXT NOT NULL DEFAULT 'easy',
					is_public BOOLEAN NOT NULL DEFAULT FALSE,
					archived BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_recipes_chef_id ON recipes(chef_id);

				CREATE TABLE IF NOT EXISTS books (
					id TEXT PRIMARY KEY,
					chef_id TEXT NOT NULL REFERENCES users(id),
					title TEXT NOT NULL,
					slug TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					author TEXT NOT NULL DEFAULT '',
					is_public BOOLEAN NOT NULL DEFAULT FALSE,
					archived BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_books_chef_id ON books(chef_id);

				CREATE TABLE IF NOT EXISTS class_recipes (
					class_id TEXT NOT NULL REFERENCES classes(id),
					recipe_id TEXT NOT NULL REFERENCES recipes(id),
					position INTEGER NOT NULL,
					PRIMARY KEY (class_id, recipe_id)
				);

				CREATE INDEX IF NOT EXISTS idx_class_recipes_recipe_id ON class_recipes(recipe_id);

				CREATE TABLE IF NOT EXISTS book_recipes (
					book_id TEXT NOT NULL REFERENCES books(id),
					recipe_id TEXT NOT NULL REFERENCES recipes(id),
					position INTEGER NOT NULL,
					PRIMARY KEY (book_id, recipe_id)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create enrollment ledger tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS enrollments (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id),
					course_id TEXT NOT NULL REFERENCES courses(id),
					state TEXT NOT NULL CHECK (state IN ('pending', 'active', 'failed', 'revoked')),
					idempotency_key TEXT NOT NULL,
					amount_cents BIGINT NOT NULL DEFAULT 0,
					confirmation_ref TEXT NOT NULL DEFAULT '',
					reason TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL,
					last_transition_at TIMESTAMP NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_idempotency_key ON enrollments(idempotency_key);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_one_active ON enrollments(user_id, course_id) WHERE state = 'active';
				CREATE INDEX IF NOT EXISTS idx_enrollments_user_course_state ON enrollments(user_id, course_id, state);
				CREATE INDEX IF NOT EXISTS idx_enrollments_state_created ON enrollments(state, created_at);

				CREATE TABLE IF NOT EXISTS enrollment_events (
					id TEXT PRIMARY KEY,
					enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
					sequence INTEGER NOT NULL,
					from_state TEXT NOT NULL DEFAULT '',
					to_state TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					occurred_at TIMESTAMP NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollment_events_sequence ON enrollment_events(enrollment_id, sequence);
			`,
		},
		{
			Version:     4,
			Description: "Create class progress table",
			SQL: `
				CREATE TABLE IF NOT EXISTS class_progress (
					user_id TEXT NOT NULL REFERENCES users(id),
					class_id TEXT NOT NULL REFERENCES classes(id),
					completed_at TIMESTAMP NOT NULL,
					PRIMARY KEY (user_id, class_id)
				);
			`,
		},
		{
			Version:     5,
			Description: "Create access audit table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id TEXT PRIMARY KEY,
					occurred_at TIMESTAMP NOT NULL,
					event_type TEXT NOT NULL,
					status TEXT NOT NULL,
					actor_id TEXT NOT NULL DEFAULT '',
					actor_role TEXT NOT NULL DEFAULT '',
					resource_type TEXT NOT NULL DEFAULT '',
					resource_id TEXT NOT NULL DEFAULT '',
					operation TEXT NOT NULL DEFAULT '',
					reason TEXT NOT NULL DEFAULT '',
					request_id TEXT NOT NULL DEFAULT '',
					metadata TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at ON audit_events(occurred_at);
				CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor_id, occurred_at);
				CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource_type, resource_id);
			`,
		},
	}
}

// Migrate executes all pending migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version, migration.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
