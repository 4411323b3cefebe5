// Package storagetest opens migrated SQLite databases for package tests.
package storagetest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/storage"
)

// NewDB returns a migrated SQLite database backed by a file in t.TempDir().
// A file is used instead of :memory: so that concurrent connections share
// one database.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chefhub.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_foreign_keys=1", path)

	db, err := storage.Open(context.Background(), storage.Config{
		Driver:   storage.DriverSQLite,
		DSN:      dsn,
		MaxConns: 8,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.Migrate(context.Background(), db))
	return db
}

// InsertUser creates a user row with the given role and returns its id
func InsertUser(t *testing.T, db *sql.DB, role string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO users (id, email, display_name, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, id+"@example.com", role+"-"+id[:8], role, time.Now().UTC(),
	)
	require.NoError(t, err)
	return id
}

// InsertCourse creates a course row owned by chefID in the given state
// ("draft", "published" or "archived") and returns its id
func InsertCourse(t *testing.T, db *sql.DB, chefID, state string) string {
	t.Helper()

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO courses (id, chef_id, title, slug, price_cents, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, chefID, "Course "+id[:8], "course-"+id, 4900, state, now, now,
	)
	require.NoError(t, err)
	return id
}

// InsertClass creates an active class at the given position and returns its id
func InsertClass(t *testing.T, db *sql.DB, courseID string, position int) string {
	t.Helper()

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO classes (id, course_id, title, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, courseID, "Class "+id[:8], position, now, now,
	)
	require.NoError(t, err)
	return id
}
