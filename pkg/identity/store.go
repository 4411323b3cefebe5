package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists users
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a new user. ID and CreatedAt are assigned when empty.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, email, display_name, bio, role, external_issuer, external_subject, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.DisplayName, u.Bio, string(u.Role),
		nullString(u.ExternalIssuer), nullString(u.ExternalSubject), u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser loads a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, display_name, bio, role, external_issuer, external_subject, created_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByExternalSubject loads the user linked to an identity provider subject
func (s *Store) GetUserByExternalSubject(ctx context.Context, issuer, subject string) (*User, error) {
	query := `
		SELECT id, email, display_name, bio, role, external_issuer, external_subject, created_at
		FROM users
		WHERE external_issuer = $1 AND external_subject = $2
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, issuer, subject))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var (
		u               User
		role            string
		issuer, subject sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Bio, &role, &issuer, &subject, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = Role(role)
	u.ExternalIssuer = issuer.String
	u.ExternalSubject = subject.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
