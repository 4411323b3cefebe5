package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role is the immutable role a user is created with
type Role string

const (
	RoleChef    Role = "chef"    // Authors and owns content
	RoleStudent Role = "student" // Browses and purchases courses
)

var (
	// ErrUnauthenticated is returned when credentials are missing or invalid
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound is returned when no user matches a lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRole is returned for roles other than chef or student
	ErrInvalidRole = errors.New("invalid role")
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleChef || r == RoleStudent
}

// ParseRole converts a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// User is a registered account
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	Role            Role      `json:"role"`
	ExternalIssuer  string    `json:"-"`
	ExternalSubject string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// Actor is the caller an authorization decision is made for. The zero
// value is the anonymous actor.
type Actor struct {
	UserID string `json:"user_id,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

// Anonymous returns the actor used for requests without credentials
func Anonymous() Actor {
	return Actor{}
}

// ActorFor returns the actor for a registered user
func ActorFor(u *User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// IsAnonymous reports whether the actor carries no identity
func (a Actor) IsAnonymous() bool {
	return a.UserID == ""
}

// IsChef reports whether the actor is an authenticated chef
func (a Actor) IsChef() bool {
	return !a.IsAnonymous() && a.Role == RoleChef
}

// IsStudent reports whether the actor is an authenticated student
func (a Actor) IsStudent() bool {
	return !a.IsAnonymous() && a.Role == RoleStudent
}

// Resolver turns a bearer credential into an Actor
type Resolver interface {
	Resolve(ctx context.Context, token string) (Actor, error)
}

// UserLookup loads users by primary key
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

// SubjectLookup loads users by the identity provider subject they were
// linked to
type SubjectLookup interface {
	GetUserByExternalSubject(ctx context.Context, issuer, subject string) (*User, error)
}
