package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserLookup struct {
	users map[string]*User
	calls int
	err   error
}

func (m *mockUserLookup) GetUser(ctx context.Context, id string) (*User, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func newTestResolver(t *testing.T, lookup UserLookup) *TokenResolver {
	t.Helper()
	r, err := NewTokenResolver(TokenResolverConfig{
		Secret: "test-secret",
		Issuer: "chefhub-test",
		TTL:    time.Hour,
	}, lookup)
	require.NoError(t, err)
	return r
}

func TestNewTokenResolver_RequiresSecret(t *testing.T) {
	_, err := NewTokenResolver(TokenResolverConfig{}, &mockUserLookup{})
	assert.Error(t, err)
}

func TestTokenResolver_IssueAndResolve(t *testing.T) {
	chef := &User{ID: "chef-1", Role: RoleChef}
	lookup := &mockUserLookup{users: map[string]*User{chef.ID: chef}}
	r := newTestResolver(t, lookup)

	token, err := r.Issue(chef)
	require.NoError(t, err)

	actor, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: "chef-1", Role: RoleChef}, actor)

	t.Run("second resolve is served from cache", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, 1, lookup.calls)
	})
}

func TestTokenResolver_CachedActorExpiresWithToken(t *testing.T) {
	chef := &User{ID: "chef-1", Role: RoleChef}
	lookup := &mockUserLookup{users: map[string]*User{chef.ID: chef}}
	r, err := NewTokenResolver(TokenResolverConfig{
		Secret:   "test-secret",
		TTL:      time.Minute,
		CacheTTL: time.Hour,
	}, lookup)
	require.NoError(t, err)

	now := time.Now()
	r.now = func() time.Time { return now }

	token, err := r.Issue(chef)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), token)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.calls)

	now = now.Add(time.Minute)
	actor, err := r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.True(t, actor.IsAnonymous())
	assert.Equal(t, 1, lookup.calls, "an expired token is rejected without a lookup")

	_, err = r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "the stale entry is gone and the token fails parsing")
}

func TestTokenResolver_RoleComesFromUserRecord(t *testing.T) {
	student := &User{ID: "s-1", Role: RoleStudent}
	lookup := &mockUserLookup{users: map[string]*User{student.ID: student}}
	r := newTestResolver(t, lookup)

	// Token claims chef, record says student
	token, err := r.Issue(&User{ID: "s-1", Role: RoleChef})
	require.NoError(t, err)

	actor, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, actor.Role)
}

func TestTokenResolver_Rejects(t *testing.T) {
	user := &User{ID: "u-1", Role: RoleStudent}
	lookup := &mockUserLookup{users: map[string]*User{user.ID: user}}
	r := newTestResolver(t, lookup)

	t.Run("empty token", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenResolver(TokenResolverConfig{Secret: "other", Issuer: "chefhub-test"}, lookup)
		require.NoError(t, err)
		token, err := other.Issue(user)
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		past := newTestResolver(t, lookup)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.Issue(user)
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := SessionClaims{
			Role: RoleStudent,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.ID,
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("unknown subject", func(t *testing.T) {
		token, err := r.Issue(&User{ID: "ghost", Role: RoleStudent})
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestTokenResolver_LookupFailureIsNotUnauthenticated(t *testing.T) {
	lookup := &mockUserLookup{err: errors.New("db down")}
	r := newTestResolver(t, lookup)

	token, err := r.Issue(&User{ID: "u-1", Role: RoleStudent})
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthenticated))
}
