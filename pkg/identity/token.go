package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultTokenTTL       = 24 * time.Hour
	defaultActorCacheSize = 4096
	defaultActorCacheTTL  = time.Minute
)

// SessionClaims are the claims carried by session tokens
type SessionClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenResolver issues and validates HS256 session tokens. Resolved actors
// are cached briefly by token digest; the role is always read from the
// user record, never trusted from the token alone.
type TokenResolver struct {
	secret []byte
	issuer string
	ttl    time.Duration
	users  UserLookup
	cache  *lru.LRU[string, cachedActor]
	now    func() time.Time
}

// cachedActor remembers when the token it was resolved from expires so a
// cache hit never outlives the token
type cachedActor struct {
	actor     Actor
	expiresAt time.Time
}

// TokenResolverConfig configures a TokenResolver
type TokenResolverConfig struct {
	Secret    string
	Issuer    string
	TTL       time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// NewTokenResolver creates a new session token resolver
func NewTokenResolver(cfg TokenResolverConfig, users UserLookup) (*TokenResolver, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultActorCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultActorCacheTTL
	}
	return &TokenResolver{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		users:  users,
		cache:  lru.NewLRU[string, cachedActor](cfg.CacheSize, nil, cfg.CacheTTL),
		now:    time.Now,
	}, nil
}

// Issue signs a session token for the user
func (r *TokenResolver) Issue(u *User) (string, error) {
	now := r.now()
	claims := SessionClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve validates the token and returns the actor it identifies
func (r *TokenResolver) Resolve(ctx context.Context, token string) (Actor, error) {
	if token == "" {
		return Anonymous(), ErrUnauthenticated
	}
	digest := tokenDigest(token)
	if cached, ok := r.cache.Get(digest); ok {
		if r.now().Before(cached.expiresAt) {
			return cached.actor, nil
		}
		r.cache.Remove(digest)
		return Anonymous(), fmt.Errorf("%w: token has expired", ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Anonymous(), fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return Anonymous(), fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	user, err := r.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return Anonymous(), fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
	}
	if err != nil {
		return Anonymous(), err
	}

	actor := ActorFor(user)
	r.cache.Add(digest, cachedActor{actor: actor, expiresAt: claims.ExpiresAt.Time})
	return actor, nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
