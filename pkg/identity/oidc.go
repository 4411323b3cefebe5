package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCResolver accepts ID tokens from an external identity provider and maps
// the (issuer, subject) pair onto a registered user.
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
	users    SubjectLookup
}

// NewOIDCResolver discovers the provider at issuerURL and returns a resolver
// that verifies tokens issued for clientID
func NewOIDCResolver(ctx context.Context, issuerURL, clientID string, users SubjectLookup) (*OIDCResolver, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return NewOIDCResolverWithVerifier(verifier, users), nil
}

// NewOIDCResolverWithVerifier builds a resolver around an existing verifier
func NewOIDCResolverWithVerifier(verifier *oidc.IDTokenVerifier, users SubjectLookup) *OIDCResolver {
	return &OIDCResolver{verifier: verifier, users: users}
}

// Resolve verifies the raw ID token and returns the linked user's actor
func (r *OIDCResolver) Resolve(ctx context.Context, rawIDToken string) (Actor, error) {
	if rawIDToken == "" {
		return Anonymous(), ErrUnauthenticated
	}
	idToken, err := r.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Anonymous(), fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	user, err := r.users.GetUserByExternalSubject(ctx, idToken.Issuer, idToken.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return Anonymous(), fmt.Errorf("%w: subject %s is not linked to a user", ErrUnauthenticated, idToken.Subject)
	}
	if err != nil {
		return Anonymous(), err
	}
	return ActorFor(user), nil
}

// ChainResolver tries each resolver in order and returns the first actor
// resolved. Only ErrUnauthenticated moves on to the next resolver.
type ChainResolver []Resolver

// Resolve implements Resolver
func (c ChainResolver) Resolve(ctx context.Context, token string) (Actor, error) {
	lastErr := ErrUnauthenticated
	for _, r := range c {
		actor, err := r.Resolve(ctx, token)
		if err == nil {
			return actor, nil
		}
		if !errors.Is(err, ErrUnauthenticated) {
			return Anonymous(), err
		}
		lastErr = err
	}
	return Anonymous(), lastErr
}
