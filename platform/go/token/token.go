// Package token implements the platform's JWT lifecycle: issuing access and
// refresh token pairs, verifying access tokens against the revocation
// blacklist, and rotating refresh tokens through the token store.
package token

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the signed payload shared by access and refresh tokens. The two
// kinds differ only in expiry policy and in whether the store holds a live
// entry for them.
type Claims struct {
	TenantID uuid.UUID `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Identity is the authenticated principal derived from a verified access
// token. Immutable for the request lifetime, never persisted.
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
}

// Pair is the result of issuing or rotating tokens. ExpiresIn is the access
// token validity window in seconds.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type identityKey struct{}

// WithIdentity returns a derived context carrying the verified identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext extracts the verified identity, if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
