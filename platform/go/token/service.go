package token

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/tokenstore"
)

const (
	// RefreshTokenTTL is fixed at 30 days; only the access window is
	// deployment-configurable.
	RefreshTokenTTL = 30 * 24 * time.Hour

	defaultAccessTTL = time.Hour

	refreshKeyPrefix   = "refresh_token:"
	blacklistKeyPrefix = "token:blacklist:"
)

// Service issues, verifies and rotates HS256-signed token pairs. Refresh
// tokens are stateful: validity additionally requires a live store entry
// keyed by the token's own string.
type Service struct {
	store     tokenstore.Store
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAccessTTL overrides the access token validity window.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithNowFunc overrides the clock, primarily for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs the token service.
func NewService(store tokenstore.Store, secret []byte, options ...Option) *Service {
	if store == nil {
		panic("token service requires a store")
	}
	if len(secret) == 0 {
		panic("token service requires a signing secret")
	}

	s := &Service{
		store:     store,
		secret:    secret,
		accessTTL: defaultAccessTTL,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Issue mints an access/refresh pair for the user and records the refresh
// token in the store with a TTL equal to its validity window.
func (s *Service) Issue(ctx context.Context, userID, tenantID uuid.UUID) (Pair, error) {
	now := s.now()

	accessToken, err := s.sign(userID, tenantID, now, s.accessTTL)
	if err != nil {
		return Pair{}, apperror.Wrap(apperror.Internal, "Token generation error", err)
	}

	refreshToken, err := s.sign(userID, tenantID, now, RefreshTokenTTL)
	if err != nil {
		return Pair{}, apperror.Wrap(apperror.Internal, "Token generation error", err)
	}

	if err := s.store.Set(ctx, refreshKey(refreshToken), userID.String(), RefreshTokenTTL); err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess validates the token's signature and expiry, rejects
// blacklisted token strings, and returns the embedded identity.
func (s *Service) VerifyAccess(ctx context.Context, raw string) (Identity, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return Identity{}, apperror.Wrap(apperror.Authentication, "Invalid token", err)
	}

	_, blacklisted, err := s.store.Get(ctx, blacklistKey(raw))
	if err != nil {
		return Identity{}, err
	}
	if blacklisted {
		return Identity{}, apperror.New(apperror.Authentication, "Token is blacklisted")
	}

	return identityFromClaims(claims)
}

// RotateRefresh exchanges a live refresh token for a new pair. The old token
// is claimed atomically from the store before the new pair is issued, so a
// refresh token can be used at most once and there is never a window with
// two live tokens on the same chain.
func (s *Service) RotateRefresh(ctx context.Context, raw string) (Pair, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return Pair{}, apperror.Wrap(apperror.Authentication, "Invalid refresh token", err)
	}

	storedUserID, live, err := s.store.GetDel(ctx, refreshKey(raw))
	if err != nil {
		return Pair{}, err
	}
	if !live {
		return Pair{}, apperror.New(apperror.Authentication, "Invalid refresh token")
	}

	identity, err := identityFromClaims(claims)
	if err != nil {
		return Pair{}, err
	}
	if storedUserID != identity.UserID.String() {
		return Pair{}, apperror.New(apperror.Authentication, "Invalid refresh token")
	}

	return s.Issue(ctx, identity.UserID, identity.TenantID)
}

// RevokeAccess blacklists the access token string for its remaining
// validity, so the blacklist stays bounded by the access TTL.
func (s *Service) RevokeAccess(ctx context.Context, raw string) error {
	claims, err := s.parse(raw)
	if err != nil {
		// Expired or malformed tokens are already unusable.
		return nil
	}

	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return nil
	}

	return s.store.Set(ctx, blacklistKey(raw), "revoked", remaining)
}

// RevokeRefresh invalidates a refresh token chain (logout).
func (s *Service) RevokeRefresh(ctx context.Context, raw string) error {
	return s.store.Del(ctx, refreshKey(raw))
}

func (s *Service) sign(userID, tenantID uuid.UUID, now time.Time, ttl time.Duration) (string, error) {
	// The jti keeps tokens minted in the same second distinct, so a
	// rotated refresh token never collides with the one it replaces.
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func identityFromClaims(claims *Claims) (Identity, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, apperror.Wrap(apperror.Authentication, "Invalid user ID in token", err)
	}
	if claims.TenantID == uuid.Nil {
		return Identity{}, apperror.New(apperror.Authentication, "Missing tenant in token")
	}
	return Identity{UserID: userID, TenantID: claims.TenantID}, nil
}

func refreshKey(token string) string   { return refreshKeyPrefix + token }
func blacklistKey(token string) string { return blacklistKeyPrefix + token }

// BearerToken extracts the token from an Authorization header value,
// matching the "Bearer " prefix case-insensitively.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return "", false
	}
	return raw, true
}
