// Package service implements the authentication domain: credential login,
// registration into the resolved tenant, refresh-token rotation and logout.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/persistence"
	"github.com/klola/core-platform/platform/go/tenant"
	"github.com/klola/core-platform/platform/go/token"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// UserRegistry is the global login registry the service authenticates
// against. Satisfied by persistence.UserStore.
type UserRegistry interface {
	GetByEmail(ctx context.Context, email string) (persistence.UserRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (persistence.UserRecord, error)
	Create(ctx context.Context, rec persistence.UserRecord) (persistence.UserRecord, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// User is the domain view of an account, safe to serialize (no hash).
type User struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login"`
}

// Session is the token pair handed to a client on login or refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginInput carries the credential payload.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput carries the signup payload. The tenant comes from the
// request context, never from the body.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Service defines the authentication operations.
type Service interface {
	Login(ctx context.Context, input LoginInput) (Session, error)
	Register(ctx context.Context, input RegisterInput) (User, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	CurrentUser(ctx context.Context) (User, error)
}

type service struct {
	users  UserRegistry
	tokens *token.Service
}

// New constructs the auth Service.
func New(users UserRegistry, tokens *token.Service) Service {
	if users == nil {
		panic("auth service requires a user registry")
	}
	if tokens == nil {
		panic("auth service requires a token service")
	}
	return &service{users: users, tokens: tokens}
}

func (s *service) Login(ctx context.Context, input LoginInput) (Session, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return Session{}, apperror.New(apperror.Validation, "Email and password are required")
	}
	if !emailPattern.MatchString(email) {
		return Session{}, apperror.New(apperror.Validation, "Invalid email format")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return Session{}, apperror.New(apperror.Authentication, "Invalid email or password")
		}
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return Session{}, apperror.New(apperror.Authentication, "Invalid email or password")
	}
	if user.Status != "active" {
		return Session{}, apperror.New(apperror.Authentication, "User account is not active")
	}

	pair, err := s.tokens.Issue(ctx, user.ID, user.TenantID)
	if err != nil {
		return Session{}, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return Session{}, err
	}

	return sessionFromPair(pair), nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	fullName := strings.TrimSpace(input.FullName)

	if email == "" || input.Password == "" || fullName == "" {
		return User{}, apperror.New(apperror.Validation, "All fields are required")
	}
	if !emailPattern.MatchString(email) {
		return User{}, apperror.New(apperror.Validation, "Invalid email format")
	}
	if len(input.Password) < minPasswordLength {
		return User{}, apperror.New(apperror.Validation, "Password must be at least 8 characters")
	}

	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return User{}, apperror.New(apperror.Tenant, "Tenant not found")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return User{}, apperror.New(apperror.Validation, "Email is already registered")
	} else if !errors.Is(err, persistence.ErrUserNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apperror.Wrap(apperror.Internal, "Failed to hash password", err)
	}

	created, err := s.users.Create(ctx, persistence.UserRecord{
		ID:           uuid.New(),
		TenantID:     tc.TenantID,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Status:       "active",
	})
	if err != nil {
		return User{}, err
	}

	return toUser(created), nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, apperror.New(apperror.Validation, "Refresh token is required")
	}

	pair, err := s.tokens.RotateRefresh(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	return sessionFromPair(pair), nil
}

func (s *service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.tokens.RevokeAccess(ctx, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		return s.tokens.RevokeRefresh(ctx, refreshToken)
	}
	return nil
}

func (s *service) CurrentUser(ctx context.Context) (User, error) {
	identity, ok := token.IdentityFromContext(ctx)
	if !ok {
		return User{}, apperror.New(apperror.Authentication, "Authentication required")
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return User{}, apperror.New(apperror.NotFound, "User not found")
		}
		return User{}, err
	}
	return toUser(user), nil
}

func sessionFromPair(pair token.Pair) Session {
	return Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	}
}

func toUser(rec persistence.UserRecord) User {
	return User{
		ID:        rec.ID,
		TenantID:  rec.TenantID,
		Email:     rec.Email,
		FullName:  rec.FullName,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		LastLogin: rec.LastLogin,
	}
}
