// Package service implements the per-tenant users domain.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klola/core-platform/domains/users/be/repo"
	"github.com/klola/core-platform/platform/go/apperror"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validStatuses mirrors the user lifecycle states.
var validStatuses = map[string]struct{}{
	"active":    {},
	"inactive":  {},
	"suspended": {},
}

// User is the domain view of a tenant member.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login"`
}

// CreateInput is the payload to add a member to the tenant.
type CreateInput struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// UpdateInput carries the mutable fields; nil means unchanged.
type UpdateInput struct {
	FullName *string `json:"full_name"`
	Status   *string `json:"status"`
}

// Service defines the business operations for the users domain.
type Service interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, input CreateInput) (User, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo repo.Repository
}

// New constructs a users Service backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("users repository is required")
	}
	return &service{repo: r}
}

func (s *service) List(ctx context.Context) ([]User, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, mapProfile(p))
	}
	return users, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return User{}, apperror.New(apperror.NotFound, "User not found")
		}
		return User{}, err
	}
	return mapProfile(p), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	fullName := strings.TrimSpace(input.FullName)

	if email == "" || fullName == "" {
		return User{}, apperror.New(apperror.Validation, "All fields are required")
	}
	if !emailPattern.MatchString(email) {
		return User{}, apperror.New(apperror.Validation, "Invalid email format")
	}

	p, err := s.repo.Create(ctx, repo.CreateParams{
		ID:       uuid.New(),
		Email:    email,
		FullName: fullName,
		Status:   "active",
	})
	if err != nil {
		return User{}, err
	}
	return mapProfile(p), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (User, error) {
	if input.FullName == nil && input.Status == nil {
		return User{}, apperror.New(apperror.Validation, "No fields to update")
	}
	if input.FullName != nil && strings.TrimSpace(*input.FullName) == "" {
		return User{}, apperror.New(apperror.Validation, "Full name cannot be empty")
	}
	if input.Status != nil {
		if _, ok := validStatuses[*input.Status]; !ok {
			return User{}, apperror.New(apperror.Validation, "Invalid status")
		}
	}

	p, err := s.repo.Update(ctx, id, repo.UpdateParams{
		FullName: input.FullName,
		Status:   input.Status,
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return User{}, apperror.New(apperror.NotFound, "User not found")
		}
		return User{}, err
	}
	return mapProfile(p), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperror.New(apperror.NotFound, "User not found")
		}
		return err
	}
	return nil
}

func mapProfile(p repo.Profile) User {
	return User{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		LastLogin: p.LastLogin,
	}
}
