package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klola/core-platform/platform/go/apperror"
)

// ErrUserNotFound is returned on a registry miss; services decide whether
// that maps to an authentication or not-found failure.
var ErrUserNotFound = errors.New("user not found")

// UserRecord is a row of public.users, the global login registry. Tenant
// schemas additionally carry their own users table for per-tenant data,
// queried through the schema lease.
type UserRecord struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// UserStore reads and writes the global user registry.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates the store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	if pool == nil {
		panic("user store requires pool")
	}
	return &UserStore{pool: pool}
}

const userColumns = `id, tenant_id, email, password_hash, full_name, status, created_at, updated_at, last_login`

func scanUser(row pgx.Row) (UserRecord, error) {
	var rec UserRecord
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.Email, &rec.PasswordHash, &rec.FullName,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &rec.LastLogin,
	)
	return rec, err
}

// GetByEmail looks up a user by login email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM public.users WHERE email = $1`

	rec, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, apperror.Wrap(apperror.Database, "Failed to load user", err)
	}
	return rec, nil
}

// GetByID looks up a user by id.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM public.users WHERE id = $1`

	rec, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, apperror.Wrap(apperror.Database, "Failed to load user", err)
	}
	return rec, nil
}

// Create inserts a new user and returns the stored row.
func (s *UserStore) Create(ctx context.Context, rec UserRecord) (UserRecord, error) {
	const query = `
		INSERT INTO public.users (id, tenant_id, email, password_hash, full_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING ` + userColumns

	stored, err := scanUser(s.pool.QueryRow(ctx, query,
		rec.ID, rec.TenantID, rec.Email, rec.PasswordHash, rec.FullName, rec.Status))
	if err != nil {
		return UserRecord{}, apperror.Wrap(apperror.Database, "Failed to create user", err)
	}
	return stored, nil
}

// TouchLastLogin stamps a successful login.
func (s *UserStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE public.users SET last_login = now(), updated_at = now() WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return apperror.Wrap(apperror.Database, "Failed to update user", err)
	}
	return nil
}
