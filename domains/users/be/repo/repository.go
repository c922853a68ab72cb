// Package repo persists per-tenant user profiles. All queries run against
// the unqualified users table so the schema lease on the request context
// decides which tenant's table they hit.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/persistence"
)

// ErrNotFound is returned when no profile matches.
var ErrNotFound = errors.New("user profile not found")

// Profile is a row of the tenant schema's users table. Credentials live in
// the global registry, never here.
type Profile struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	LastLogin *time.Time
}

// CreateParams is the insert payload.
type CreateParams struct {
	ID       uuid.UUID
	Email    string
	FullName string
	Status   string
}

// UpdateParams carries the mutable fields; nil means unchanged.
type UpdateParams struct {
	FullName *string
	Status   *string
}

// Repository defines the persistence operations for user profiles.
type Repository interface {
	List(ctx context.Context) ([]Profile, error)
	Get(ctx context.Context, id uuid.UUID) (Profile, error)
	Create(ctx context.Context, params CreateParams) (Profile, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostgresRepository runs against the schema-leased connection carried by
// the request context.
type PostgresRepository struct{}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

var _ Repository = (*PostgresRepository)(nil)

const profileColumns = `id, email, full_name, status, created_at, updated_at, last_login`

func querier(ctx context.Context) (persistence.Querier, error) {
	q, ok := persistence.QuerierFromContext(ctx)
	if !ok {
		return nil, apperror.New(apperror.Internal, "Internal server error")
	}
	return q, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Status, &p.CreatedAt, &p.UpdatedAt, &p.LastLogin)
	return p, err
}

func (r *PostgresRepository) List(ctx context.Context) ([]Profile, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+profileColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperror.Wrap(apperror.Database, "Failed to list users", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, apperror.Wrap(apperror.Database, "Failed to scan user", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Database, "Failed to list users", err)
	}
	return profiles, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	q, err := querier(ctx)
	if err != nil {
		return Profile{}, err
	}

	p, err := scanProfile(q.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, apperror.Wrap(apperror.Database, "Failed to load user", err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, params CreateParams) (Profile, error) {
	q, err := querier(ctx)
	if err != nil {
		return Profile{}, err
	}

	const query = `
		INSERT INTO users (id, email, full_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING ` + profileColumns

	p, err := scanProfile(q.QueryRow(ctx, query, params.ID, params.Email, params.FullName, params.Status))
	if err != nil {
		return Profile{}, apperror.Wrap(apperror.Database, "Failed to create user", err)
	}
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Profile, error) {
	q, err := querier(ctx)
	if err != nil {
		return Profile{}, err
	}

	const query = `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
		    status = COALESCE($3, status),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(q.QueryRow(ctx, query, id, params.FullName, params.Status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, apperror.Wrap(apperror.Database, "Failed to update user", err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperror.Wrap(apperror.Database, "Failed to delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
