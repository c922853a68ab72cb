package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/tenant"
)

// TenantDirectory is the registry lookup over public.tenants consumed by
// the tenant resolver. All queries run against the shared schema; no lease
// is involved because the directory is what the lease is derived from.
type TenantDirectory struct {
	pool *pgxpool.Pool
}

var _ tenant.Directory = (*TenantDirectory)(nil)

// NewTenantDirectory creates a directory; assumes migrations already
// created the registry tables.
func NewTenantDirectory(pool *pgxpool.Pool) *TenantDirectory {
	if pool == nil {
		panic("tenant directory requires pool")
	}
	return &TenantDirectory{pool: pool}
}

// TenantRecord is a row of the tenant registry.
type TenantRecord struct {
	ID     uuid.UUID
	Name   string
	Slug   string
	Status string
}

func (d *TenantDirectory) LookupByID(ctx context.Context, id uuid.UUID) (tenant.Context, error) {
	const query = `
		SELECT id, slug
		FROM public.tenants
		WHERE id = $1`

	var rec TenantRecord
	if err := d.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Slug); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.Context{}, tenant.ErrNotFound
		}
		return tenant.Context{}, apperror.Wrap(apperror.Database, "Failed to load tenant", err)
	}

	return d.buildContext(ctx, rec)
}

func (d *TenantDirectory) LookupBySlug(ctx context.Context, slug string) (tenant.Context, error) {
	const query = `
		SELECT id, slug
		FROM public.tenants
		WHERE slug = $1`

	var rec TenantRecord
	if err := d.pool.QueryRow(ctx, query, slug).Scan(&rec.ID, &rec.Slug); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.Context{}, tenant.ErrNotFound
		}
		return tenant.Context{}, apperror.Wrap(apperror.Database, "Failed to load tenant", err)
	}

	return d.buildContext(ctx, rec)
}

// buildContext joins the registry row with the tenant's live subscriptions.
func (d *TenantDirectory) buildContext(ctx context.Context, rec TenantRecord) (tenant.Context, error) {
	const query = `
		SELECT DISTINCT p.product_id
		FROM public.subscriptions s
		JOIN public.plans p ON p.id = s.plan_id
		WHERE s.tenant_id = $1
		  AND s.status IN ('active', 'trial')
		  AND s.end_date > now()`

	rows, err := d.pool.Query(ctx, query, rec.ID)
	if err != nil {
		return tenant.Context{}, apperror.Wrap(apperror.Database, "Failed to load tenant subscriptions", err)
	}
	defer rows.Close()

	var products []string
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return tenant.Context{}, apperror.Wrap(apperror.Database, "Failed to load tenant subscriptions", err)
		}
		products = append(products, productID)
	}
	if err := rows.Err(); err != nil {
		return tenant.Context{}, apperror.Wrap(apperror.Database, "Failed to load tenant subscriptions", err)
	}

	status := "inactive"
	if len(products) > 0 {
		status = "active"
	}

	return tenant.Context{
		TenantID:           rec.ID,
		Slug:               rec.Slug,
		SubscriptionStatus: status,
		ActiveProducts:     products,
	}, nil
}

// ListTenants returns the full registry, newest first, for the admin
// surface.
func (d *TenantDirectory) ListTenants(ctx context.Context) ([]TenantRecord, error) {
	const query = `
		SELECT id, name, slug, status
		FROM public.tenants
		ORDER BY created_at DESC`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, apperror.Wrap(apperror.Database, "Failed to list tenants", err)
	}
	defer rows.Close()

	var records []TenantRecord
	for rows.Next() {
		var rec TenantRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Slug, &rec.Status); err != nil {
			return nil, apperror.Wrap(apperror.Database, "Failed to list tenants", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Database, "Failed to list tenants", err)
	}
	return records, nil
}

// GetTenant returns one registry row.
func (d *TenantDirectory) GetTenant(ctx context.Context, id uuid.UUID) (TenantRecord, error) {
	const query = `
		SELECT id, name, slug, status
		FROM public.tenants
		WHERE id = $1`

	var rec TenantRecord
	if err := d.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Name, &rec.Slug, &rec.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, apperror.Wrap(apperror.NotFound, fmt.Sprintf("Tenant %s not found", id), err)
		}
		return TenantRecord{}, apperror.Wrap(apperror.Database, "Failed to load tenant", err)
	}
	return rec, nil
}
