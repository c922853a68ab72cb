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

// ErrNoSubscription is returned when a tenant holds no live subscription
// for the requested product.
var ErrNoSubscription = errors.New("no active subscription")

// SubscriptionRecord is a row of public.subscriptions joined with its plan.
type SubscriptionRecord struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	PlanID       uuid.UUID
	ProductID    string
	PlanName     string
	Status       string
	StartDate    time.Time
	EndDate      time.Time
	TrialEndDate *time.Time
	AutoRenew    bool
}

// SubscriptionStore reads the subscription catalogue in the shared schema.
// It backs both the subscription gate and the subscriptions admin surface.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewSubscriptionStore creates the store.
func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	if pool == nil {
		panic("subscription store requires pool")
	}
	return &SubscriptionStore{pool: pool}
}

// ActivePlanFeatures returns the feature-limit map of the tenant's live
// plan for the product, or ErrNoSubscription when no such subscription
// exists.
func (s *SubscriptionStore) ActivePlanFeatures(ctx context.Context, tenantID uuid.UUID, productID string) (map[string]any, error) {
	const query = `
		SELECT p.features
		FROM public.subscriptions sub
		JOIN public.plans p ON p.id = sub.plan_id
		WHERE sub.tenant_id = $1
		  AND p.product_id = $2
		  AND sub.status IN ('active', 'trial')
		  AND sub.end_date > now()
		ORDER BY sub.start_date DESC
		LIMIT 1`

	var features map[string]any
	if err := s.pool.QueryRow(ctx, query, tenantID, productID).Scan(&features); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSubscription
		}
		return nil, apperror.Wrap(apperror.Database, "Failed to load subscription", err)
	}
	return features, nil
}

// ListByTenant returns all of a tenant's subscriptions, live or not.
func (s *SubscriptionStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]SubscriptionRecord, error) {
	const query = `
		SELECT sub.id, sub.tenant_id, sub.plan_id, p.product_id, p.name,
		       sub.status, sub.start_date, sub.end_date, sub.trial_end_date, sub.auto_renew
		FROM public.subscriptions sub
		JOIN public.plans p ON p.id = sub.plan_id
		WHERE sub.tenant_id = $1
		ORDER BY sub.start_date DESC`

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, apperror.Wrap(apperror.Database, "Failed to list subscriptions", err)
	}
	defer rows.Close()

	var records []SubscriptionRecord
	for rows.Next() {
		var rec SubscriptionRecord
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.PlanID, &rec.ProductID, &rec.PlanName,
			&rec.Status, &rec.StartDate, &rec.EndDate, &rec.TrialEndDate, &rec.AutoRenew,
		); err != nil {
			return nil, apperror.Wrap(apperror.Database, "Failed to list subscriptions", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Database, "Failed to list subscriptions", err)
	}
	return records, nil
}
