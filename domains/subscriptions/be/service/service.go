// Package service exposes a tenant's subscriptions and the feature limits
// of its plans. Read-only; the gate enforces access, this surface reports
// it.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/persistence"
	"github.com/klola/core-platform/platform/go/subscription"
	"github.com/klola/core-platform/platform/go/tenant"
)

// Store is the subscription catalogue source. Satisfied by
// persistence.SubscriptionStore.
type Store interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]persistence.SubscriptionRecord, error)
}

// Subscription is the domain view of one subscription row.
type Subscription struct {
	ID           uuid.UUID  `json:"id"`
	PlanID       uuid.UUID  `json:"plan_id"`
	ProductID    string     `json:"product_id"`
	PlanName     string     `json:"plan_name"`
	Status       string     `json:"status"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	TrialEndDate *time.Time `json:"trial_end_date"`
	AutoRenew    bool       `json:"auto_renew"`
}

// Service defines the subscription surface operations. Both take the
// tenant from the request context.
type Service interface {
	List(ctx context.Context) ([]Subscription, error)
	Limitations(ctx context.Context, productID string) (subscription.Entitlements, error)
}

type service struct {
	store Store
	gate  *subscription.Gate
}

// New constructs the subscriptions Service.
func New(store Store, gate *subscription.Gate) Service {
	if store == nil {
		panic("subscriptions store is required")
	}
	if gate == nil {
		panic("subscription gate is required")
	}
	return &service{store: store, gate: gate}
}

func (s *service) List(ctx context.Context) ([]Subscription, error) {
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, apperror.New(apperror.Tenant, "Tenant not found")
	}

	records, err := s.store.ListByTenant(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	subs := make([]Subscription, 0, len(records))
	for _, rec := range records {
		subs = append(subs, mapRecord(rec))
	}
	return subs, nil
}

func (s *service) Limitations(ctx context.Context, productID string) (subscription.Entitlements, error) {
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, apperror.New(apperror.Tenant, "Tenant not found")
	}
	return s.gate.Limitations(ctx, tc.TenantID, productID)
}

func mapRecord(rec persistence.SubscriptionRecord) Subscription {
	return Subscription{
		ID:           rec.ID,
		PlanID:       rec.PlanID,
		ProductID:    rec.ProductID,
		PlanName:     rec.PlanName,
		Status:       rec.Status,
		StartDate:    rec.StartDate,
		EndDate:      rec.EndDate,
		TrialEndDate: rec.TrialEndDate,
		AutoRenew:    rec.AutoRenew,
	}
}
