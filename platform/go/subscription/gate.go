// Package subscription gates product access on the tenant's live
// subscription and exposes the plan's feature limits.
package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/persistence"
	"github.com/klola/core-platform/platform/go/tenant"
)

// Entitlements maps feature keys to their limit values (e.g. max_users,
// max_storage_gb). Read-only once produced for a request.
type Entitlements map[string]any

// Lookup is the authoritative subscription source the gate delegates to.
type Lookup interface {
	ActivePlanFeatures(ctx context.Context, tenantID uuid.UUID, productID string) (map[string]any, error)
}

// Gate decides whether a tenant may use a product and with which limits.
type Gate struct {
	lookup Lookup
}

// NewGate constructs a Gate over the given lookup.
func NewGate(lookup Lookup) *Gate {
	if lookup == nil {
		panic("subscription gate requires a lookup")
	}
	return &Gate{lookup: lookup}
}

// Check returns the tenant's entitlements for the product, failing with an
// authorization error when no live subscription covers it. A memo already
// on the context short-circuits the lookup so one pipeline pass hits the
// directory at most once per product.
func (g *Gate) Check(ctx context.Context, tenantID uuid.UUID, productID string) (Entitlements, error) {
	if ents, ok := FromContext(ctx, productID); ok {
		return ents, nil
	}

	// The resolved tenant context already carries the product list, so a
	// tenant with no coverage is rejected without another lookup.
	if tc, ok := tenant.FromContext(ctx); ok && tc.TenantID == tenantID && !tc.HasProduct(productID) {
		return nil, accessDenied(productID)
	}

	features, err := g.lookup.ActivePlanFeatures(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, persistence.ErrNoSubscription) {
			return nil, accessDenied(productID)
		}
		return nil, err
	}

	return Entitlements(features), nil
}

func accessDenied(productID string) error {
	return apperror.New(apperror.Authorization,
		fmt.Sprintf("Tenant does not have access to product: %s", productID))
}

// Limitations returns the feature limits for the (tenant, product) pair.
// Same source of truth as Check; only the failure policy differs in that a
// missing subscription yields empty limits rather than a rejection.
func (g *Gate) Limitations(ctx context.Context, tenantID uuid.UUID, productID string) (Entitlements, error) {
	if ents, ok := FromContext(ctx, productID); ok {
		return ents, nil
	}

	features, err := g.lookup.ActivePlanFeatures(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, persistence.ErrNoSubscription) {
			return Entitlements{}, nil
		}
		return nil, err
	}
	return Entitlements(features), nil
}

type ctxKey struct{ product string }

// WithEntitlements memoizes resolved entitlements on the request context.
func WithEntitlements(ctx context.Context, productID string, ents Entitlements) context.Context {
	return context.WithValue(ctx, ctxKey{product: productID}, ents)
}

// FromContext retrieves memoized entitlements for the product, if present.
func FromContext(ctx context.Context, productID string) (Entitlements, bool) {
	ents, ok := ctx.Value(ctxKey{product: productID}).(Entitlements)
	return ents, ok
}
