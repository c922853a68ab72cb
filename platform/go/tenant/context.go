// Package tenant resolves which tenant an HTTP request belongs to and
// carries the resolved context through the request scope.
package tenant

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Context captures the resolved tenant for one request. It is attached to
// the request context once by the pipeline and never mutated afterwards.
type Context struct {
	TenantID           uuid.UUID
	Slug               string
	SubscriptionStatus string
	ActiveProducts     []string
}

// HasProduct reports whether the tenant's subscriptions cover productID.
func (c Context) HasProduct(productID string) bool {
	for _, p := range c.ActiveProducts {
		if p == productID {
			return true
		}
	}
	return false
}

// SchemaName returns the tenant's PostgreSQL schema: tenant_<slug> with the
// slug lowered and kebab-case folded to snake_case.
func SchemaName(slug string) string {
	return "tenant_" + strings.ReplaceAll(strings.ToLower(slug), "-", "_")
}

type ctxKey struct{}

// WithContext returns a derived context carrying the tenant Context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext extracts the tenant Context and a boolean indicating presence.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}
