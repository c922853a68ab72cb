package persistence

import "context"

type querierKey struct{}

// WithQuerier attaches the schema-scoped query surface to the request
// context so domain handlers downstream of the pipeline can reach the
// tenant's schema without ever seeing the raw pooled connection.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, querierKey{}, q)
}

// QuerierFromContext extracts the schema-scoped query surface.
func QuerierFromContext(ctx context.Context) (Querier, bool) {
	q, ok := ctx.Value(querierKey{}).(Querier)
	return q, ok
}
