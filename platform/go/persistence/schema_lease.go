package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/tenant"
)

// DefaultSchema is the shared schema holding cross-tenant registry tables.
const DefaultSchema = "public"

// Querier is the query surface handed to code running inside a schema lease.
// It deliberately hides acquire/release so downstream callers cannot leak
// the pooled connection past the lease boundary.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SchemaDB wraps the pgx pool so a pooled connection's search_path can be
// pointed at one tenant's schema for the duration of a request, with a
// guaranteed reset before the connection re-enters the pool.
type SchemaDB struct {
	pool *pgxpool.Pool
}

// NewSchemaDB constructs the schema-scoped connection wrapper.
func NewSchemaDB(pool *pgxpool.Pool) *SchemaDB {
	if pool == nil {
		panic("SchemaDB requires pool")
	}
	return &SchemaDB{pool: pool}
}

// SchemaLease is an acquired pooled connection whose session search_path is
// set to one tenant's schema. At most one lease exists per connection; the
// lease must be released on every exit path.
type SchemaLease struct {
	conn     *pgxpool.Conn
	released bool
}

var _ Querier = (*SchemaLease)(nil)

func (l *SchemaLease) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return l.conn.Exec(ctx, sql, args...)
}

func (l *SchemaLease) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return l.conn.Query(ctx, sql, args...)
}

func (l *SchemaLease) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return l.conn.QueryRow(ctx, sql, args...)
}

// Acquire borrows a connection from the pool and switches its search_path
// to the tenant's schema, with the default schema kept for shared tables.
func (db *SchemaDB) Acquire(ctx context.Context, tenantSlug string) (*SchemaLease, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.Database, "Failed to get connection", err)
	}

	schema := tenant.SchemaName(tenantSlug)
	setPath := fmt.Sprintf("SET search_path TO %s, %s",
		pgx.Identifier{schema}.Sanitize(), DefaultSchema)
	if _, err := conn.Exec(ctx, setPath); err != nil {
		releaseClean(ctx, conn)
		return nil, apperror.Wrap(apperror.Database, "Failed to set search path", err)
	}

	return &SchemaLease{conn: conn}, nil
}

// Release resets the session to the default schema and returns the
// connection to the pool. Safe to call more than once. If the reset itself
// fails, the underlying connection is closed instead of released so a
// session with a foreign search_path can never be handed to another request.
func (l *SchemaLease) Release(ctx context.Context) {
	if l.released {
		return
	}
	l.released = true
	releaseClean(ctx, l.conn)
}

func releaseClean(ctx context.Context, conn *pgxpool.Conn) {
	if _, err := conn.Exec(ctx, "SET search_path TO "+DefaultSchema); err != nil {
		raw := conn.Hijack()
		_ = raw.Close(ctx)
		return
	}
	conn.Release()
}

// WithTenantSchema runs fn on a connection scoped to the tenant's schema.
// The reset/release happens on every exit path: success, error return, or
// panic, and survives request-context cancellation.
func (db *SchemaDB) WithTenantSchema(ctx context.Context, tenantSlug string, fn func(q Querier) error) error {
	lease, err := db.Acquire(ctx, tenantSlug)
	if err != nil {
		return err
	}
	defer lease.Release(context.WithoutCancel(ctx))

	return fn(lease)
}
