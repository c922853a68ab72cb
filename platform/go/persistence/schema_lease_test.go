package persistence

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// mustSchemaTestPool connects to the database named by TEST_DATABASE_URL and
// provisions a throwaway tenant schema. Tests are skipped when no database
// is available.
func mustSchemaTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url, ok := os.LookupEnv("TEST_DATABASE_URL")
	if !ok || url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS tenant_leasetest`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP SCHEMA IF EXISTS tenant_leasetest CASCADE`)
	})

	return pool
}

func poolSearchPath(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	var path string
	require.NoError(t, pool.QueryRow(context.Background(), `SHOW search_path`).Scan(&path))
	return path
}

func TestWithTenantSchemaSetsAndResets(t *testing.T) {
	pool := mustSchemaTestPool(t)
	db := NewSchemaDB(pool)
	ctx := context.Background()

	var inside string
	err := db.WithTenantSchema(ctx, "leasetest", func(q Querier) error {
		return q.QueryRow(ctx, `SHOW search_path`).Scan(&inside)
	})
	require.NoError(t, err)
	require.Contains(t, inside, "tenant_leasetest")

	// A freshly acquired connection from the same pool must be back on the
	// default schema. Pool has one test conn at most here, so this observes
	// the released session.
	require.NotContains(t, poolSearchPath(t, pool), "tenant_leasetest")
}

func TestWithTenantSchemaResetsOnError(t *testing.T) {
	pool := mustSchemaTestPool(t)
	db := NewSchemaDB(pool)
	ctx := context.Background()

	businessErr := errors.New("business failure")
	err := db.WithTenantSchema(ctx, "leasetest", func(Querier) error {
		return businessErr
	})
	require.ErrorIs(t, err, businessErr)

	require.NotContains(t, poolSearchPath(t, pool), "tenant_leasetest")
}

func TestWithTenantSchemaResetsOnPanic(t *testing.T) {
	pool := mustSchemaTestPool(t)
	db := NewSchemaDB(pool)
	ctx := context.Background()

	require.Panics(t, func() {
		_ = db.WithTenantSchema(ctx, "leasetest", func(Querier) error {
			panic("handler exploded")
		})
	})

	require.NotContains(t, poolSearchPath(t, pool), "tenant_leasetest")
}

func TestAcquireUnknownSchemaStillReleases(t *testing.T) {
	pool := mustSchemaTestPool(t)
	db := NewSchemaDB(pool)
	ctx := context.Background()

	// Postgres accepts SET search_path for schemas that do not exist, so an
	// unknown tenant surfaces on first use, not on acquire. Either way the
	// lease contract holds: the pool never yields a tenant-scoped session.
	err := db.WithTenantSchema(ctx, "no-such-tenant", func(q Querier) error {
		var one int
		return q.QueryRow(ctx, `SELECT 1`).Scan(&one)
	})
	require.NoError(t, err)

	require.NotContains(t, poolSearchPath(t, pool), "no_such_tenant")
}
