package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klola/core-platform/platform/go/persistence"
	"github.com/klola/core-platform/platform/go/subscription"
	"github.com/klola/core-platform/platform/go/tenant"
	"github.com/klola/core-platform/platform/go/token"
	"github.com/klola/core-platform/platform/go/tokenstore"
)

type mockDirectory struct {
	lookupByID   func(ctx context.Context, id uuid.UUID) (tenant.Context, error)
	lookupBySlug func(ctx context.Context, slug string) (tenant.Context, error)
}

func (m *mockDirectory) LookupByID(ctx context.Context, id uuid.UUID) (tenant.Context, error) {
	return m.lookupByID(ctx, id)
}

func (m *mockDirectory) LookupBySlug(ctx context.Context, slug string) (tenant.Context, error) {
	return m.lookupBySlug(ctx, slug)
}

type mockLookup struct {
	activePlanFeatures func(ctx context.Context, tenantID uuid.UUID, productID string) (map[string]any, error)
}

func (m *mockLookup) ActivePlanFeatures(ctx context.Context, tenantID uuid.UUID, productID string) (map[string]any, error) {
	return m.activePlanFeatures(ctx, tenantID, productID)
}

type stubQuerier struct{}

func (stubQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }

// fakeScoper records the slugs it scoped so tests can assert the lease ran
// exactly once with the resolved tenant's schema.
type fakeScoper struct {
	slugs []string
}

func (f *fakeScoper) WithTenantSchema(ctx context.Context, tenantSlug string, fn func(q persistence.Querier) error) error {
	f.slugs = append(f.slugs, tenantSlug)
	return fn(stubQuerier{})
}

type fixture struct {
	pipeline *Pipeline
	tokens   *token.Service
	scoper   *fakeScoper
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newFixture(t *testing.T, dir tenant.Directory, lookup subscription.Lookup) *fixture {
	t.Helper()

	tenantID := uuid.New()
	userID := uuid.New()

	if dir == nil {
		dir = &mockDirectory{
			lookupByID: func(_ context.Context, id uuid.UUID) (tenant.Context, error) {
				if id != tenantID {
					return tenant.Context{}, tenant.ErrNotFound
				}
				return tenant.Context{
					TenantID:           tenantID,
					Slug:               "acme",
					SubscriptionStatus: "active",
					ActiveProducts:     []string{"klolatoko", "klolaform"},
				}, nil
			},
			lookupBySlug: func(_ context.Context, slug string) (tenant.Context, error) {
				if slug != "acme" {
					return tenant.Context{}, tenant.ErrNotFound
				}
				return tenant.Context{
					TenantID:           tenantID,
					Slug:               "acme",
					SubscriptionStatus: "active",
					ActiveProducts:     []string{"klolatoko", "klolaform"},
				}, nil
			},
		}
	}
	if lookup == nil {
		lookup = &mockLookup{
			activePlanFeatures: func(context.Context, uuid.UUID, string) (map[string]any, error) {
				return map[string]any{"max_users": float64(25)}, nil
			},
		}
	}

	tokens := token.NewService(tokenstore.NewMemoryStore(), []byte("pipeline-test-secret"))
	scoper := &fakeScoper{}

	p := New(Config{
		Resolver: tenant.NewResolver(dir),
		Tokens:   tokens,
		DB:       scoper,
		Gate:     subscription.NewGate(lookup),
	})

	return &fixture{pipeline: p, tokens: tokens, scoper: scoper, tenantID: tenantID, userID: userID}
}

func (f *fixture) authedRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	pair, err := f.tokens.Issue(context.Background(), f.userID, f.tenantID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	return req
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.False(t, envelope.Success)
	return envelope.Error.Code
}

func TestProtectedRejectsMissingAuthorizationHeader(t *testing.T) {
	f := newFixture(t, nil, nil)

	handlerCalled := false
	h := f.pipeline.Protected(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_ERROR", errorCode(t, rec.Body.Bytes()))
	assert.False(t, handlerCalled)
	assert.Empty(t, f.scoper.slugs)
}

func TestProtectedRejectsInvalidToken(t *testing.T) {
	f := newFixture(t, nil, nil)

	h := f.pipeline.Protected(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_ERROR", errorCode(t, rec.Body.Bytes()))
}

func TestProtectedRejectsUnknownTenantForIdentity(t *testing.T) {
	dir := &mockDirectory{
		lookupByID: func(context.Context, uuid.UUID) (tenant.Context, error) {
			return tenant.Context{}, tenant.ErrNotFound
		},
		lookupBySlug: func(context.Context, string) (tenant.Context, error) {
			return tenant.Context{}, tenant.ErrNotFound
		},
	}
	f := newFixture(t, dir, nil)

	h := f.pipeline.Protected(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.authedRequest(t, "/api/v1/users"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_ERROR", errorCode(t, rec.Body.Bytes()))
	assert.Empty(t, f.scoper.slugs)
}

func TestProtectedPopulatesRequestContext(t *testing.T) {
	f := newFixture(t, nil, nil)

	var (
		gotIdentity token.Identity
		gotTenant   tenant.Context
		gotQuerier  bool
	)
	h := f.pipeline.Protected(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		gotIdentity, ok = token.IdentityFromContext(r.Context())
		require.True(t, ok)
		gotTenant, ok = tenant.FromContext(r.Context())
		require.True(t, ok)
		_, gotQuerier = persistence.QuerierFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.authedRequest(t, "/api/v1/users"))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, f.userID, gotIdentity.UserID)
	assert.Equal(t, f.tenantID, gotIdentity.TenantID)
	assert.Equal(t, "acme", gotTenant.Slug)
	assert.True(t, gotQuerier)
	assert.Equal(t, []string{"acme"}, f.scoper.slugs)
}

func TestProtectedGateRejectsWithoutSubscription(t *testing.T) {
	lookup := &mockLookup{
		activePlanFeatures: func(context.Context, uuid.UUID, string) (map[string]any, error) {
			return nil, persistence.ErrNoSubscription
		},
	}
	f := newFixture(t, nil, lookup)

	h := f.pipeline.Protected(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.authedRequest(t, "/api/v1/klolatoko/orders"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTHORIZATION_ERROR", errorCode(t, rec.Body.Bytes()))
	assert.Equal(t, []string{"acme"}, f.scoper.slugs)
}

func TestProtectedGateExposesEntitlements(t *testing.T) {
	f := newFixture(t, nil, nil)

	var ents subscription.Entitlements
	h := f.pipeline.Protected(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		ents, ok = subscription.FromContext(r.Context(), "klolatoko")
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.authedRequest(t, "/api/v1/klolatoko/orders"))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, float64(25), ents["max_users"])
}

func TestProtectedSkipsGateForUngatedRoutes(t *testing.T) {
	lookup := &mockLookup{
		activePlanFeatures: func(context.Context, uuid.UUID, string) (map[string]any, error) {
			t.Fatal("gate must not run for ungated routes")
			return nil, nil
		},
	}
	f := newFixture(t, nil, lookup)

	h := f.pipeline.Protected(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.authedRequest(t, "/api/v1/users"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPublicWithTenantSkipsDirectoryWithoutHint(t *testing.T) {
	dir := &mockDirectory{
		lookupByID: func(context.Context, uuid.UUID) (tenant.Context, error) {
			t.Fatal("directory must not be consulted")
			return tenant.Context{}, nil
		},
		lookupBySlug: func(context.Context, string) (tenant.Context, error) {
			t.Fatal("directory must not be consulted")
			return tenant.Context{}, nil
		},
	}
	f := newFixture(t, dir, nil)

	var hadTenant bool
	h := f.pipeline.PublicWithTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadTenant = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Host = "klola.id"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, hadTenant)
}

func TestPublicWithTenantResolvesSubdomain(t *testing.T) {
	f := newFixture(t, nil, nil)

	var got tenant.Context
	h := f.pipeline.PublicWithTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = tenant.FromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Host = "acme.klola.id"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, f.tenantID, got.TenantID)
}

func TestPublicWithTenantFallsThroughOnUnknownHint(t *testing.T) {
	f := newFixture(t, nil, nil)

	var hadTenant bool
	h := f.pipeline.PublicWithTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadTenant = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Host = "ghost.klola.id"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, hadTenant)
}

func TestProductFromPath(t *testing.T) {
	tests := []struct {
		path    string
		product string
		gated   bool
	}{
		{"/api/v1/klolatoko/orders", "klolatoko", true},
		{"/api/v1/klolaform/forms/123", "klolaform", true},
		{"/api/v1/users", "", false},
		{"/api/v1/auth/login", "", false},
		{"/healthz", "", false},
	}
	for _, tc := range tests {
		product, gated := ProductFromPath(tc.path)
		assert.Equal(t, tc.gated, gated, tc.path)
		assert.Equal(t, tc.product, product, tc.path)
	}
}
