// Package pipeline composes the request context stages every route runs
// through: tenant resolution, access-token verification, the tenant schema
// lease, and the subscription gate, in that fixed order, around the inner
// handler. A stage failure stops the pipeline; no later stage runs.
package pipeline

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/logging"
	"github.com/klola/core-platform/platform/go/persistence"
	"github.com/klola/core-platform/platform/go/subscription"
	"github.com/klola/core-platform/platform/go/tenant"
	"github.com/klola/core-platform/platform/go/token"
)

// gatedProducts are the product route segments subject to the subscription
// gate. Auth, tenant and subscription management routes carry no product
// segment and are therefore exempt.
var gatedProducts = map[string]struct{}{
	"klolatoko":   {},
	"klolakos":    {},
	"klolarental": {},
	"klolaform":   {},
}

// ProductFromPath extracts the gated product id from a request path of the
// form /api/v1/<product>/..., if any.
func ProductFromPath(path string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		return "", false
	}
	if _, ok := gatedProducts[parts[2]]; !ok {
		return "", false
	}
	return parts[2], true
}

// SchemaScoper runs a function on a connection scoped to one tenant's
// schema, guaranteeing the reset/release on every exit path. Implemented by
// persistence.SchemaDB.
type SchemaScoper interface {
	WithTenantSchema(ctx context.Context, tenantSlug string, fn func(q persistence.Querier) error) error
}

// Config wires the pipeline's collaborators.
type Config struct {
	Resolver *tenant.Resolver
	Tokens   *token.Service
	DB       SchemaScoper
	Gate     *subscription.Gate
	Logger   *zap.Logger
}

// Pipeline builds the middleware for protected and public route groups.
type Pipeline struct {
	resolver *tenant.Resolver
	tokens   *token.Service
	db       SchemaScoper
	gate     *subscription.Gate
	logger   *zap.Logger
}

// New constructs the pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Resolver == nil {
		panic("pipeline requires a tenant resolver")
	}
	if cfg.Tokens == nil {
		panic("pipeline requires a token service")
	}
	if cfg.DB == nil {
		panic("pipeline requires a schema db")
	}
	if cfg.Gate == nil {
		panic("pipeline requires a subscription gate")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{
		resolver: cfg.Resolver,
		tokens:   cfg.Tokens,
		db:       cfg.DB,
		gate:     cfg.Gate,
		logger:   cfg.Logger,
	}
}

// Protected runs the full stage order for authenticated routes:
// verified identity -> tenant context -> schema lease wrapping the
// subscription gate and the inner handler. The lease reset runs
// unconditionally on the way out, whatever the handler does.
func (p *Pipeline) Protected(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromRequest(r, p.logger)

		raw, found := token.BearerToken(r.Header.Get("Authorization"))
		if !found {
			apperror.RespondError(w, apperror.New(apperror.Authentication, "Missing authorization header"))
			return
		}

		identity, err := p.tokens.VerifyAccess(r.Context(), raw)
		if err != nil {
			p.fail(w, logger, "access token rejected", err)
			return
		}

		tc, err := p.resolver.Resolve(r, &identity)
		if err != nil {
			p.fail(w, logger, "tenant resolution failed", err)
			return
		}

		ctx := token.WithIdentity(r.Context(), identity)
		ctx = tenant.WithContext(ctx, tc)

		err = p.db.WithTenantSchema(ctx, tc.Slug, func(q persistence.Querier) error {
			reqCtx := persistence.WithQuerier(ctx, q)

			if productID, gated := ProductFromPath(r.URL.Path); gated {
				ents, gateErr := p.gate.Check(reqCtx, tc.TenantID, productID)
				if gateErr != nil {
					return gateErr
				}
				reqCtx = subscription.WithEntitlements(reqCtx, productID, ents)
			}

			next.ServeHTTP(w, r.WithContext(reqCtx))
			return nil
		})
		if err != nil {
			p.fail(w, logger, "pipeline stage failed", err)
		}
	})
}

// PublicWithTenant is the variant for unauthenticated routes (login,
// register, refresh): no identity, no gate, and tenant context only when it
// is derivable from the header or subdomain. Without a hint the request
// runs tenant-agnostic and never touches the directory.
func (p *Pipeline) PublicWithTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromRequest(r, p.logger)

		if !hasTenantHint(r) {
			next.ServeHTTP(w, r)
			return
		}

		tc, err := p.resolver.Resolve(r, nil)
		if err != nil {
			// A hint that resolves to nothing leaves the route
			// tenant-agnostic; only infrastructure failures surface.
			if apperror.IsKind(err, apperror.Tenant) {
				next.ServeHTTP(w, r)
				return
			}
			p.fail(w, logger, "tenant resolution failed", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithContext(r.Context(), tc)))
	})
}

// hasTenantHint mirrors the resolver's non-identity sources so that public
// routes with no hint skip resolution entirely.
func hasTenantHint(r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get(tenant.TenantIDHeader)) != "" {
		return true
	}
	_, ok := tenant.Subdomain(r.Host)
	return ok
}

func (p *Pipeline) fail(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	appErr := apperror.From(err)
	logger.Warn(msg,
		zap.String("error_code", string(appErr.Kind)),
		zap.Error(err),
	)
	apperror.RespondError(w, appErr)
}
