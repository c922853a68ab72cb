package tenant

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/token"
)

// ErrNotFound is returned by Directory implementations when no tenant
// matches the lookup.
var ErrNotFound = errors.New("tenant not found")

// Directory is the tenant registry lookup the resolver delegates to.
type Directory interface {
	LookupByID(ctx context.Context, id uuid.UUID) (Context, error)
	LookupBySlug(ctx context.Context, slug string) (Context, error)
}

// TenantIDHeader carries an explicit tenant hint, second in resolution
// precedence after the authenticated identity.
const TenantIDHeader = "X-Tenant-ID"

// Resolver determines the tenant for a request. The sources are tried in
// strict precedence order and the first match wins:
//
//  1. the authenticated identity's tenant id,
//  2. a well-formed X-Tenant-ID header,
//  3. the first host label, when the host has more than two labels.
type Resolver struct {
	dir Directory
}

// NewResolver constructs a Resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	if dir == nil {
		panic("tenant resolver requires a directory")
	}
	return &Resolver{dir: dir}
}

// Resolve returns the tenant Context for the request. identity may be nil
// on public routes. A directory miss through the identity source is an
// authentication failure; exhausting all sources is a tenant failure.
func (r *Resolver) Resolve(req *http.Request, identity *token.Identity) (Context, error) {
	ctx := req.Context()

	if identity != nil {
		tc, err := r.dir.LookupByID(ctx, identity.TenantID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Context{}, apperror.New(apperror.Authentication, "Unknown tenant for authenticated user")
			}
			return Context{}, err
		}
		return tc, nil
	}

	if header := strings.TrimSpace(req.Header.Get(TenantIDHeader)); header != "" {
		// A malformed header is not a hard failure: resolution falls
		// through to the subdomain source.
		if id, parseErr := uuid.Parse(header); parseErr == nil {
			tc, err := r.dir.LookupByID(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return Context{}, apperror.New(apperror.Tenant, "Tenant not found")
				}
				return Context{}, err
			}
			return tc, nil
		}
	}

	if slug, ok := Subdomain(req.Host); ok {
		tc, err := r.dir.LookupBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Context{}, apperror.New(apperror.Tenant, "Tenant not found")
			}
			return Context{}, err
		}
		return tc, nil
	}

	return Context{}, apperror.New(apperror.Tenant, "Tenant not found")
}

// Subdomain returns the first host label when the host carries one, i.e.
// when it has more than two dot-separated labels (acme.klola.io yields
// acme). Ports are stripped before counting labels.
func Subdomain(host string) (string, bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	labels := strings.Split(strings.ToLower(host), ".")
	if len(labels) <= 2 || labels[0] == "" {
		return "", false
	}
	return labels[0], true
}
