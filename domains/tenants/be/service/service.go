// Package service implements the tenant registry admin surface.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/klola/core-platform/platform/go/persistence"
)

// Registry is the tenant registry source. Satisfied by
// persistence.TenantDirectory.
type Registry interface {
	ListTenants(ctx context.Context) ([]persistence.TenantRecord, error)
	GetTenant(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error)
}

// Tenant is the registry view exposed to administrators.
type Tenant struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Slug   string    `json:"slug"`
	Status string    `json:"status"`
}

// Service defines the registry operations.
type Service interface {
	List(ctx context.Context) ([]Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
}

type service struct {
	registry Registry
}

// New constructs a tenants Service over the given registry.
func New(registry Registry) Service {
	if registry == nil {
		panic("tenants registry is required")
	}
	return &service{registry: registry}
}

func (s *service) List(ctx context.Context) ([]Tenant, error) {
	records, err := s.registry.ListTenants(ctx)
	if err != nil {
		return nil, err
	}

	tenants := make([]Tenant, 0, len(records))
	for _, rec := range records {
		tenants = append(tenants, mapRecord(rec))
	}
	return tenants, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	rec, err := s.registry.GetTenant(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	return mapRecord(rec), nil
}

func mapRecord(rec persistence.TenantRecord) Tenant {
	return Tenant{
		ID:     rec.ID,
		Name:   rec.Name,
		Slug:   rec.Slug,
		Status: rec.Status,
	}
}
