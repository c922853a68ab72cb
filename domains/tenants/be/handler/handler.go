// Package handler exposes the tenant registry over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klola/core-platform/domains/tenants/be/service"
	"github.com/klola/core-platform/platform/go/apperror"
)

// Handler wires the tenants service to its routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the registry endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.List(r.Context())
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, tenants)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid tenant id"))
		return
	}

	tenant, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, tenant)
}
