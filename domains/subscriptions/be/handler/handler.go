// Package handler exposes the subscription surface over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/klola/core-platform/domains/subscriptions/be/service"
	"github.com/klola/core-platform/platform/go/apperror"
)

// Handler wires the subscriptions service to its routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("subscriptions service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the subscription endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{product}/limitations", h.limitations)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.List(r.Context())
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, subs)
}

func (h *Handler) limitations(w http.ResponseWriter, r *http.Request) {
	limits, err := h.svc.Limitations(r.Context(), chi.URLParam(r, "product"))
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, limits)
}
