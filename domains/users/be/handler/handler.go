// Package handler exposes the per-tenant users domain over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klola/core-platform/domains/users/be/service"
	"github.com/klola/core-platform/platform/go/apperror"
)

// Handler wires the users service to its routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the users endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, users)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid user id"))
		return
	}

	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid request body"))
		return
	}

	user, err := h.svc.Create(r.Context(), input)
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusCreated, user)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid user id"))
		return
	}

	var input service.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid request body"))
		return
	}

	user, err := h.svc.Update(r.Context(), id, input)
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, user)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid user id"))
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
