// Package handler exposes the authentication domain over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/klola/core-platform/domains/auth/be/service"
	"github.com/klola/core-platform/platform/go/apperror"
	"github.com/klola/core-platform/platform/go/token"
)

// Handler wires the auth service to its routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("auth service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// PublicRoutes are the unauthenticated endpoints: login, register and
// refresh-token.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Post("/refresh-token", h.refreshToken)
}

// ProtectedRoutes require a verified access token.
func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Post("/logout", h.logout)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid request body"))
		return
	}

	session, err := h.svc.Login(r.Context(), input)
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, session)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid request body"))
		return
	}

	user, err := h.svc.Register(r.Context(), input)
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusCreated, user)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apperror.RespondError(w, apperror.New(apperror.Validation, "Invalid request body"))
		return
	}

	session, err := h.svc.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, session)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	// Body is optional; without it only the access token is revoked.
	var input logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&input)

	raw, _ := token.BearerToken(r.Header.Get("Authorization"))
	if err := h.svc.Logout(r.Context(), raw, input.RefreshToken); err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.CurrentUser(r.Context())
	if err != nil {
		apperror.RespondError(w, err)
		return
	}
	apperror.RespondData(w, http.StatusOK, user)
}
