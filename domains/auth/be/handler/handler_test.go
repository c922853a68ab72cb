package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klola/core-platform/domains/auth/be/service"
	"github.com/klola/core-platform/platform/go/apperror"
)

type mockService struct {
	loginFn       func(ctx context.Context, input service.LoginInput) (service.Session, error)
	registerFn    func(ctx context.Context, input service.RegisterInput) (service.User, error)
	refreshFn     func(ctx context.Context, refreshToken string) (service.Session, error)
	logoutFn      func(ctx context.Context, accessToken, refreshToken string) error
	currentUserFn func(ctx context.Context) (service.User, error)
}

func (m *mockService) Login(ctx context.Context, input service.LoginInput) (service.Session, error) {
	return m.loginFn(ctx, input)
}

func (m *mockService) Register(ctx context.Context, input service.RegisterInput) (service.User, error) {
	return m.registerFn(ctx, input)
}

func (m *mockService) Refresh(ctx context.Context, refreshToken string) (service.Session, error) {
	return m.refreshFn(ctx, refreshToken)
}

func (m *mockService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return m.logoutFn(ctx, accessToken, refreshToken)
}

func (m *mockService) CurrentUser(ctx context.Context) (service.User, error) {
	return m.currentUserFn(ctx)
}

func newRouter(svc service.Service) chi.Router {
	h := New(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/api/v1/auth", func(r chi.Router) {
		h.PublicRoutes(r)
		h.ProtectedRoutes(r)
	})
	return r
}

func TestLoginReturnsSessionEnvelope(t *testing.T) {
	svc := &mockService{
		loginFn: func(_ context.Context, input service.LoginInput) (service.Session, error) {
			require.Equal(t, "owner@acme.example", input.Email)
			return service.Session{
				AccessToken:  "access",
				RefreshToken: "refresh",
				TokenType:    "Bearer",
				ExpiresIn:    3600,
			}, nil
		},
	}

	body := `{"email":"owner@acme.example","password":"sw0rdfish!pass"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool            `json:"success"`
		Data    service.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "Bearer", envelope.Data.TokenType)
	assert.Equal(t, int64(3600), envelope.Data.ExpiresIn)
}

func TestLoginMapsAuthenticationFailure(t *testing.T) {
	svc := &mockService{
		loginFn: func(context.Context, service.LoginInput) (service.Session, error) {
			return service.Session{}, apperror.New(apperror.Authentication, "Invalid email or password")
		},
	}

	body := `{"email":"owner@acme.example","password":"nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "AUTHENTICATION_ERROR", envelope.Error.Code)
	assert.Equal(t, "Invalid email or password", envelope.Error.Message)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	svc := &mockService{
		loginFn: func(context.Context, service.LoginInput) (service.Session, error) {
			t.Fatal("service must not be called")
			return service.Session{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterReturnsCreated(t *testing.T) {
	svc := &mockService{
		registerFn: func(_ context.Context, input service.RegisterInput) (service.User, error) {
			return service.User{Email: input.Email, FullName: input.FullName, Status: "active"}, nil
		},
	}

	body := `{"email":"new@acme.example","password":"longenoughpass","full_name":"New Person"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRefreshTokenPassesRawToken(t *testing.T) {
	svc := &mockService{
		refreshFn: func(_ context.Context, refreshToken string) (service.Session, error) {
			require.Equal(t, "the-refresh-token", refreshToken)
			return service.Session{TokenType: "Bearer"}, nil
		},
	}

	body := `{"refresh_token":"the-refresh-token"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutForwardsBothTokens(t *testing.T) {
	var gotAccess, gotRefresh string
	svc := &mockService{
		logoutFn: func(_ context.Context, accessToken, refreshToken string) error {
			gotAccess = accessToken
			gotRefresh = refreshToken
			return nil
		},
	}

	body := `{"refresh_token":"refresh-raw"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer access-raw")
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-raw", gotAccess)
	assert.Equal(t, "refresh-raw", gotRefresh)
}

func TestMeSurfacesNotFound(t *testing.T) {
	svc := &mockService{
		currentUserFn: func(context.Context) (service.User, error) {
			return service.User{}, apperror.New(apperror.NotFound, "User not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
