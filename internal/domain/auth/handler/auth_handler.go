package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/FACorreiaa/storelink-api/internal/domain/auth/service"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

type startSessionRequest struct {
	AccessToken string `json:"access_token"`
}

type sessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	Identity      *types.Identity `json:"identity,omitempty"`
}

// StartSession handles POST /auth/session. The token comes from the body or the
// Authorization header.
func (h *AuthHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength != 0 {
		if err := api.DecodeJSON(r, &req); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	token := strings.TrimSpace(req.AccessToken)
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if token == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "access token is required")
		return
	}

	id, err := h.service.StartSession(r.Context(), w, r, token)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "invalid or expired access token")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to start session")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, sessionResponse{Authenticated: true, Identity: &id})
}

// EndSession handles DELETE /auth/session.
func (h *AuthHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndSession(w, r); err != nil {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to end session")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// GetSession handles GET /auth/session.
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := interceptors.IdentityFromContext(r.Context())
	if !ok {
		api.WriteJSONResponse(w, r, http.StatusOK, sessionResponse{})
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sessionResponse{Authenticated: true, Identity: &id})
}

// IdentityResolver resolves the caller of an HTTP request.
type IdentityResolver interface {
	CurrentIdentity(r *http.Request) (types.Identity, bool)
}

// IdentityMiddleware attaches the resolved identity to the request context. Anonymous
// requests pass through; authorization is decided downstream.
func IdentityMiddleware(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := resolver.CurrentIdentity(r); ok {
				r = r.WithContext(interceptors.WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects anonymous API requests with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := interceptors.IdentityFromContext(r.Context()); !ok {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
