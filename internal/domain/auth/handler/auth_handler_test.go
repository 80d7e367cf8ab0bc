package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/storelink-api/internal/domain/auth/servicetest"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

func TestAuthHandler_StartSession(t *testing.T) {
	svc, tokens, profiles := servicetest.NewTestAuthService()
	h := NewAuthHandler(svc)
	userID := uuid.New()
	token, err := tokens.IssueAccessToken(userID, "seller@example.com", time.Hour)
	require.NoError(t, err)

	t.Run("token in body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(`{"access_token":"`+token+`"}`))
		h.StartSession(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var body sessionResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.True(t, body.Authenticated)
		assert.Equal(t, userID, body.Identity.UserID)
		assert.NotEmpty(t, rec.Result().Cookies())
		assert.Equal(t, 1, profiles.Count())
	})

	t.Run("token in header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/session", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		h.StartSession(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.StartSession(rec, httptest.NewRequest(http.MethodPost, "/auth/session", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(`{"access_token":"bogus"}`))
		h.StartSession(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthHandler_EndSession(t *testing.T) {
	svc, _, _ := servicetest.NewTestAuthService()
	h := NewAuthHandler(svc)

	rec := httptest.NewRecorder()
	h.EndSession(rec, httptest.NewRequest(http.MethodDelete, "/auth/session", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIdentityMiddleware(t *testing.T) {
	svc, tokens, _ := servicetest.NewTestAuthService()
	userID := uuid.New()
	token, err := tokens.IssueAccessToken(userID, "", time.Hour)
	require.NoError(t, err)

	var seen bool
	var seenID uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := interceptors.IdentityFromContext(r.Context())
		seen, seenID = ok, id.UserID
	})
	mw := IdentityMiddleware(svc)(next)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	mw.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, seen)
	assert.Equal(t, userID, seenID)

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.False(t, seen)
}

func TestRequireIdentity(t *testing.T) {
	h := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stores", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
