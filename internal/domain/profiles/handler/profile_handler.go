package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/FACorreiaa/storelink-api/internal/domain/profiles"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

type ProfileHandler struct {
	service profiles.Service
}

func NewProfileHandler(svc profiles.Service) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

type profileResponse struct {
	Profile      *types.Profile           `json:"profile"`
	Subscription types.SubscriptionStatus `json:"subscription"`
}

// GetProfile handles GET /api/profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := interceptors.IdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "profile not found")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to load profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profileResponse{
		Profile:      profile,
		Subscription: types.StatusAt(profile, time.Now()),
	})
}
