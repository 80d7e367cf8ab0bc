package handler

import (
	"net/http"

	"github.com/FACorreiaa/storelink-api/internal/domain/dashboard"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

type DashboardHandler struct {
	service dashboard.Service
}

func NewDashboardHandler(svc dashboard.Service) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// GetDashboard handles GET /api/dashboard.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := interceptors.IdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	d, err := h.service.GetDashboard(r.Context(), identity.UserID)
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, d)
}
