package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/domain/order"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

type OrderHandler struct {
	service order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{service: svc}
}

// PlaceOrder handles the public POST /api/storefront/{slug}/orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var params types.PlaceOrderParams
	if err := api.DecodeJSON(r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	placed, err := h.service.PlaceOrder(r.Context(), chi.URLParam(r, "slug"), params)
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, placed)
}

// ListOrders handles GET /api/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ownerID := uuid.Nil
	if id, ok := interceptors.IdentityFromContext(r.Context()); ok {
		ownerID = id.UserID
	}

	orders, err := h.service.ListOrders(r.Context(), ownerID)
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, orders)
}
