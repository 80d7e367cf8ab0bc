package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/domain/store"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

type StoreHandler struct {
	service store.Service
}

func NewStoreHandler(svc store.Service) *StoreHandler {
	return &StoreHandler{service: svc}
}

// CreateStore handles POST /api/stores.
func (h *StoreHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var params types.CreateStoreParams
	if err := api.DecodeJSON(r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.service.CreateStore(r.Context(), ownerID(r), params)
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, s)
}

// ListStores handles GET /api/stores.
func (h *StoreHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context(), ownerID(r))
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, stores)
}

// GetStorefront handles the public GET /api/storefront/{slug}.
func (h *StoreHandler) GetStorefront(w http.ResponseWriter, r *http.Request) {
	sf, err := h.service.GetStorefront(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sf)
}

// CreateProduct handles POST /api/products.
func (h *StoreHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var params types.CreateProductParams
	if err := api.DecodeJSON(r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.CreateProduct(r.Context(), ownerID(r), params)
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, p)
}

// ListProducts handles GET /api/stores/{storeID}/products.
func (h *StoreHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid store id")
		return
	}

	products, err := h.service.ListProducts(r.Context(), ownerID(r), storeID)
	if err != nil {
		api.HTTPError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, products)
}

// DeleteProduct handles DELETE /api/products/{productID}.
func (h *StoreHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.service.DeleteProduct(r.Context(), ownerID(r), productID); err != nil {
		api.HTTPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ownerID(r *http.Request) uuid.UUID {
	if id, ok := interceptors.IdentityFromContext(r.Context()); ok {
		return id.UserID
	}
	return uuid.Nil
}
