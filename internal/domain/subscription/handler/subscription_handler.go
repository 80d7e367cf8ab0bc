package handler

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/domain/subscription"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

const (
	SubscriptionServiceName = "storelink.v1.SubscriptionService"

	SubscriptionServiceCheckStatusProcedure = "/storelink.v1.SubscriptionService/CheckStatus"
	SubscriptionServiceUpgradeProcedure     = "/storelink.v1.SubscriptionService/Upgrade"
	SubscriptionServiceCancelProcedure      = "/storelink.v1.SubscriptionService/Cancel"
)

type CheckStatusRequest struct{}

type UpgradeRequest struct {
	Plan           string `json:"plan"`
	DurationMonths *int   `json:"duration_months,omitempty"`
}

type UpgradeResponse struct {
	Success      bool                      `json:"success"`
	Error        string                    `json:"error,omitempty"`
	Subscription *types.SubscriptionStatus `json:"subscription,omitempty"`
}

type CancelRequest struct{}

type CancelResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type SubscriptionHandler struct {
	service subscription.Service
}

func NewSubscriptionHandler(svc subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{service: svc}
}

// NewSubscriptionServiceHandler mounts the subscription procedures under one path prefix.
func NewSubscriptionServiceHandler(h *SubscriptionHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(SubscriptionServiceCheckStatusProcedure, connect.NewUnaryHandler(SubscriptionServiceCheckStatusProcedure, h.CheckStatus, opts...))
	mux.Handle(SubscriptionServiceUpgradeProcedure, connect.NewUnaryHandler(SubscriptionServiceUpgradeProcedure, h.Upgrade, opts...))
	mux.Handle(SubscriptionServiceCancelProcedure, connect.NewUnaryHandler(SubscriptionServiceCancelProcedure, h.Cancel, opts...))
	return "/" + SubscriptionServiceName + "/", mux
}

// CheckStatus is public: anonymous callers read as free.
func (h *SubscriptionHandler) CheckStatus(ctx context.Context, _ *connect.Request[CheckStatusRequest]) (*connect.Response[types.SubscriptionStatus], error) {
	status := h.service.CheckStatus(ctx, userIDFromContext(ctx))
	return connect.NewResponse(&status), nil
}

// Upgrade and Cancel report a missing identity or bad input as {success: false, error}.
func (h *SubscriptionHandler) Upgrade(ctx context.Context, req *connect.Request[UpgradeRequest]) (*connect.Response[UpgradeResponse], error) {
	plan, err := types.ParsePlan(req.Msg.Plan)
	if err != nil {
		return upgradeFailure(err)
	}
	months := 1
	if req.Msg.DurationMonths != nil {
		months = *req.Msg.DurationMonths
	}

	status, err := h.service.Upgrade(ctx, userIDFromContext(ctx), plan, months)
	if err != nil {
		return upgradeFailure(err)
	}
	return connect.NewResponse(&UpgradeResponse{Success: true, Subscription: &status}), nil
}

func (h *SubscriptionHandler) Cancel(ctx context.Context, _ *connect.Request[CancelRequest]) (*connect.Response[CancelResponse], error) {
	if err := h.service.Cancel(ctx, userIDFromContext(ctx)); err != nil {
		if msg, ok := api.ResultError(err); ok {
			return connect.NewResponse(&CancelResponse{Error: msg}), nil
		}
		return nil, api.ConnectError(err)
	}
	return connect.NewResponse(&CancelResponse{Success: true}), nil
}

func upgradeFailure(err error) (*connect.Response[UpgradeResponse], error) {
	if msg, ok := api.ResultError(err); ok {
		return connect.NewResponse(&UpgradeResponse{Error: msg}), nil
	}
	return nil, api.ConnectError(err)
}

func userIDFromContext(ctx context.Context) uuid.UUID {
	id, ok := interceptors.IdentityFromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	return id.UserID
}
