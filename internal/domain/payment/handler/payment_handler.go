package handler

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/domain/payment"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

const (
	PaymentServiceName = "storelink.v1.PaymentService"

	PaymentServiceCreateOrderProcedure   = "/storelink.v1.PaymentService/CreateOrder"
	PaymentServiceVerifyPaymentProcedure = "/storelink.v1.PaymentService/VerifyPayment"
)

type CreateOrderResponse struct {
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Order   *types.OrderHandle `json:"order,omitempty"`
}

type VerifyPaymentResponse struct {
	Success      bool                      `json:"success"`
	Error        string                    `json:"error,omitempty"`
	Subscription *types.SubscriptionStatus `json:"subscription,omitempty"`
}

type PaymentHandler struct {
	service payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

func NewPaymentServiceHandler(h *PaymentHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(PaymentServiceCreateOrderProcedure, connect.NewUnaryHandler(PaymentServiceCreateOrderProcedure, h.CreateOrder, opts...))
	mux.Handle(PaymentServiceVerifyPaymentProcedure, connect.NewUnaryHandler(PaymentServiceVerifyPaymentProcedure, h.VerifyPayment, opts...))
	return "/" + PaymentServiceName + "/", mux
}

// CreateOrder reports a missing identity or bad input as {success: false, error}.
// Gateway and signature failures stay connect errors.
func (h *PaymentHandler) CreateOrder(ctx context.Context, req *connect.Request[types.CreatePaymentOrderParams]) (*connect.Response[CreateOrderResponse], error) {
	handle, err := h.service.CreateOrder(ctx, userIDFromContext(ctx), *req.Msg)
	if err != nil {
		if msg, ok := api.ResultError(err); ok {
			return connect.NewResponse(&CreateOrderResponse{Error: msg}), nil
		}
		return nil, api.ConnectError(err)
	}
	return connect.NewResponse(&CreateOrderResponse{Success: true, Order: handle}), nil
}

func (h *PaymentHandler) VerifyPayment(ctx context.Context, req *connect.Request[types.VerifyPaymentParams]) (*connect.Response[VerifyPaymentResponse], error) {
	status, err := h.service.VerifyPayment(ctx, userIDFromContext(ctx), *req.Msg)
	if err != nil {
		if msg, ok := api.ResultError(err); ok {
			return connect.NewResponse(&VerifyPaymentResponse{Error: msg}), nil
		}
		return nil, api.ConnectError(err)
	}
	return connect.NewResponse(&VerifyPaymentResponse{Success: true, Subscription: &status}), nil
}

func userIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := interceptors.IdentityFromContext(ctx); ok {
		return id.UserID
	}
	return uuid.Nil
}
