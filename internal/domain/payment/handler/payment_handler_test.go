package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

type stubPaymentService struct {
	gotUserID uuid.UUID
	gotParams types.CreatePaymentOrderParams
}

func (s *stubPaymentService) CreateOrder(_ context.Context, userID uuid.UUID, params types.CreatePaymentOrderParams) (*types.OrderHandle, error) {
	s.gotUserID, s.gotParams = userID, params
	if userID == uuid.Nil {
		return nil, types.ErrUnauthenticated
	}
	if params.Amount <= 0 {
		return nil, fmt.Errorf("amount must be a positive number: %w", types.ErrBadRequest)
	}
	return &types.OrderHandle{ID: "order_1", Amount: int64(params.Amount * 100), Currency: "INR", CreatedAt: time.Unix(0, 0).UTC(), KeyID: "rzp_key"}, nil
}

func (s *stubPaymentService) VerifyPayment(_ context.Context, userID uuid.UUID, params types.VerifyPaymentParams) (types.SubscriptionStatus, error) {
	if userID == uuid.Nil {
		return types.SubscriptionStatus{}, types.ErrUnauthenticated
	}
	if params.Signature != "good" {
		return types.SubscriptionStatus{}, types.ErrForbidden
	}
	return types.SubscriptionStatus{Plan: types.PlanPro, IsActive: true, DaysRemaining: 31}, nil
}

func newTestServer(t *testing.T, svc *stubPaymentService, userID uuid.UUID) *httptest.Server {
	t.Helper()
	path, h := NewPaymentServiceHandler(NewPaymentHandler(svc), connect.WithCodec(api.JSONCodec{}))
	mux := http.NewServeMux()
	mux.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != uuid.Nil {
			r = r.WithContext(interceptors.WithIdentity(r.Context(), types.Identity{UserID: userID}))
		}
		h.ServeHTTP(w, r)
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPaymentHandler_CreateOrder(t *testing.T) {
	svc := &stubPaymentService{}
	userID := uuid.New()
	srv := newTestServer(t, svc, userID)
	client := connect.NewClient[types.CreatePaymentOrderParams, CreateOrderResponse](srv.Client(), srv.URL+PaymentServiceCreateOrderProcedure, connect.WithCodec(api.JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&types.CreatePaymentOrderParams{Amount: 499}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Success)
	require.NotNil(t, resp.Msg.Order)
	assert.Equal(t, "order_1", resp.Msg.Order.ID)
	assert.Equal(t, int64(49900), resp.Msg.Order.Amount)
	assert.Equal(t, "rzp_key", resp.Msg.Order.KeyID)
	assert.Equal(t, userID, svc.gotUserID)

	resp, err = client.CallUnary(context.Background(), connect.NewRequest(&types.CreatePaymentOrderParams{Amount: -5}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, "amount must be a positive number", resp.Msg.Error)
	assert.Nil(t, resp.Msg.Order)
}

func TestPaymentHandler_CreateOrder_Anonymous(t *testing.T) {
	srv := newTestServer(t, &stubPaymentService{}, uuid.Nil)
	client := connect.NewClient[types.CreatePaymentOrderParams, CreateOrderResponse](srv.Client(), srv.URL+PaymentServiceCreateOrderProcedure, connect.WithCodec(api.JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&types.CreatePaymentOrderParams{Amount: 499}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, api.MsgNotAuthenticated, resp.Msg.Error)
}

func TestPaymentHandler_VerifyPayment(t *testing.T) {
	srv := newTestServer(t, &stubPaymentService{}, uuid.New())
	client := connect.NewClient[types.VerifyPaymentParams, VerifyPaymentResponse](srv.Client(), srv.URL+PaymentServiceVerifyPaymentProcedure, connect.WithCodec(api.JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&types.VerifyPaymentParams{OrderID: "order_1", PaymentID: "pay_1", Signature: "good"}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Success)
	require.NotNil(t, resp.Msg.Subscription)
	assert.Equal(t, types.PlanPro, resp.Msg.Subscription.Plan)

	_, err = client.CallUnary(context.Background(), connect.NewRequest(&types.VerifyPaymentParams{OrderID: "order_1", PaymentID: "pay_1", Signature: "bad"}))
	require.Error(t, err)
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
}

func TestPaymentHandler_VerifyPayment_Anonymous(t *testing.T) {
	srv := newTestServer(t, &stubPaymentService{}, uuid.Nil)
	client := connect.NewClient[types.VerifyPaymentParams, VerifyPaymentResponse](srv.Client(), srv.URL+PaymentServiceVerifyPaymentProcedure, connect.WithCodec(api.JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&types.VerifyPaymentParams{OrderID: "order_1", PaymentID: "pay_1", Signature: "good"}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, api.MsgNotAuthenticated, resp.Msg.Error)
	assert.Nil(t, resp.Msg.Subscription)
}
