package handler

import (
	"context"
	"errors"
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

type stubService struct {
	gotUserID uuid.UUID
	gotPlan   types.Plan
	gotMonths int
	err       error
}

func (s *stubService) CheckStatus(_ context.Context, userID uuid.UUID) types.SubscriptionStatus {
	s.gotUserID = userID
	if userID == uuid.Nil {
		return types.FreeStatus()
	}
	until := time.Now().Add(72 * time.Hour)
	return types.SubscriptionStatus{Plan: types.PlanPro, IsActive: true, ValidUntil: &until, DaysRemaining: 3}
}

func (s *stubService) Upgrade(_ context.Context, userID uuid.UUID, plan types.Plan, months int) (types.SubscriptionStatus, error) {
	s.gotUserID, s.gotPlan, s.gotMonths = userID, plan, months
	if s.err != nil {
		return types.SubscriptionStatus{}, s.err
	}
	return types.SubscriptionStatus{Plan: plan, IsActive: true}, nil
}

func (s *stubService) Cancel(_ context.Context, userID uuid.UUID) error {
	s.gotUserID = userID
	return s.err
}

func (s *stubService) EffectiveLimits(context.Context, uuid.UUID) types.PlanLimits {
	return types.PlanFree.Limits()
}

func startServer(t *testing.T, svc *stubService, identity *types.Identity) string {
	t.Helper()
	path, h := NewSubscriptionServiceHandler(NewSubscriptionHandler(svc), connect.WithCodec(api.JSONCodec{}))
	mux := http.NewServeMux()
	mux.Handle(path, h)

	var root http.Handler = mux
	if identity != nil {
		root = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mux.ServeHTTP(w, r.WithContext(interceptors.WithIdentity(r.Context(), *identity)))
		})
	}
	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSubscriptionHandler_CheckStatus(t *testing.T) {
	t.Run("anonymous reads free", func(t *testing.T) {
		svc := &stubService{}
		url := startServer(t, svc, nil)
		client := connect.NewClient[CheckStatusRequest, types.SubscriptionStatus](http.DefaultClient,
			url+SubscriptionServiceCheckStatusProcedure, connect.WithCodec(api.JSONCodec{}))

		resp, err := client.CallUnary(context.Background(), connect.NewRequest(&CheckStatusRequest{}))
		require.NoError(t, err)
		assert.Equal(t, types.PlanFree, resp.Msg.Plan)
		assert.False(t, resp.Msg.IsActive)
		assert.Equal(t, uuid.Nil, svc.gotUserID)
	})

	t.Run("identity is forwarded", func(t *testing.T) {
		svc := &stubService{}
		id := types.Identity{UserID: uuid.New()}
		url := startServer(t, svc, &id)
		client := connect.NewClient[CheckStatusRequest, types.SubscriptionStatus](http.DefaultClient,
			url+SubscriptionServiceCheckStatusProcedure, connect.WithCodec(api.JSONCodec{}))

		resp, err := client.CallUnary(context.Background(), connect.NewRequest(&CheckStatusRequest{}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.IsActive)
		assert.Equal(t, 3, resp.Msg.DaysRemaining)
		assert.Equal(t, id.UserID, svc.gotUserID)
	})
}

func TestSubscriptionHandler_Upgrade(t *testing.T) {
	id := types.Identity{UserID: uuid.New()}

	t.Run("defaults to one month", func(t *testing.T) {
		svc := &stubService{}
		url := startServer(t, svc, &id)
		client := connect.NewClient[UpgradeRequest, UpgradeResponse](http.DefaultClient,
			url+SubscriptionServiceUpgradeProcedure, connect.WithCodec(api.JSONCodec{}))

		resp, err := client.CallUnary(context.Background(), connect.NewRequest(&UpgradeRequest{Plan: "starter"}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.Success)
		assert.Empty(t, resp.Msg.Error)
		require.NotNil(t, resp.Msg.Subscription)
		assert.Equal(t, types.PlanStarter, resp.Msg.Subscription.Plan)
		assert.Equal(t, types.PlanStarter, svc.gotPlan)
		assert.Equal(t, 1, svc.gotMonths)
	})

	t.Run("unknown plan", func(t *testing.T) {
		url := startServer(t, &stubService{}, &id)
		client := connect.NewClient[UpgradeRequest, UpgradeResponse](http.DefaultClient,
			url+SubscriptionServiceUpgradeProcedure, connect.WithCodec(api.JSONCodec{}))

		resp, err := client.CallUnary(context.Background(), connect.NewRequest(&UpgradeRequest{Plan: "gold"}))
		require.NoError(t, err)
		assert.False(t, resp.Msg.Success)
		assert.Equal(t, `unknown plan "gold"`, resp.Msg.Error)
		assert.Nil(t, resp.Msg.Subscription)
	})

	t.Run("service unauthenticated", func(t *testing.T) {
		url := startServer(t, &stubService{err: types.ErrUnauthenticated}, nil)
		client := connect.NewClient[UpgradeRequest, UpgradeResponse](http.DefaultClient,
			url+SubscriptionServiceUpgradeProcedure, connect.WithCodec(api.JSONCodec{}))

		months := 2
		resp, err := client.CallUnary(context.Background(), connect.NewRequest(&UpgradeRequest{Plan: "pro", DurationMonths: &months}))
		require.NoError(t, err)
		assert.False(t, resp.Msg.Success)
		assert.Equal(t, api.MsgNotAuthenticated, resp.Msg.Error)
	})

	t.Run("storage failure stays a connect error", func(t *testing.T) {
		url := startServer(t, &stubService{err: errors.New("connection refused")}, &id)
		client := connect.NewClient[UpgradeRequest, UpgradeResponse](http.DefaultClient,
			url+SubscriptionServiceUpgradeProcedure, connect.WithCodec(api.JSONCodec{}))

		_, err := client.CallUnary(context.Background(), connect.NewRequest(&UpgradeRequest{Plan: "pro"}))
		require.Error(t, err)
		assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
	})
}

func TestSubscriptionHandler_Cancel_Anonymous(t *testing.T) {
	url := startServer(t, &stubService{err: types.ErrUnauthenticated}, nil)
	client := connect.NewClient[CancelRequest, CancelResponse](http.DefaultClient,
		url+SubscriptionServiceCancelProcedure, connect.WithCodec(api.JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&CancelRequest{}))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Success)
	assert.Equal(t, api.MsgNotAuthenticated, resp.Msg.Error)
}

func TestSubscriptionHandler_Cancel(t *testing.T) {
	svc := &stubService{}
	id := types.Identity{UserID: uuid.New()}
	url := startServer(t, svc, &id)
	client := connect.NewClient[CancelRequest, CancelResponse](http.DefaultClient,
		url+SubscriptionServiceCancelProcedure, connect.WithCodec(api.JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&CancelRequest{}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Success)
	assert.Equal(t, id.UserID, svc.gotUserID)
}
