package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

const testKeySecret = "rzp_test_secret"

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GatewayOrder), args.Error(1)
}

type MockPaymentRepo struct {
	mock.Mock
}

func (m *MockPaymentRepo) CreatePaymentOrder(ctx context.Context, order *types.PaymentOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPaymentRepo) GetPaymentOrder(ctx context.Context, id string) (*types.PaymentOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PaymentOrder), args.Error(1)
}

func (m *MockPaymentRepo) MarkPaid(ctx context.Context, id, paymentID string) error {
	args := m.Called(ctx, id, paymentID)
	return args.Error(0)
}

func (m *MockPaymentRepo) MarkApplied(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockSubscriptions struct {
	mock.Mock
}

func (m *MockSubscriptions) CheckStatus(ctx context.Context, userID uuid.UUID) types.SubscriptionStatus {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.SubscriptionStatus)
}

func (m *MockSubscriptions) Upgrade(ctx context.Context, userID uuid.UUID, plan types.Plan, months int) (types.SubscriptionStatus, error) {
	args := m.Called(ctx, userID, plan, months)
	return args.Get(0).(types.SubscriptionStatus), args.Error(1)
}

func (m *MockSubscriptions) Cancel(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSubscriptions) EffectiveLimits(ctx context.Context, userID uuid.UUID) types.PlanLimits {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.PlanLimits)
}

func setupPaymentService() (*ServiceImpl, *MockGateway, *MockPaymentRepo, *MockSubscriptions) {
	gw := new(MockGateway)
	repo := new(MockPaymentRepo)
	subs := new(MockSubscriptions)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prices := map[types.Plan]int64{types.PlanStarter: 199, types.PlanPro: 499}
	return NewPaymentService(gw, repo, subs, prices, "rzp_test_key", testKeySecret, nil, logger), gw, repo, subs
}

func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func planPtr(p types.Plan) *types.Plan { return &p }

func TestPaymentService_CreateOrder_InvalidAmounts(t *testing.T) {
	userID := uuid.New()
	for name, amount := range map[string]float64{
		"zero":      0,
		"negative":  -5,
		"nan":       math.NaN(),
		"inf":       math.Inf(1),
		"too small": 0.001,
	} {
		t.Run(name, func(t *testing.T) {
			svc, gw, repo, _ := setupPaymentService()

			handle, err := svc.CreateOrder(context.Background(), userID, types.CreatePaymentOrderParams{Amount: amount})
			assert.ErrorIs(t, err, types.ErrBadRequest)
			assert.Nil(t, handle)
			gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "CreatePaymentOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_CreateOrder_Unauthenticated(t *testing.T) {
	svc, gw, _, _ := setupPaymentService()

	_, err := svc.CreateOrder(context.Background(), uuid.Nil, types.CreatePaymentOrderParams{Amount: 499})
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
	gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestPaymentService_CreateOrder_PlainAmount(t *testing.T) {
	svc, gw, repo, _ := setupPaymentService()
	userID := uuid.New()

	gw.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req GatewayOrderRequest) bool {
		return req.Amount == 49950 && req.Currency == "INR" && req.PaymentCapture == 1 &&
			len(req.Receipt) == len("rcpt_")+32
	})).Return(&GatewayOrder{ID: "order_Abc123", Amount: 49950, Currency: "INR", CreatedAt: 1767225600}, nil)
	repo.On("CreatePaymentOrder", mock.Anything, mock.MatchedBy(func(o *types.PaymentOrder) bool {
		return o.ID == "order_Abc123" && o.UserID == userID && o.Plan == "" && o.Months == 0 && o.AmountMinor == 49950
	})).Return(nil)

	handle, err := svc.CreateOrder(context.Background(), userID, types.CreatePaymentOrderParams{Amount: 499.5})
	require.NoError(t, err)
	assert.Equal(t, "order_Abc123", handle.ID)
	assert.Equal(t, int64(49950), handle.Amount)
	assert.Equal(t, "INR", handle.Currency)
	assert.Equal(t, "rzp_test_key", handle.KeyID)
	assert.Equal(t, int64(1767225600), handle.CreatedAt.Unix())
	gw.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestPaymentService_CreateOrder_PlanRecorded(t *testing.T) {
	svc, gw, repo, _ := setupPaymentService()
	userID := uuid.New()

	gw.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req GatewayOrderRequest) bool {
		return req.Amount == 149700 && req.Currency == "USD"
	})).Return(&GatewayOrder{ID: "order_Plan", Amount: 149700, Currency: "USD"}, nil)
	repo.On("CreatePaymentOrder", mock.Anything, mock.MatchedBy(func(o *types.PaymentOrder) bool {
		return o.ID == "order_Plan" && o.UserID == userID && o.Plan == types.PlanPro && o.Months == 3 && o.AmountMinor == 149700
	})).Return(nil)

	handle, err := svc.CreateOrder(context.Background(), userID, types.CreatePaymentOrderParams{
		Amount: 1497, Currency: "usd", Plan: planPtr(types.PlanPro), Months: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "order_Plan", handle.ID)
	gw.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestPaymentService_CreateOrder_PlanRules(t *testing.T) {
	userID := uuid.New()
	tests := []struct {
		name   string
		params types.CreatePaymentOrderParams
	}{
		{"below price", types.CreatePaymentOrderParams{Amount: 100, Plan: planPtr(types.PlanPro)}},
		{"below price for months", types.CreatePaymentOrderParams{Amount: 499, Plan: planPtr(types.PlanPro), Months: 2}},
		{"free plan", types.CreatePaymentOrderParams{Amount: 10, Plan: planPtr(types.PlanFree)}},
		{"unknown plan", types.CreatePaymentOrderParams{Amount: 10, Plan: planPtr(types.Plan("gold"))}},
		{"too many months", types.CreatePaymentOrderParams{Amount: 99999, Plan: planPtr(types.PlanStarter), Months: 37}},
		{"bad currency", types.CreatePaymentOrderParams{Amount: 499, Currency: "RUPEE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gw, _, _ := setupPaymentService()
			_, err := svc.CreateOrder(context.Background(), userID, tt.params)
			assert.ErrorIs(t, err, types.ErrBadRequest)
			gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_CreateOrder_GatewayFailure(t *testing.T) {
	svc, gw, repo, _ := setupPaymentService()

	gw.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, types.ErrUpstream)

	_, err := svc.CreateOrder(context.Background(), uuid.New(), types.CreatePaymentOrderParams{Amount: 499, Plan: planPtr(types.PlanPro)})
	assert.ErrorIs(t, err, types.ErrUpstream)
	repo.AssertNotCalled(t, "CreatePaymentOrder", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_Success(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()
	userID := uuid.New()
	order := &types.PaymentOrder{ID: "order_1", UserID: userID, Plan: types.PlanStarter, Months: 2, Status: types.PaymentStatusCreated}
	want := types.SubscriptionStatus{Plan: types.PlanStarter, IsActive: true, DaysRemaining: 61}

	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(order, nil)
	repo.On("MarkPaid", mock.Anything, "order_1", "pay_1").Return(nil)
	subs.On("Upgrade", mock.Anything, userID, types.PlanStarter, 2).Return(want, nil)
	repo.On("MarkApplied", mock.Anything, "order_1").Return(nil)

	status, err := svc.VerifyPayment(context.Background(), userID, types.VerifyPaymentParams{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("order_1", "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, want, status)
	repo.AssertExpectations(t)
	subs.AssertExpectations(t)
}

func TestPaymentService_VerifyPayment_BadSignature(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()

	_, err := svc.VerifyPayment(context.Background(), uuid.New(), types.VerifyPaymentParams{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("order_1", "pay_2"),
	})
	assert.ErrorIs(t, err, types.ErrForbidden)
	repo.AssertNotCalled(t, "GetPaymentOrder", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
	subs.AssertNotCalled(t, "Upgrade", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_OtherUsersOrder(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()
	order := &types.PaymentOrder{ID: "order_1", UserID: uuid.New(), Plan: types.PlanPro, Months: 1, Status: types.PaymentStatusCreated}
	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(order, nil)

	_, err := svc.VerifyPayment(context.Background(), uuid.New(), types.VerifyPaymentParams{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("order_1", "pay_1"),
	})
	assert.ErrorIs(t, err, types.ErrForbidden)
	repo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
	subs.AssertNotCalled(t, "Upgrade", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_Replay(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()
	userID := uuid.New()
	paymentID := "pay_1"
	applied := time.Now().Add(-time.Hour)
	order := &types.PaymentOrder{ID: "order_1", UserID: userID, Plan: types.PlanPro, Months: 1, Status: types.PaymentStatusPaid, PaymentID: &paymentID, AppliedAt: &applied}
	current := types.SubscriptionStatus{Plan: types.PlanPro, IsActive: true, DaysRemaining: 30}

	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(order, nil)
	subs.On("CheckStatus", mock.Anything, userID).Return(current)

	status, err := svc.VerifyPayment(context.Background(), userID, types.VerifyPaymentParams{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("order_1", "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, current, status)
	repo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
	subs.AssertNotCalled(t, "Upgrade", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_PaidWithDifferentPayment(t *testing.T) {
	svc, _, repo, _ := setupPaymentService()
	userID := uuid.New()
	paymentID := "pay_other"
	order := &types.PaymentOrder{ID: "order_1", UserID: userID, Plan: types.PlanPro, Months: 1, Status: types.PaymentStatusPaid, PaymentID: &paymentID}
	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(order, nil)

	_, err := svc.VerifyPayment(context.Background(), userID, types.VerifyPaymentParams{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("order_1", "pay_1"),
	})
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestPaymentService_VerifyPayment_LostRace(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()
	userID := uuid.New()
	order := &types.PaymentOrder{ID: "order_1", UserID: userID, Plan: types.PlanPro, Months: 1, Status: types.PaymentStatusCreated}
	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(order, nil)
	repo.On("MarkPaid", mock.Anything, "order_1", "pay_1").Return(types.ErrConflict)

	_, err := svc.VerifyPayment(context.Background(), userID, types.VerifyPaymentParams{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("order_1", "pay_1"),
	})
	assert.ErrorIs(t, err, types.ErrConflict)
	subs.AssertNotCalled(t, "Upgrade", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_MissingFields(t *testing.T) {
	svc, _, repo, _ := setupPaymentService()

	_, err := svc.VerifyPayment(context.Background(), uuid.New(), types.VerifyPaymentParams{OrderID: "order_1"})
	assert.ErrorIs(t, err, types.ErrBadRequest)
	repo.AssertNotCalled(t, "GetPaymentOrder", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_RetryAfterFailedUpgrade(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()
	userID := uuid.New()
	paymentID := "pay_1"
	params := types.VerifyPaymentParams{OrderID: "order_1", PaymentID: paymentID, Signature: sign("order_1", paymentID)}
	created := &types.PaymentOrder{ID: "order_1", UserID: userID, Plan: types.PlanPro, Months: 1, Status: types.PaymentStatusCreated}
	paid := &types.PaymentOrder{ID: "order_1", UserID: userID, Plan: types.PlanPro, Months: 1, Status: types.PaymentStatusPaid, PaymentID: &paymentID}
	want := types.SubscriptionStatus{Plan: types.PlanPro, IsActive: true, DaysRemaining: 30}

	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(created, nil).Once()
	repo.On("MarkPaid", mock.Anything, "order_1", paymentID).Return(nil).Once()
	subs.On("Upgrade", mock.Anything, userID, types.PlanPro, 1).Return(types.SubscriptionStatus{}, errors.New("db down")).Once()

	_, err := svc.VerifyPayment(context.Background(), userID, params)
	require.Error(t, err)
	repo.AssertNotCalled(t, "MarkApplied", mock.Anything, mock.Anything)

	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(paid, nil).Once()
	subs.On("Upgrade", mock.Anything, userID, types.PlanPro, 1).Return(want, nil).Once()
	repo.On("MarkApplied", mock.Anything, "order_1").Return(nil).Once()

	status, err := svc.VerifyPayment(context.Background(), userID, params)
	require.NoError(t, err)
	assert.Equal(t, want, status)
	repo.AssertNumberOfCalls(t, "MarkPaid", 1)
	subs.AssertNumberOfCalls(t, "Upgrade", 2)
	subs.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestPaymentService_VerifyPayment_PlainOrder(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()
	userID := uuid.New()
	order := &types.PaymentOrder{ID: "order_2", UserID: userID, AmountMinor: 49950, Status: types.PaymentStatusCreated}
	current := types.FreeStatus()

	repo.On("GetPaymentOrder", mock.Anything, "order_2").Return(order, nil)
	repo.On("MarkPaid", mock.Anything, "order_2", "pay_2").Return(nil)
	repo.On("MarkApplied", mock.Anything, "order_2").Return(nil)
	subs.On("CheckStatus", mock.Anything, userID).Return(current)

	status, err := svc.VerifyPayment(context.Background(), userID, types.VerifyPaymentParams{
		OrderID: "order_2", PaymentID: "pay_2", Signature: sign("order_2", "pay_2"),
	})
	require.NoError(t, err)
	assert.Equal(t, current, status)
	subs.AssertNotCalled(t, "Upgrade", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestPaymentService_VerifyPayment_MarkAppliedFailureStillSucceeds(t *testing.T) {
	svc, _, repo, subs := setupPaymentService()
	userID := uuid.New()
	order := &types.PaymentOrder{ID: "order_1", UserID: userID, Plan: types.PlanPro, Months: 1, Status: types.PaymentStatusCreated}
	want := types.SubscriptionStatus{Plan: types.PlanPro, IsActive: true, DaysRemaining: 30}

	repo.On("GetPaymentOrder", mock.Anything, "order_1").Return(order, nil)
	repo.On("MarkPaid", mock.Anything, "order_1", "pay_1").Return(nil)
	subs.On("Upgrade", mock.Anything, userID, types.PlanPro, 1).Return(want, nil)
	repo.On("MarkApplied", mock.Anything, "order_1").Return(errors.New("db down"))

	status, err := svc.VerifyPayment(context.Background(), userID, types.VerifyPaymentParams{
		OrderID: "order_1", PaymentID: "pay_1", Signature: sign("order_1", "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, want, status)
}
