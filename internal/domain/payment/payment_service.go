package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/storelink-api/internal/domain/subscription"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/observability"
)

const (
	maxOrderMonths = 36
	// Largest amount, in minor units, accepted for a single order.
	maxAmountMinor = int64(1) << 50
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, params types.CreatePaymentOrderParams) (*types.OrderHandle, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, params types.VerifyPaymentParams) (types.SubscriptionStatus, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	gateway   Gateway
	repo      Repository
	subs      subscription.Service
	prices    map[types.Plan]int64
	keyID     string
	keySecret string
	metrics   *observability.Metrics
}

// NewPaymentService wires the gateway and order store. prices holds the monthly price per plan
// in major units.
func NewPaymentService(gateway Gateway, repo Repository, subs subscription.Service, prices map[types.Plan]int64,
	keyID, keySecret string, metrics *observability.Metrics, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		gateway:   gateway,
		repo:      repo,
		subs:      subs,
		prices:    prices,
		keyID:     keyID,
		keySecret: keySecret,
		metrics:   metrics,
	}
}

func (s *ServiceImpl) CreateOrder(ctx context.Context, userID uuid.UUID, params types.CreatePaymentOrderParams) (*types.OrderHandle, error) {
	ctx, span := otel.Tracer("PaymentService").Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Float64("order.amount", params.Amount),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateOrder"))

	fail := func(outcome string, err error) (*types.OrderHandle, error) {
		s.metrics.PaymentOrder("create", outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	if userID == uuid.Nil {
		return fail("unauthenticated", fmt.Errorf("create payment order: %w", types.ErrUnauthenticated))
	}

	amountMinor, err := toMinorUnits(params.Amount)
	if err != nil {
		return fail("invalid", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = types.DefaultCurrency
	}
	if len(currency) != 3 {
		return fail("invalid", fmt.Errorf("currency must be a 3 letter code: %w", types.ErrBadRequest))
	}

	var (
		plan   types.Plan
		months int
	)
	if params.Plan != nil {
		plan = *params.Plan
		months = params.Months
		if months == 0 {
			months = 1
		}
		if err := s.checkPlanAmount(plan, months, amountMinor); err != nil {
			return fail("invalid", err)
		}
	}

	order, err := s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		Amount:         amountMinor,
		Currency:       currency,
		Receipt:        "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		PaymentCapture: 1,
		Notes:          map[string]string{"user_id": userID.String(), "plan": string(plan)},
	})
	if err != nil {
		l.ErrorContext(ctx, "Gateway order creation failed", slog.String("userID", userID.String()), slog.Any("error", err))
		return fail("gateway_error", fmt.Errorf("create gateway order: %w", err))
	}

	createdAt := time.Now().UTC()
	if order.CreatedAt > 0 {
		createdAt = time.Unix(order.CreatedAt, 0).UTC()
	}

	record := &types.PaymentOrder{
		ID:          order.ID,
		UserID:      userID,
		Plan:        plan,
		Months:      months,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
	}
	if err := s.repo.CreatePaymentOrder(ctx, record); err != nil {
		l.ErrorContext(ctx, "Failed to record payment order", slog.String("orderID", order.ID), slog.Any("error", err))
		return fail("store_error", fmt.Errorf("record payment order: %w", err))
	}

	s.metrics.PaymentOrder("create", "success")
	span.SetAttributes(attribute.String("order.id", order.ID))
	span.SetStatus(codes.Ok, "order created")
	l.InfoContext(ctx, "Payment order created", slog.String("orderID", order.ID), slog.Int64("amount", order.Amount))

	return &types.OrderHandle{
		ID:        order.ID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		CreatedAt: createdAt,
		KeyID:     s.keyID,
	}, nil
}

func (s *ServiceImpl) checkPlanAmount(plan types.Plan, months int, amountMinor int64) error {
	if !plan.Valid() || plan == types.PlanFree {
		return fmt.Errorf("plan %q cannot be purchased: %w", plan, types.ErrBadRequest)
	}
	if months < 1 || months > maxOrderMonths {
		return fmt.Errorf("months must be between 1 and %d: %w", maxOrderMonths, types.ErrBadRequest)
	}
	price, ok := s.prices[plan]
	if !ok {
		return fmt.Errorf("no price configured for plan %q: %w", plan, types.ErrBadRequest)
	}
	if want := price * 100 * int64(months); amountMinor < want {
		return fmt.Errorf("amount %d below plan price %d: %w", amountMinor, want, types.ErrBadRequest)
	}
	return nil
}

// VerifyPayment checks the checkout signature, marks the order paid and applies the plan.
// A replay of an already applied payment returns the current status without mutating anything;
// a replay of a paid but unapplied one applies it.
func (s *ServiceImpl) VerifyPayment(ctx context.Context, userID uuid.UUID, params types.VerifyPaymentParams) (types.SubscriptionStatus, error) {
	ctx, span := otel.Tracer("PaymentService").Start(ctx, "VerifyPayment", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("order.id", params.OrderID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "VerifyPayment"), slog.String("orderID", params.OrderID))

	fail := func(outcome string, err error) (types.SubscriptionStatus, error) {
		s.metrics.PaymentOrder("verify", outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return types.SubscriptionStatus{}, err
	}

	if userID == uuid.Nil {
		return fail("unauthenticated", fmt.Errorf("verify payment: %w", types.ErrUnauthenticated))
	}
	if params.OrderID == "" || params.PaymentID == "" || params.Signature == "" {
		return fail("invalid", fmt.Errorf("order id, payment id and signature are required: %w", types.ErrBadRequest))
	}
	if !s.validSignature(params.OrderID, params.PaymentID, params.Signature) {
		l.WarnContext(ctx, "Payment signature mismatch", slog.String("userID", userID.String()))
		return fail("bad_signature", fmt.Errorf("payment signature mismatch: %w", types.ErrForbidden))
	}

	order, err := s.repo.GetPaymentOrder(ctx, params.OrderID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			l.ErrorContext(ctx, "Failed to load payment order", slog.Any("error", err))
		}
		return fail("lookup_error", fmt.Errorf("load payment order: %w", err))
	}
	if order.UserID != userID {
		return fail("forbidden", fmt.Errorf("payment order belongs to another user: %w", types.ErrForbidden))
	}

	switch {
	case order.Status != types.PaymentStatusPaid:
		if err := s.repo.MarkPaid(ctx, order.ID, params.PaymentID); err != nil {
			if !errors.Is(err, types.ErrConflict) {
				l.ErrorContext(ctx, "Failed to mark payment order paid", slog.Any("error", err))
			}
			return fail("store_error", fmt.Errorf("mark payment order paid: %w", err))
		}
	case order.PaymentID == nil || *order.PaymentID != params.PaymentID:
		return fail("conflict", fmt.Errorf("payment order already paid: %w", types.ErrConflict))
	case order.AppliedAt != nil:
		s.metrics.PaymentOrder("verify", "replay")
		span.SetStatus(codes.Ok, "already applied")
		return s.subs.CheckStatus(ctx, userID), nil
	default:
		// Paid by this payment but the plan never reached the profile.
		l.WarnContext(ctx, "Resuming unapplied paid order", slog.String("userID", userID.String()))
	}

	status, err := s.applyPaidOrder(ctx, userID, order)
	if err != nil {
		l.ErrorContext(ctx, "Paid order could not be applied",
			slog.String("userID", userID.String()),
			slog.String("paymentID", params.PaymentID),
			slog.Any("error", err))
		return fail("upgrade_error", fmt.Errorf("apply paid plan: %w", err))
	}

	s.metrics.PaymentOrder("verify", "success")
	span.SetStatus(codes.Ok, "payment verified")
	l.InfoContext(ctx, "Payment verified", slog.String("userID", userID.String()), slog.String("plan", string(order.Plan)))
	return status, nil
}

// applyPaidOrder writes the paid plan to the profile and then stamps the order applied. Until
// the stamp lands, verifying the same payment again re-runs the upgrade.
func (s *ServiceImpl) applyPaidOrder(ctx context.Context, userID uuid.UUID, order *types.PaymentOrder) (types.SubscriptionStatus, error) {
	var status types.SubscriptionStatus
	if order.Plan == "" {
		status = s.subs.CheckStatus(ctx, userID)
	} else {
		var err error
		status, err = s.subs.Upgrade(ctx, userID, order.Plan, order.Months)
		if err != nil {
			return types.SubscriptionStatus{}, err
		}
	}
	if err := s.repo.MarkApplied(ctx, order.ID); err != nil {
		// The plan is in place; a later retry only refreshes the same period.
		s.logger.WarnContext(ctx, "Failed to mark payment order applied",
			slog.String("method", "VerifyPayment"),
			slog.String("orderID", order.ID),
			slog.Any("error", err))
	}
	return status, nil
}

func (s *ServiceImpl) validSignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func toMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("amount must be a positive number: %w", types.ErrBadRequest)
	}
	minor := math.Round(amount * 100)
	if minor < 1 || minor > float64(maxAmountMinor) {
		return 0, fmt.Errorf("amount out of range: %w", types.ErrBadRequest)
	}
	return int64(minor), nil
}
