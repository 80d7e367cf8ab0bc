package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/storelink-api/internal/domain/profiles"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/observability"
)

var _ Service = (*ServiceImpl)(nil)

// Service manages a seller's plan. A uuid.Nil user id means no authenticated identity.
type Service interface {
	// CheckStatus never fails: missing identity, missing profile or storage errors read as free.
	CheckStatus(ctx context.Context, userID uuid.UUID) types.SubscriptionStatus
	Upgrade(ctx context.Context, userID uuid.UUID, plan types.Plan, durationMonths int) (types.SubscriptionStatus, error)
	Cancel(ctx context.Context, userID uuid.UUID) error
	EffectiveLimits(ctx context.Context, userID uuid.UUID) types.PlanLimits
}

// Invalidator drops cached per-user views after a plan change.
type Invalidator interface {
	Invalidate(userID uuid.UUID)
}

type ServiceImpl struct {
	logger  *slog.Logger
	repo    profiles.Repository
	cache   Invalidator
	metrics *observability.Metrics
	now     func() time.Time
}

func NewSubscriptionService(repo profiles.Repository, cache Invalidator, metrics *observability.Metrics, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *ServiceImpl) CheckStatus(ctx context.Context, userID uuid.UUID) types.SubscriptionStatus {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "CheckStatus", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if userID == uuid.Nil {
		return types.FreeStatus()
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Subscription status unavailable, reporting free",
			slog.String("method", "CheckStatus"),
			slog.String("userID", userID.String()),
			slog.Any("error", err))
		span.RecordError(err)
		return types.FreeStatus()
	}

	status := types.StatusAt(profile, s.now())
	span.SetAttributes(attribute.String("subscription.plan", string(status.Plan)), attribute.Bool("subscription.active", status.IsActive))
	span.SetStatus(codes.Ok, "status computed")
	return status
}

func (s *ServiceImpl) Upgrade(ctx context.Context, userID uuid.UUID, plan types.Plan, durationMonths int) (types.SubscriptionStatus, error) {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "Upgrade", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("subscription.plan", string(plan)),
		attribute.Int("subscription.months", durationMonths),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Upgrade"), slog.String("userID", userID.String()))

	if userID == uuid.Nil {
		span.SetStatus(codes.Error, "unauthenticated")
		return types.SubscriptionStatus{}, types.ErrUnauthenticated
	}
	if !plan.Valid() {
		span.SetStatus(codes.Error, "unknown plan")
		return types.SubscriptionStatus{}, fmt.Errorf("unknown plan %q: %w", plan, types.ErrBadRequest)
	}
	if durationMonths < 1 {
		span.SetStatus(codes.Error, "invalid duration")
		return types.SubscriptionStatus{}, fmt.Errorf("duration must be at least one month: %w", types.ErrBadRequest)
	}

	now := s.now()
	expiresAt := types.BillingPeriodEnd(now, durationMonths)
	if err := s.repo.UpdateSubscription(ctx, userID, types.SubscriptionUpdate{Plan: plan, ExpiresAt: &expiresAt}); err != nil {
		l.ErrorContext(ctx, "Failed to upgrade subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return types.SubscriptionStatus{}, fmt.Errorf("failed to upgrade subscription: %w", err)
	}
	s.invalidate(userID)
	s.metrics.SubscriptionChanged("upgrade", string(plan))

	l.InfoContext(ctx, "Subscription upgraded", slog.String("plan", string(plan)), slog.Time("expiresAt", expiresAt))
	span.SetStatus(codes.Ok, "upgraded")
	return types.StatusAt(&types.Profile{ID: userID, SubscriptionPlan: plan, SubscriptionExpiresAt: &expiresAt}, now), nil
}

func (s *ServiceImpl) Cancel(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "Cancel", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if userID == uuid.Nil {
		span.SetStatus(codes.Error, "unauthenticated")
		return types.ErrUnauthenticated
	}

	if err := s.repo.UpdateSubscription(ctx, userID, types.SubscriptionUpdate{Plan: types.PlanFree}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to cancel subscription",
			slog.String("method", "Cancel"), slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	s.invalidate(userID)
	s.metrics.SubscriptionChanged("cancel", string(types.PlanFree))

	span.SetStatus(codes.Ok, "cancelled")
	return nil
}

// EffectiveLimits returns the limits of the plan that currently applies.
func (s *ServiceImpl) EffectiveLimits(ctx context.Context, userID uuid.UUID) types.PlanLimits {
	return s.CheckStatus(ctx, userID).EffectivePlan().Limits()
}

func (s *ServiceImpl) invalidate(userID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}
