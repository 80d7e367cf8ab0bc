package profiles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service exposes profile reads and the first-session provisioning step.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	EnsureProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	MarkOnboarded(ctx context.Context, userID uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewProfilesService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *ServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "GetProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch profile")
		return nil, fmt.Errorf("error fetching profile: %w", err)
	}

	span.SetStatus(codes.Ok, "Profile fetched")
	return profile, nil
}

// EnsureProfile creates the free profile the first time an identity starts a session.
func (s *ServiceImpl) EnsureProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileService").Start(ctx, "EnsureProfile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "EnsureProfile"), slog.String("userID", userID.String()))

	profile, err := s.repo.CreateProfile(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to ensure profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to ensure profile")
		return nil, fmt.Errorf("error ensuring profile: %w", err)
	}

	l.DebugContext(ctx, "Profile ensured", slog.String("plan", string(profile.SubscriptionPlan)))
	span.SetStatus(codes.Ok, "Profile ensured")
	return profile, nil
}

func (s *ServiceImpl) MarkOnboarded(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkOnboarded(ctx, userID); err != nil {
		return fmt.Errorf("error marking onboarding complete: %w", err)
	}
	return nil
}
