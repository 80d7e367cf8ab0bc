package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/db"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines the contract for profile persistence.
type Repository interface {
	// GetProfile returns types.ErrNotFound when the identity has no profile row.
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	// CreateProfile inserts a free profile if none exists and returns the stored row.
	CreateProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	UpdateSubscription(ctx context.Context, userID uuid.UUID, update types.SubscriptionUpdate) error
	MarkOnboarded(ctx context.Context, userID uuid.UUID) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool db.Querier
}

func NewPostgresProfileRepo(pgpool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "GetProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetProfile"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Fetching profile")

	p, err := scanProfile(r.pgpool.QueryRow(ctx, selectProfileSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Profile not found")
			return nil, fmt.Errorf("profile %s: %w", userID, types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to fetch profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching profile: %w", err)
	}

	span.SetStatus(codes.Ok, "Profile fetched")
	return p, nil
}

func (r *RepositoryImpl) CreateProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "CreateProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateProfile"), slog.String("userID", userID.String()))

	tag, err := r.pgpool.Exec(ctx,
		`INSERT INTO profiles (id, subscription_plan) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		userID, types.PlanFree)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error creating profile: %w", err)
	}
	if tag.RowsAffected() > 0 {
		l.InfoContext(ctx, "Profile created")
	}

	p, err := scanProfile(r.pgpool.QueryRow(ctx, selectProfileSQL, userID))
	if err != nil {
		l.ErrorContext(ctx, "Failed to read back profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error reading created profile: %w", err)
	}

	span.SetStatus(codes.Ok, "Profile ensured")
	return p, nil
}

// UpdateSubscription writes plan and expiry; a nil ExpiresAt stores NULL.
func (r *RepositoryImpl) UpdateSubscription(ctx context.Context, userID uuid.UUID, update types.SubscriptionUpdate) error {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "UpdateSubscription", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("subscription.plan", string(update.Plan)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateSubscription"), slog.String("userID", userID.String()))

	query, args, err := updateSubscriptionQuery(userID, update).ToSql()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build subscription update: %w", err)
	}

	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("database error updating subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Profile not found")
		return fmt.Errorf("profile %s: %w", userID, types.ErrNotFound)
	}

	l.InfoContext(ctx, "Subscription updated", slog.String("plan", string(update.Plan)))
	span.SetStatus(codes.Ok, "Subscription updated")
	return nil
}

func (r *RepositoryImpl) MarkOnboarded(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("ProfileRepo").Start(ctx, "MarkOnboarded", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "profiles"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE profiles SET onboarding = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark profile onboarded", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("database error marking onboarding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", userID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Profile onboarded")
	return nil
}

// updateSubscriptionQuery is shared with the referral transaction.
func updateSubscriptionQuery(userID uuid.UUID, update types.SubscriptionUpdate) squirrel.UpdateBuilder {
	return squirrel.Update("profiles").
		PlaceholderFormat(squirrel.Dollar).
		Set("subscription_plan", update.Plan).
		Set("subscription_expires_at", update.ExpiresAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": userID})
}
