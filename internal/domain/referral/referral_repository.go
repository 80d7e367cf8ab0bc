package referral

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

	"github.com/FACorreiaa/storelink-api/internal/domain/profiles"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/db"
)

// ErrCodeConsumed is returned when the conditional update finds no unused, valid row.
var ErrCodeConsumed = errors.New("referral code already consumed")

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	GetCode(ctx context.Context, code string) (*types.ReferralCode, error)
	// Redeem marks the code used and upgrades the profile in one transaction.
	Redeem(ctx context.Context, code string, userID uuid.UUID, update types.SubscriptionUpdate) error
	// InsertCodes stores new codes, skipping ones already present, and returns the codes it inserted.
	InsertCodes(ctx context.Context, codes []string) ([]string, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool db.Querier
}

func NewRepositoryImpl(pgpool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{logger: logger, pgpool: pgpool}
}

func (r *RepositoryImpl) GetCode(ctx context.Context, code string) (*types.ReferralCode, error) {
	ctx, span := otel.Tracer("ReferralRepo").Start(ctx, "GetCode", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "referral_codes"),
	))
	defer span.End()

	var rc types.ReferralCode
	err := r.pgpool.QueryRow(ctx, `
        SELECT code, is_used, is_valid, used_by, used_at, created_at
        FROM referral_codes
        WHERE code = $1`, code).Scan(&rc.Code, &rc.IsUsed, &rc.IsValid, &rc.UsedBy, &rc.UsedAt, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "code not found")
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to fetch referral code", slog.String("method", "GetCode"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching referral code: %w", err)
	}

	span.SetStatus(codes.Ok, "code fetched")
	return &rc, nil
}

func (r *RepositoryImpl) Redeem(ctx context.Context, code string, userID uuid.UUID, update types.SubscriptionUpdate) error {
	ctx, span := otel.Tracer("ReferralRepo").Start(ctx, "Redeem", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "referral_codes"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Redeem"), slog.String("userID", userID.String()))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        UPDATE referral_codes
        SET is_used = TRUE, used_by = $2, used_at = NOW()
        WHERE code = $1 AND is_used = FALSE AND is_valid = TRUE`,
		code, userID)
	if err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rollbackErr))
		}
		l.ErrorContext(ctx, "Failed to mark referral code used", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark used failed")
		return fmt.Errorf("failed to mark referral code used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rollbackErr))
		}
		span.SetStatus(codes.Error, "code consumed concurrently")
		return ErrCodeConsumed
	}

	if err := profiles.UpdateSubscriptionInTx(ctx, tx, userID, update); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rollbackErr))
		}
		l.ErrorContext(ctx, "Failed to upgrade profile for referral", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile upgrade failed")
		return fmt.Errorf("failed to apply referral upgrade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit redemption", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return fmt.Errorf("failed to commit redemption: %w", err)
	}

	l.InfoContext(ctx, "Referral code redeemed")
	span.SetStatus(codes.Ok, "redeemed")
	return nil
}

func (r *RepositoryImpl) InsertCodes(ctx context.Context, codesToInsert []string) ([]string, error) {
	ctx, span := otel.Tracer("ReferralRepo").Start(ctx, "InsertCodes", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "referral_codes"),
		attribute.Int("codes.count", len(codesToInsert)),
	))
	defer span.End()

	if len(codesToInsert) == 0 {
		return nil, nil
	}

	builder := squirrel.Insert("referral_codes").
		PlaceholderFormat(squirrel.Dollar).
		Columns("code")
	for _, c := range codesToInsert {
		builder = builder.Values(c)
	}
	query, args, err := builder.Suffix("ON CONFLICT (code) DO NOTHING RETURNING code").ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build referral insert: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert referral codes", slog.String("method", "InsertCodes"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error inserting referral codes: %w", err)
	}
	defer rows.Close()

	inserted := make([]string, 0, len(codesToInsert))
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan inserted referral code: %w", err)
		}
		inserted = append(inserted, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error inserting referral codes: %w", err)
	}

	span.SetAttributes(attribute.Int("codes.inserted", len(inserted)))
	span.SetStatus(codes.Ok, "codes inserted")
	return inserted, nil
}
