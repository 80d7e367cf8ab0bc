package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
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

// Messages reported to the caller in RedeemResult.Error.
const (
	MsgInvalidCode      = "Invalid referral code."
	MsgAlreadyUsed      = "This code has already been used."
	MsgNoLongerValid    = "This code is no longer valid."
	MsgNotAuthenticated = "User not authenticated."
	MsgGeneric          = "Something went wrong. Please try again."
)

const (
	codeAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	DefaultCodeLength = 8
	maxMintBatch      = 1000
	maxMintRounds     = 3
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Redeem(ctx context.Context, code string, userID uuid.UUID) types.RedeemResult
	Mint(ctx context.Context, count, length int) ([]string, error)
}

type ServiceImpl struct {
	logger  *slog.Logger
	repo    Repository
	cache   subscription.Invalidator
	metrics *observability.Metrics
	now     func() time.Time
}

func NewReferralService(repo Repository, cache subscription.Invalidator, metrics *observability.Metrics, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		now:     time.Now,
	}
}

// Redeem checks the code, then the caller, and upgrades the caller to pro for one billing
// period. The checks short-circuit in order; a uuid.Nil user id means no identity.
func (s *ServiceImpl) Redeem(ctx context.Context, code string, userID uuid.UUID) types.RedeemResult {
	ctx, span := otel.Tracer("ReferralService").Start(ctx, "Redeem")
	defer span.End()

	l := s.logger.With(slog.String("method", "Redeem"))

	fail := func(outcome, msg string) types.RedeemResult {
		s.metrics.RedemptionAttempt(outcome)
		span.SetStatus(codes.Error, outcome)
		return types.RedeemResult{Success: false, Error: msg}
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return fail("invalid", MsgInvalidCode)
	}

	rc, err := s.repo.GetCode(ctx, code)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fail("invalid", MsgInvalidCode)
		}
		l.ErrorContext(ctx, "Referral lookup failed", slog.Any("error", err))
		span.RecordError(err)
		return fail("error", MsgGeneric)
	}
	if rc.IsUsed {
		return fail("used", MsgAlreadyUsed)
	}
	if !rc.IsValid {
		return fail("revoked", MsgNoLongerValid)
	}
	if userID == uuid.Nil {
		return fail("unauthenticated", MsgNotAuthenticated)
	}

	expiresAt := types.BillingPeriodEnd(s.now(), types.ReferralGrantMonths)
	err = s.repo.Redeem(ctx, code, userID, types.SubscriptionUpdate{Plan: types.PlanPro, ExpiresAt: &expiresAt})
	if err != nil {
		if errors.Is(err, ErrCodeConsumed) {
			return fail("used", MsgAlreadyUsed)
		}
		l.ErrorContext(ctx, "Referral redemption failed", slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		return fail("error", MsgGeneric)
	}

	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
	s.metrics.RedemptionAttempt("success")
	l.InfoContext(ctx, "Referral redeemed", slog.String("userID", userID.String()), slog.Time("expiresAt", expiresAt))
	span.SetStatus(codes.Ok, "redeemed")
	return types.RedeemResult{Success: true}
}

// Mint generates count random codes of the given length and stores them. Only codes the
// insert actually wrote are returned; collisions with existing rows are replaced with fresh
// codes for a few rounds.
func (s *ServiceImpl) Mint(ctx context.Context, count, length int) ([]string, error) {
	ctx, span := otel.Tracer("ReferralService").Start(ctx, "Mint", trace.WithAttributes(
		attribute.Int("codes.count", count),
	))
	defer span.End()

	if count < 1 || count > maxMintBatch {
		return nil, fmt.Errorf("count must be between 1 and %d: %w", maxMintBatch, types.ErrBadRequest)
	}
	if length == 0 {
		length = DefaultCodeLength
	}
	if length < 6 || length > 32 {
		return nil, fmt.Errorf("length must be between 6 and 32: %w", types.ErrBadRequest)
	}

	seen := make(map[string]struct{}, count)
	minted := make([]string, 0, count)
	for round := 0; round < maxMintRounds && len(minted) < count; round++ {
		batch := make([]string, 0, count-len(minted))
		for len(batch) < count-len(minted) {
			c, err := generateCode(length)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to generate referral code: %w", err)
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			batch = append(batch, c)
		}

		inserted, err := s.repo.InsertCodes(ctx, batch)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert failed")
			return nil, fmt.Errorf("failed to store referral codes: %w", err)
		}
		if len(inserted) < len(batch) {
			s.logger.WarnContext(ctx, "Some referral codes collided with existing ones",
				slog.Int("generated", len(batch)), slog.Int("inserted", len(inserted)))
		}
		minted = append(minted, inserted...)
	}
	if len(minted) < count {
		s.logger.WarnContext(ctx, "Minted fewer referral codes than requested",
			slog.Int("requested", count), slog.Int("minted", len(minted)))
	}

	span.SetStatus(codes.Ok, "minted")
	return minted, nil
}

func generateCode(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for range length {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
