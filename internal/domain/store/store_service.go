package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/storelink-api/internal/domain/subscription"
	"github.com/FACorreiaa/storelink-api/internal/types"
)

const (
	maxNameLength = 100
	maxPriceMinor = int64(100_000_000_000)
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// CreateStore is the onboarding step: the first store marks the profile onboarded.
	CreateStore(ctx context.Context, ownerID uuid.UUID, params types.CreateStoreParams) (*types.Store, error)
	ListStores(ctx context.Context, ownerID uuid.UUID) ([]types.Store, error)
	GetStorefront(ctx context.Context, slug string) (*types.Storefront, error)
	HasStore(ctx context.Context, ownerID uuid.UUID) (bool, error)

	CreateProduct(ctx context.Context, ownerID uuid.UUID, params types.CreateProductParams) (*types.Product, error)
	ListProducts(ctx context.Context, ownerID, storeID uuid.UUID) ([]types.Product, error)
	DeleteProduct(ctx context.Context, ownerID, productID uuid.UUID) error
}

// Onboarder records that a seller finished onboarding.
type Onboarder interface {
	MarkOnboarded(ctx context.Context, userID uuid.UUID) error
}

type ServiceImpl struct {
	logger    *slog.Logger
	repo      Repository
	subs      subscription.Service
	onboarder Onboarder
	cache     subscription.Invalidator
}

func NewStoreService(repo Repository, subs subscription.Service, onboarder Onboarder, cache subscription.Invalidator, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		subs:      subs,
		onboarder: onboarder,
		cache:     cache,
	}
}

func (s *ServiceImpl) CreateStore(ctx context.Context, ownerID uuid.UUID, params types.CreateStoreParams) (*types.Store, error) {
	ctx, span := otel.Tracer("StoreService").Start(ctx, "CreateStore", trace.WithAttributes(
		attribute.String("user.id", ownerID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateStore"), slog.String("ownerID", ownerID.String()))

	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("create store: %w", types.ErrUnauthenticated)
	}

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" || len(params.Name) > maxNameLength {
		return nil, fmt.Errorf("store name must be 1-%d characters: %w", maxNameLength, types.ErrBadRequest)
	}
	params.Slug = NormalizeSlug(params.Slug)
	if err := ValidateSlug(params.Slug); err != nil {
		return nil, err
	}
	number, err := NormalizeWhatsApp(params.WhatsAppNumber)
	if err != nil {
		return nil, err
	}
	params.WhatsAppNumber = number

	count, err := s.repo.CountStores(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("count stores: %w", err)
	}
	limits := s.subs.EffectiveLimits(ctx, ownerID)
	if !limits.AllowsStores(count + 1) {
		span.SetStatus(codes.Error, "store limit reached")
		return nil, fmt.Errorf("store limit of %d reached: %w", limits.StoreLimit, types.ErrLimitReached)
	}

	store, err := s.repo.CreateStore(ctx, ownerID, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, fmt.Errorf("create store: %w", err)
	}

	if count == 0 && s.onboarder != nil {
		if err := s.onboarder.MarkOnboarded(ctx, ownerID); err != nil {
			l.WarnContext(ctx, "Store created but onboarding flag not set", slog.Any("error", err))
		}
	}
	s.invalidate(ownerID)

	span.SetStatus(codes.Ok, "store created")
	return store, nil
}

func (s *ServiceImpl) ListStores(ctx context.Context, ownerID uuid.UUID) ([]types.Store, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("list stores: %w", types.ErrUnauthenticated)
	}
	return s.repo.ListStores(ctx, ownerID)
}

func (s *ServiceImpl) GetStorefront(ctx context.Context, slug string) (*types.Storefront, error) {
	ctx, span := otel.Tracer("StoreService").Start(ctx, "GetStorefront", trace.WithAttributes(
		attribute.String("store.slug", slug),
	))
	defer span.End()

	store, err := s.repo.GetStoreBySlug(ctx, NormalizeSlug(slug))
	if err != nil {
		span.SetStatus(codes.Error, "store lookup failed")
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, store.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list storefront products: %w", err)
	}

	span.SetStatus(codes.Ok, "storefront loaded")
	return &types.Storefront{Store: *store, Products: products}, nil
}

// HasStore reports false for anonymous callers without touching the database.
func (s *ServiceImpl) HasStore(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	if ownerID == uuid.Nil {
		return false, nil
	}
	return s.repo.HasStore(ctx, ownerID)
}

func (s *ServiceImpl) CreateProduct(ctx context.Context, ownerID uuid.UUID, params types.CreateProductParams) (*types.Product, error) {
	ctx, span := otel.Tracer("StoreService").Start(ctx, "CreateProduct", trace.WithAttributes(
		attribute.String("user.id", ownerID.String()),
		attribute.String("store.id", params.StoreID.String()),
	))
	defer span.End()

	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("create product: %w", types.ErrUnauthenticated)
	}
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" || len(params.Name) > maxNameLength {
		return nil, fmt.Errorf("product name must be 1-%d characters: %w", maxNameLength, types.ErrBadRequest)
	}
	if params.PriceMinor < 0 || params.PriceMinor > maxPriceMinor {
		return nil, fmt.Errorf("product price out of range: %w", types.ErrBadRequest)
	}

	if err := s.requireOwnedStore(ctx, ownerID, params.StoreID); err != nil {
		return nil, err
	}

	count, err := s.repo.CountProducts(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("count products: %w", err)
	}
	limits := s.subs.EffectiveLimits(ctx, ownerID)
	if !limits.AllowsProducts(count + 1) {
		span.SetStatus(codes.Error, "product limit reached")
		return nil, fmt.Errorf("product limit of %d reached: %w", limits.ProductLimit, types.ErrLimitReached)
	}

	product, err := s.repo.CreateProduct(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.invalidate(ownerID)

	span.SetStatus(codes.Ok, "product created")
	return product, nil
}

func (s *ServiceImpl) ListProducts(ctx context.Context, ownerID, storeID uuid.UUID) ([]types.Product, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("list products: %w", types.ErrUnauthenticated)
	}
	if err := s.requireOwnedStore(ctx, ownerID, storeID); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, storeID)
}

func (s *ServiceImpl) DeleteProduct(ctx context.Context, ownerID, productID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return fmt.Errorf("delete product: %w", types.ErrUnauthenticated)
	}
	if err := s.repo.DeleteProduct(ctx, ownerID, productID); err != nil {
		return err
	}
	s.invalidate(ownerID)
	return nil
}

// requireOwnedStore answers types.ErrNotFound for stores of other sellers.
func (s *ServiceImpl) requireOwnedStore(ctx context.Context, ownerID, storeID uuid.UUID) error {
	stores, err := s.repo.ListStores(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}
	for _, st := range stores {
		if st.ID == storeID {
			return nil
		}
	}
	return fmt.Errorf("store %s: %w", storeID, types.ErrNotFound)
}

func (s *ServiceImpl) invalidate(ownerID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ownerID)
	}
}
