package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/storelink-api/internal/domain/subscription"
	"github.com/FACorreiaa/storelink-api/internal/types"
)

// CatalogReader is the part of the store repository the dashboard reads.
type CatalogReader interface {
	ListStores(ctx context.Context, ownerID uuid.UUID) ([]types.Store, error)
	CountProducts(ctx context.Context, ownerID uuid.UUID) (int, error)
}

type OrderCounter interface {
	CountOrdersByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetDashboard(ctx context.Context, userID uuid.UUID) (*types.Dashboard, error)
	Invalidate(userID uuid.UUID)
}

type ServiceImpl struct {
	logger  *slog.Logger
	cache   *Cache
	subs    subscription.Service
	catalog CatalogReader
	orders  OrderCounter
}

func NewDashboardService(cache *Cache, subs subscription.Service, catalog CatalogReader, orders OrderCounter, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		cache:   cache,
		subs:    subs,
		catalog: catalog,
		orders:  orders,
	}
}

func (s *ServiceImpl) GetDashboard(ctx context.Context, userID uuid.UUID) (*types.Dashboard, error) {
	ctx, span := otel.Tracer("DashboardService").Start(ctx, "GetDashboard", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if userID == uuid.Nil {
		return nil, fmt.Errorf("dashboard: %w", types.ErrUnauthenticated)
	}

	if d, ok := s.cache.Get(userID); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		span.SetStatus(codes.Ok, "served from cache")
		return d, nil
	}

	l := s.logger.With(slog.String("method", "GetDashboard"), slog.String("userID", userID.String()))

	var d types.Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Subscription = s.subs.CheckStatus(gctx, userID)
		d.Limits = d.Subscription.EffectivePlan().Limits()
		return nil
	})
	g.Go(func() error {
		stores, err := s.catalog.ListStores(gctx, userID)
		if err != nil {
			return fmt.Errorf("list stores: %w", err)
		}
		d.Stores = stores
		return nil
	})
	g.Go(func() error {
		count, err := s.catalog.CountProducts(gctx, userID)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		d.ProductCount = count
		return nil
	})
	g.Go(func() error {
		count, err := s.orders.CountOrdersByOwner(gctx, userID)
		if err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		d.OrderCount = count
		return nil
	})
	if err := g.Wait(); err != nil {
		l.ErrorContext(ctx, "Failed to compose dashboard", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "compose failed")
		return nil, err
	}

	s.cache.Set(userID, &d)
	span.SetAttributes(attribute.Bool("cache.hit", false))
	span.SetStatus(codes.Ok, "dashboard composed")
	return &d, nil
}

func (s *ServiceImpl) Invalidate(userID uuid.UUID) {
	s.cache.Invalidate(userID)
}
