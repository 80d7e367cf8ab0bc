package order

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

	"github.com/FACorreiaa/storelink-api/internal/domain/store"
	"github.com/FACorreiaa/storelink-api/internal/domain/subscription"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/observability"
)

const (
	maxOrderLines    = 50
	maxLineQuantity  = 100
	maxCustomerName  = 100
	maxNoteLength    = 500
	defaultListLimit = 100
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// PlaceOrder prices the items from the storefront catalog and returns a WhatsApp link
	// carrying the order text to the seller.
	PlaceOrder(ctx context.Context, slug string, params types.PlaceOrderParams) (*types.PlacedOrder, error)
	ListOrders(ctx context.Context, ownerID uuid.UUID) ([]types.Order, error)
}

type ServiceImpl struct {
	logger  *slog.Logger
	repo    Repository
	stores  store.Service
	cache   subscription.Invalidator
	metrics *observability.Metrics
}

func NewOrderService(repo Repository, stores store.Service, cache subscription.Invalidator, metrics *observability.Metrics, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		repo:    repo,
		stores:  stores,
		cache:   cache,
		metrics: metrics,
	}
}

func (s *ServiceImpl) PlaceOrder(ctx context.Context, slug string, params types.PlaceOrderParams) (*types.PlacedOrder, error) {
	ctx, span := otel.Tracer("OrderService").Start(ctx, "PlaceOrder", trace.WithAttributes(
		attribute.String("store.slug", slug),
		attribute.Int("order.lines", len(params.Items)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "PlaceOrder"), slog.String("slug", slug))

	fail := func(outcome string, err error) (*types.PlacedOrder, error) {
		s.metrics.BuyerOrder(outcome)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	name := strings.TrimSpace(params.CustomerName)
	if name == "" || len(name) > maxCustomerName {
		return fail("invalid", fmt.Errorf("customer name must be 1-%d characters: %w", maxCustomerName, types.ErrBadRequest))
	}
	phone, err := store.NormalizeWhatsApp(params.CustomerPhone)
	if err != nil {
		return fail("invalid", err)
	}
	var note *string
	if params.Note != nil {
		if n := strings.TrimSpace(*params.Note); n != "" {
			if len(n) > maxNoteLength {
				return fail("invalid", fmt.Errorf("note must be at most %d characters: %w", maxNoteLength, types.ErrBadRequest))
			}
			note = &n
		}
	}
	lines, err := mergeLines(params.Items)
	if err != nil {
		return fail("invalid", err)
	}

	sf, err := s.stores.GetStorefront(ctx, slug)
	if err != nil {
		return fail("store_error", fmt.Errorf("load storefront: %w", err))
	}

	items, total, err := priceLines(lines, sf.Products)
	if err != nil {
		return fail("invalid", err)
	}

	order := &types.Order{
		StoreID:       sf.Store.ID,
		CustomerName:  name,
		CustomerPhone: phone,
		Note:          note,
		Items:         items,
		TotalMinor:    total,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		l.ErrorContext(ctx, "Failed to persist order", slog.Any("error", err))
		span.RecordError(err)
		return fail("store_error", fmt.Errorf("persist order: %w", err))
	}

	if s.cache != nil {
		s.cache.Invalidate(sf.Store.OwnerID)
	}
	s.metrics.BuyerOrder("placed")
	span.SetAttributes(attribute.String("order.id", order.ID.String()), attribute.Int64("order.total_minor", total))
	span.SetStatus(codes.Ok, "order placed")
	l.InfoContext(ctx, "Order placed", slog.String("orderID", order.ID.String()), slog.Int64("totalMinor", total))

	return &types.PlacedOrder{
		Order:       *order,
		WhatsAppURL: WhatsAppURL(sf.Store.WhatsAppNumber, FormatMessage(sf.Store, *order)),
	}, nil
}

func (s *ServiceImpl) ListOrders(ctx context.Context, ownerID uuid.UUID) ([]types.Order, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("list orders: %w", types.ErrUnauthenticated)
	}
	return s.repo.ListOrdersByOwner(ctx, ownerID, defaultListLimit)
}

// mergeLines validates quantities and folds repeated products into one line, keeping first-seen order.
func mergeLines(lines []types.OrderLine) ([]types.OrderLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no items: %w", types.ErrBadRequest)
	}
	if len(lines) > maxOrderLines {
		return nil, fmt.Errorf("order has more than %d lines: %w", maxOrderLines, types.ErrBadRequest)
	}

	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]types.OrderLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 || line.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("quantity must be between 1 and %d: %w", maxLineQuantity, types.ErrBadRequest)
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			if merged[i].Quantity > maxLineQuantity {
				return nil, fmt.Errorf("quantity must be between 1 and %d: %w", maxLineQuantity, types.ErrBadRequest)
			}
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// priceLines resolves each line against the catalog; client supplied prices are never used.
func priceLines(lines []types.OrderLine, catalog []types.Product) ([]types.OrderItem, int64, error) {
	products := make(map[uuid.UUID]types.Product, len(catalog))
	for _, p := range catalog {
		products[p.ID] = p
	}

	items := make([]types.OrderItem, 0, len(lines))
	var total int64
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("product %s is not in this store: %w", line.ProductID, types.ErrBadRequest)
		}
		items = append(items, types.OrderItem{
			ProductID:      p.ID,
			Name:           p.Name,
			UnitPriceMinor: p.PriceMinor,
			Quantity:       line.Quantity,
		})
		total += p.PriceMinor * int64(line.Quantity)
	}
	return items, total, nil
}
