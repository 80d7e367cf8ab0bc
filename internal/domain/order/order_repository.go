package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

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

type Repository interface {
	// CreateOrder inserts the order and fills in its id and created_at.
	CreateOrder(ctx context.Context, order *types.Order) error
	// ListOrdersByOwner returns the orders of every store of the owner, newest first.
	ListOrdersByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]types.Order, error)
	CountOrdersByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool db.Querier
}

func NewRepositoryImpl(pgpool db.Querier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

const (
	insertOrderSQL = `
		INSERT INTO orders (store_id, customer_name, customer_phone, note, items, total_minor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	listOrdersByOwnerSQL = `
		SELECT o.id, o.store_id, o.customer_name, o.customer_phone, o.note, o.items, o.total_minor, o.created_at
		FROM orders o
		JOIN stores s ON s.id = o.store_id
		WHERE s.owner_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2`

	countOrdersByOwnerSQL = `
		SELECT COUNT(*)
		FROM orders o
		JOIN stores s ON s.id = o.store_id
		WHERE s.owner_id = $1`
)

func (r *RepositoryImpl) CreateOrder(ctx context.Context, order *types.Order) error {
	ctx, span := otel.Tracer("OrderRepo").Start(ctx, "CreateOrder", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "orders"),
		attribute.String("store.id", order.StoreID.String()),
	))
	defer span.End()

	items, err := json.Marshal(order.Items)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	err = r.pgpool.QueryRow(ctx, insertOrderSQL,
		order.StoreID, order.CustomerName, order.CustomerPhone, order.Note, items, order.TotalMinor,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert order", slog.String("method", "CreateOrder"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return fmt.Errorf("database error creating order: %w", err)
	}

	span.SetStatus(codes.Ok, "Order created")
	return nil
}

func (r *RepositoryImpl) ListOrdersByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]types.Order, error) {
	ctx, span := otel.Tracer("OrderRepo").Start(ctx, "ListOrdersByOwner", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "orders"),
		attribute.Int("limit", limit),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "ListOrdersByOwner"), slog.String("ownerID", ownerID.String()))

	rows, err := r.pgpool.Query(ctx, listOrdersByOwnerSQL, ownerID, limit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list orders", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing orders: %w", err)
	}
	defer rows.Close()

	orders := []types.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			l.ErrorContext(ctx, "Failed to scan order row", slog.Any("error", err))
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(orders)))
	span.SetStatus(codes.Ok, "Orders listed")
	return orders, nil
}

func (r *RepositoryImpl) CountOrdersByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	ctx, span := otel.Tracer("OrderRepo").Start(ctx, "CountOrdersByOwner", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "orders"),
	))
	defer span.End()

	var count int
	if err := r.pgpool.QueryRow(ctx, countOrdersByOwnerSQL, ownerID).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting orders: %w", err)
	}
	return count, nil
}

func scanOrder(row pgx.Row) (*types.Order, error) {
	var (
		o     types.Order
		items []byte
	)
	if err := row.Scan(&o.ID, &o.StoreID, &o.CustomerName, &o.CustomerPhone, &o.Note, &items, &o.TotalMinor, &o.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}
