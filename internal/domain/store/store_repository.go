package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/db"
)

const pgUniqueViolation = "23505"

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	CreateStore(ctx context.Context, ownerID uuid.UUID, params types.CreateStoreParams) (*types.Store, error)
	ListStores(ctx context.Context, ownerID uuid.UUID) ([]types.Store, error)
	// GetStoreBySlug returns types.ErrNotFound for unknown slugs.
	GetStoreBySlug(ctx context.Context, slug string) (*types.Store, error)
	CountStores(ctx context.Context, ownerID uuid.UUID) (int, error)
	HasStore(ctx context.Context, ownerID uuid.UUID) (bool, error)

	CreateProduct(ctx context.Context, params types.CreateProductParams) (*types.Product, error)
	ListProducts(ctx context.Context, storeID uuid.UUID) ([]types.Product, error)
	// CountProducts counts products across every store of the owner.
	CountProducts(ctx context.Context, ownerID uuid.UUID) (int, error)
	// DeleteProduct removes a product of one of the owner's stores; types.ErrNotFound otherwise.
	DeleteProduct(ctx context.Context, ownerID, productID uuid.UUID) error
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

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var storeColumns = []string{"id", "owner_id", "slug", "name", "description", "whatsapp_number", "created_at"}

var productColumns = []string{"id", "store_id", "name", "description", "price_minor", "image_url", "created_at"}

func scanStore(row pgx.Row) (*types.Store, error) {
	var s types.Store
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Slug, &s.Name, &s.Description, &s.WhatsAppNumber, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanProduct(row pgx.Row) (*types.Product, error) {
	var p types.Product
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.PriceMinor, &p.ImageURL, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RepositoryImpl) CreateStore(ctx context.Context, ownerID uuid.UUID, params types.CreateStoreParams) (*types.Store, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "CreateStore", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "stores"),
		attribute.String("store.slug", params.Slug),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateStore"), slog.String("ownerID", ownerID.String()))

	query, args, err := psql.Insert("stores").
		Columns("owner_id", "slug", "name", "description", "whatsapp_number").
		Values(ownerID, params.Slug, params.Name, params.Description, params.WhatsAppNumber).
		Suffix("RETURNING " + strings.Join(storeColumns, ", ")).
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build store insert: %w", err)
	}

	s, err := scanStore(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			span.SetStatus(codes.Error, "Slug taken")
			return nil, fmt.Errorf("slug %q is taken: %w", params.Slug, types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert store", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error creating store: %w", err)
	}

	l.InfoContext(ctx, "Store created", slog.String("storeID", s.ID.String()), slog.String("slug", s.Slug))
	span.SetStatus(codes.Ok, "Store created")
	return s, nil
}

func (r *RepositoryImpl) ListStores(ctx context.Context, ownerID uuid.UUID) ([]types.Store, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "ListStores", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "stores"),
	))
	defer span.End()

	query, args, err := psql.Select(storeColumns...).From("stores").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build store query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list stores", slog.String("method", "ListStores"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing stores: %w", err)
	}
	defer rows.Close()

	stores := []types.Store{}
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan store row: %w", err)
		}
		stores = append(stores, *s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating store rows: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(stores)))
	span.SetStatus(codes.Ok, "Stores listed")
	return stores, nil
}

func (r *RepositoryImpl) GetStoreBySlug(ctx context.Context, slug string) (*types.Store, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "GetStoreBySlug", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "stores"),
		attribute.String("store.slug", slug),
	))
	defer span.End()

	query, args, err := psql.Select(storeColumns...).From("stores").Where(squirrel.Eq{"slug": slug}).ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build store query: %w", err)
	}

	s, err := scanStore(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Store not found")
			return nil, fmt.Errorf("store %q: %w", slug, types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to fetch store", slog.String("method", "GetStoreBySlug"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error fetching store: %w", err)
	}

	span.SetStatus(codes.Ok, "Store fetched")
	return s, nil
}

func (r *RepositoryImpl) CountStores(ctx context.Context, ownerID uuid.UUID) (int, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "CountStores", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "stores"),
	))
	defer span.End()

	var count int
	if err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM stores WHERE owner_id = $1`, ownerID).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting stores: %w", err)
	}
	return count, nil
}

func (r *RepositoryImpl) HasStore(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "HasStore", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "stores"),
	))
	defer span.End()

	var exists bool
	if err := r.pgpool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stores WHERE owner_id = $1)`, ownerID).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error checking store ownership: %w", err)
	}
	return exists, nil
}

func (r *RepositoryImpl) CreateProduct(ctx context.Context, params types.CreateProductParams) (*types.Product, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "CreateProduct", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
		attribute.String("store.id", params.StoreID.String()),
	))
	defer span.End()

	query, args, err := psql.Insert("products").
		Columns("store_id", "name", "description", "price_minor", "image_url").
		Values(params.StoreID, params.Name, params.Description, params.PriceMinor, params.ImageURL).
		Suffix("RETURNING " + strings.Join(productColumns, ", ")).
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build product insert: %w", err)
	}

	p, err := scanProduct(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert product", slog.String("method", "CreateProduct"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return nil, fmt.Errorf("database error creating product: %w", err)
	}

	span.SetStatus(codes.Ok, "Product created")
	return p, nil
}

func (r *RepositoryImpl) ListProducts(ctx context.Context, storeID uuid.UUID) ([]types.Product, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "ListProducts", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
		attribute.String("store.id", storeID.String()),
	))
	defer span.End()

	query, args, err := psql.Select(productColumns...).From("products").
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list products", slog.String("method", "ListProducts"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing products: %w", err)
	}
	defer rows.Close()

	products := []types.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(products)))
	span.SetStatus(codes.Ok, "Products listed")
	return products, nil
}

func (r *RepositoryImpl) CountProducts(ctx context.Context, ownerID uuid.UUID) (int, error) {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "CountProducts", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
	))
	defer span.End()

	var count int
	err := r.pgpool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM products p
		JOIN stores s ON s.id = p.store_id
		WHERE s.owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return 0, fmt.Errorf("database error counting products: %w", err)
	}
	return count, nil
}

func (r *RepositoryImpl) DeleteProduct(ctx context.Context, ownerID, productID uuid.UUID) error {
	ctx, span := otel.Tracer("StoreRepo").Start(ctx, "DeleteProduct", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "products"),
		attribute.String("product.id", productID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		DELETE FROM products p
		USING stores s
		WHERE p.id = $1 AND p.store_id = s.id AND s.owner_id = $2`, productID, ownerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete product", slog.String("method", "DeleteProduct"), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return fmt.Errorf("database error deleting product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Product not found")
		return fmt.Errorf("product %s: %w", productID, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "Product deleted")
	return nil
}
