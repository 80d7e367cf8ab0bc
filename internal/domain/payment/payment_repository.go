package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

// Repository persists gateway payment orders.
type Repository interface {
	CreatePaymentOrder(ctx context.Context, order *types.PaymentOrder) error
	GetPaymentOrder(ctx context.Context, id string) (*types.PaymentOrder, error)
	// MarkPaid moves an order from created to paid; types.ErrConflict when it was not in created.
	MarkPaid(ctx context.Context, id, paymentID string) error
	// MarkApplied stamps applied_at on a paid order. Already applied orders are left as they are.
	MarkApplied(ctx context.Context, id string) error
}

var _ Repository = (*PostgresPaymentRepository)(nil)

type PostgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const (
	createPaymentOrderQuery = `
		INSERT INTO payment_orders (id, user_id, plan, months, amount_minor, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	getPaymentOrderQuery = `
		SELECT id, user_id, plan, months, amount_minor, currency, status, payment_id, created_at, paid_at, applied_at
		FROM payment_orders
		WHERE id = $1
	`
	markPaidQuery = `
		UPDATE payment_orders
		SET status = 'paid', payment_id = $2, paid_at = NOW()
		WHERE id = $1 AND status = 'created'
	`
	markAppliedQuery = `
		UPDATE payment_orders
		SET applied_at = NOW()
		WHERE id = $1 AND status = 'paid' AND applied_at IS NULL
	`
)

func (r *PostgresPaymentRepository) CreatePaymentOrder(ctx context.Context, order *types.PaymentOrder) error {
	if order.Status == "" {
		order.Status = types.PaymentStatusCreated
	}
	plan := sql.NullString{String: string(order.Plan), Valid: order.Plan != ""}
	err := r.db.QueryRowContext(ctx, createPaymentOrderQuery,
		order.ID, order.UserID, plan, order.Months, order.AmountMinor, order.Currency, string(order.Status),
	).Scan(&order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment order: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRepository) GetPaymentOrder(ctx context.Context, id string) (*types.PaymentOrder, error) {
	var (
		order     types.PaymentOrder
		plan      sql.NullString
		status    string
		paymentID sql.NullString
		paidAt    sql.NullTime
		appliedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getPaymentOrderQuery, id).Scan(
		&order.ID, &order.UserID, &plan, &order.Months, &order.AmountMinor, &order.Currency,
		&status, &paymentID, &order.CreatedAt, &paidAt, &appliedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment order %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get payment order: %w", err)
	}
	if plan.Valid {
		order.Plan = types.Plan(plan.String)
		if !order.Plan.Valid() {
			return nil, fmt.Errorf("payment order %s has unknown plan %q", id, plan.String)
		}
	}
	order.Status = types.PaymentStatus(status)
	if paymentID.Valid {
		order.PaymentID = &paymentID.String
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if appliedAt.Valid {
		order.AppliedAt = &appliedAt.Time
	}
	return &order, nil
}

func (r *PostgresPaymentRepository) MarkPaid(ctx context.Context, id, paymentID string) error {
	res, err := r.db.ExecContext(ctx, markPaidQuery, id, paymentID)
	if err != nil {
		return fmt.Errorf("mark payment order paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark payment order paid: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment order %s is not awaiting payment: %w", id, types.ErrConflict)
	}
	return nil
}

func (r *PostgresPaymentRepository) MarkApplied(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, markAppliedQuery, id); err != nil {
		return fmt.Errorf("mark payment order applied: %w", err)
	}
	return nil
}
