package profiles

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

const selectProfileSQL = `
        SELECT id, subscription_plan, subscription_expires_at, onboarding, created_at, updated_at
        FROM profiles
        WHERE id = $1`

func scanProfile(row pgx.Row) (*types.Profile, error) {
	var p types.Profile
	if err := row.Scan(
		&p.ID, &p.SubscriptionPlan, &p.SubscriptionExpiresAt, &p.Onboarding, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateSubscriptionInTx applies a subscription update inside a caller-owned transaction.
func UpdateSubscriptionInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, update types.SubscriptionUpdate) error {
	query, args, err := updateSubscriptionQuery(userID, update).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build subscription update: %w", err)
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("database error updating subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", userID, types.ErrNotFound)
	}
	return nil
}
