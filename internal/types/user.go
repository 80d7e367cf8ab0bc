package types

import (
	"time"

	"github.com/google/uuid"
)

// Profile mirrors a row of the profiles table. ID equals the identity provider's user id.
type Profile struct {
	ID                    uuid.UUID  `json:"id"`
	SubscriptionPlan      Plan       `json:"subscription_plan"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	Onboarding            bool       `json:"onboarding"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// SubscriptionUpdate holds the plan fields written by lifecycle operations.
// A nil ExpiresAt clears the expiry.
type SubscriptionUpdate struct {
	Plan      Plan
	ExpiresAt *time.Time
}

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
}
