package types

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is used when a payment order omits the currency.
const DefaultCurrency = "INR"

type PaymentStatus string

const (
	PaymentStatusCreated PaymentStatus = "created"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// OrderHandle is the gateway order returned to the client to start checkout.
// Amount is in minor units.
type OrderHandle struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	KeyID     string    `json:"key_id,omitempty"`
}

type CreatePaymentOrderParams struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
	Plan     *Plan   `json:"plan,omitempty"`
	Months   int     `json:"months,omitempty"`
}

// PaymentOrder records a gateway order. Plan is empty for plain payments.
// AppliedAt is set once the paid plan has been written to the profile.
type PaymentOrder struct {
	ID          string        `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	Plan        Plan          `json:"plan"`
	Months      int           `json:"months"`
	AmountMinor int64         `json:"amount_minor"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	PaymentID   *string       `json:"payment_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	AppliedAt   *time.Time    `json:"applied_at,omitempty"`
}

type VerifyPaymentParams struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}
