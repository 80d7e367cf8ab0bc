package types

import (
	"time"

	"github.com/google/uuid"
)

type OrderItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceMinor int64     `json:"unit_price_minor"`
	Quantity       int       `json:"quantity"`
}

type Order struct {
	ID            uuid.UUID   `json:"id"`
	StoreID       uuid.UUID   `json:"store_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Note          *string     `json:"note,omitempty"`
	Items         []OrderItem `json:"items"`
	TotalMinor    int64       `json:"total_minor"`
	CreatedAt     time.Time   `json:"created_at"`
}

type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type PlaceOrderParams struct {
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Note          *string     `json:"note,omitempty"`
	Items         []OrderLine `json:"items"`
}

// PlacedOrder is returned to the buyer; WhatsAppURL opens a chat with the seller.
type PlacedOrder struct {
	Order       Order  `json:"order"`
	WhatsAppURL string `json:"whatsapp_url"`
}
