package types

import (
	"time"

	"github.com/google/uuid"
)

type Store struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	WhatsAppNumber string    `json:"whatsapp_number"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateStoreParams defines the fields accepted during onboarding.
type CreateStoreParams struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	Description    *string `json:"description,omitempty"`
	WhatsAppNumber string  `json:"whatsapp_number"`
}

type Product struct {
	ID          uuid.UUID `json:"id"`
	StoreID     uuid.UUID `json:"store_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	PriceMinor  int64     `json:"price_minor"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateProductParams struct {
	StoreID     uuid.UUID `json:"store_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	PriceMinor  int64     `json:"price_minor"`
	ImageURL    *string   `json:"image_url,omitempty"`
}

// Storefront is the public catalog page behind a shareable link.
type Storefront struct {
	Store    Store     `json:"store"`
	Products []Product `json:"products"`
}
