package types

import (
	"time"

	"github.com/google/uuid"
)

type ReferralCode struct {
	Code      string     `json:"code"`
	IsUsed    bool       `json:"is_used"`
	IsValid   bool       `json:"is_valid"`
	UsedBy    *uuid.UUID `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RedeemResult is reported to callers instead of a raised fault.
type RedeemResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
