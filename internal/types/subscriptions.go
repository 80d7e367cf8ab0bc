package types

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"
)

// Plan represents the DB ENUM 'subscription_plan_enum'.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
)

// Unlimited marks a limit without a ceiling.
const Unlimited = -1

// ReferralGrantMonths is the billing period granted by a redeemed referral code.
const ReferralGrantMonths = 1

// PlanLimits holds the catalog ceilings for a plan.
type PlanLimits struct {
	ProductLimit int `json:"product_limit"`
	StoreLimit   int `json:"store_limit"`
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:    {ProductLimit: 5, StoreLimit: 1},
	PlanStarter: {ProductLimit: 15, StoreLimit: 2},
	PlanPro:     {ProductLimit: Unlimited, StoreLimit: 5},
}

// ParsePlan validates a raw plan name.
func ParsePlan(raw string) (Plan, error) {
	p := Plan(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown plan %q", ErrBadRequest, raw)
	}
	return p, nil
}

func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

// Limits returns the limits for the plan. Unknown plans get the free limits.
func (p Plan) Limits() PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Scan implements the sql.Scanner interface for Plan.
func (p *Plan) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan Plan: expected string or []byte, got %T", value)
		}
		strVal = string(bytesVal)
	}
	if !Plan(strVal).Valid() {
		return fmt.Errorf("unknown Plan value: %s", strVal)
	}
	*p = Plan(strVal)
	return nil
}

// Value implements the driver.Valuer interface for Plan.
func (p Plan) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid Plan value: %s", p)
	}
	return string(p), nil
}

// AllowsProducts reports whether count products fit under the limit.
func (l PlanLimits) AllowsProducts(count int) bool {
	return l.ProductLimit == Unlimited || count <= l.ProductLimit
}

// AllowsStores reports whether count stores fit under the limit.
func (l PlanLimits) AllowsStores(count int) bool {
	return l.StoreLimit == Unlimited || count <= l.StoreLimit
}

// BillingPeriodEnd adds months calendar months to from.
// Day overflow normalises forward, e.g. Jan 31 + 1 month is Mar 3 (or Mar 2 in leap years).
func BillingPeriodEnd(from time.Time, months int) time.Time {
	return from.AddDate(0, months, 0)
}

// SubscriptionStatus is the read-time view of a profile's plan.
type SubscriptionStatus struct {
	Plan          Plan       `json:"plan"`
	IsActive      bool       `json:"is_active"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
}

// FreeStatus is the fail-open status.
func FreeStatus() SubscriptionStatus {
	return SubscriptionStatus{Plan: PlanFree}
}

// StatusAt derives the subscription status of p at now.
// The free plan never carries an active window.
func StatusAt(p *Profile, now time.Time) SubscriptionStatus {
	if p == nil {
		return FreeStatus()
	}
	status := SubscriptionStatus{Plan: p.SubscriptionPlan}
	if p.SubscriptionPlan == PlanFree || p.SubscriptionExpiresAt == nil {
		return status
	}
	until := *p.SubscriptionExpiresAt
	status.ValidUntil = &until
	if until.After(now) {
		status.IsActive = true
		status.DaysRemaining = int(math.Ceil(until.Sub(now).Hours() / 24))
	}
	return status
}

// EffectivePlan is the plan whose limits apply: the stored plan while active, free otherwise.
func (s SubscriptionStatus) EffectivePlan() Plan {
	if s.IsActive {
		return s.Plan
	}
	return PlanFree
}
