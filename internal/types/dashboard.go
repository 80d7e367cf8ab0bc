package types

// Dashboard is the composed seller dashboard view.
type Dashboard struct {
	Subscription SubscriptionStatus `json:"subscription"`
	Limits       PlanLimits         `json:"limits"`
	Stores       []Store            `json:"stores"`
	ProductCount int                `json:"product_count"`
	OrderCount   int                `json:"order_count"`
}
