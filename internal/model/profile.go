package model

import "time"

// Profile holds the premium entitlement of a user (`profiles` table).
// IsPremium only ever moves from false to true.
type Profile struct {
	UserID            uint64     // profiles.user_id
	IsPremium         bool       // profiles.is_premium
	BillingCustomerID *string    // profiles.billing_customer_id (nullable)
	PremiumSince      *time.Time // profiles.premium_since (nullable)
	UpdatedAt         time.Time  // profiles.updated_at
}

// CustomerID returns the billing customer id or "" when none is recorded.
func (p Profile) CustomerID() string {
	if p.BillingCustomerID == nil {
		return ""
	}
	return *p.BillingCustomerID
}
