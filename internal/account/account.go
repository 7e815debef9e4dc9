// Package account manages users and their business/plan profiles.
//
// The profile row carries the raw plan string and subscription state written
// by the billing webhook. The entitlement engine only ever reads these
// fields; it never writes them.
package account

import (
	"errors"
	"time"
)

// Errors
var (
	ErrUserNotFound = errors.New("account: user not found")
	ErrEmailTaken   = errors.New("account: email already registered")
)

// User represents a registered account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`

	// Business profile (printed on invoices).
	BusinessName    string `json:"businessName,omitempty"`
	BusinessAddress string `json:"businessAddress,omitempty"`
	TaxID           string `json:"taxId,omitempty"`
	Currency        string `json:"currency"` // ISO 4217, defaults to USD

	// Billing state, written by the Stripe webhook.
	Plan                 string     `json:"plan"` // raw plan string as the provider reported it
	SubscriptionStatus   string     `json:"subscriptionStatus,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty"`
	StripeCustomerID     string     `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string     `json:"stripeSubscriptionId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlanProfile is the tuple the entitlement evaluator needs.
type PlanProfile struct {
	Plan               string
	SubscriptionStatus string
	CurrentPeriodEnd   *time.Time
}

// PlanProfile extracts the entitlement-relevant fields.
func (u *User) PlanProfile() PlanProfile {
	return PlanProfile{
		Plan:               u.Plan,
		SubscriptionStatus: u.SubscriptionStatus,
		CurrentPeriodEnd:   u.CurrentPeriodEnd,
	}
}
