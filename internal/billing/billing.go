// Package billing integrates with Stripe: checkout sessions for upgrading to
// pro, the billing portal, cancellation, and the webhook that keeps each
// account's plan profile in sync with the provider. The entitlement engine
// never talks to Stripe; it only reads what this package writes to the
// account profile.
package billing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	stripesubscription "github.com/stripe/stripe-go/v81/subscription"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/logging"
	"github.com/quillbill/quillbill/internal/metrics"
)

// Errors
var (
	ErrNoSubscription = errors.New("billing: no active subscription")
	ErrNoCustomer     = errors.New("billing: no billing profile on file")
)

// Config holds the Stripe settings.
type Config struct {
	SecretKey        string
	WebhookSecret    string
	PricePro         string
	SuccessURL       string
	CancelURL        string
	WebhookTolerance time.Duration
}

// EventPublisher pushes billing events to connected dashboard clients.
// A nil publisher disables events.
type EventPublisher interface {
	Publish(userID, event string, data interface{})
}

// Service drives the Stripe billing flows.
type Service struct {
	accounts account.Store
	cfg      Config
	events   EventPublisher
}

// NewService creates a new billing service. events may be nil.
func NewService(accounts account.Store, cfg Config, events EventPublisher) *Service {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = 5 * time.Minute
	}
	stripe.Key = cfg.SecretKey
	return &Service{accounts: accounts, cfg: cfg, events: events}
}

// CreateCheckoutSession starts a Stripe subscription checkout for the pro
// plan and returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string) (string, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(user.ID),
		CustomerEmail:     stripe.String(user.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PricePro),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": user.ID, "plan": "pro"},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", user.ID)
	params.AddMetadata("plan", "pro")
	params.IdempotencyKey = stripe.String(newIdempotencyKey())

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	metrics.CheckoutSessionsTotal.Inc()
	logging.L(ctx).Info("checkout session created",
		"user_id", user.ID, "session_id", sess.ID)
	return sess.URL, nil
}

// CreatePortalSession returns a Stripe billing portal URL where the customer
// can manage payment methods and invoices.
func (s *Service) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}
	if user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.SuccessURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sess.URL, nil
}

// CancelSubscription cancels the user's Stripe subscription at the provider.
// The profile is only downgraded when the cancellation webhook arrives, so a
// failed provider call never strands the local state.
func (s *Service) CancelSubscription(ctx context.Context, userID string) error {
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if user.StripeSubscriptionID == "" {
		return ErrNoSubscription
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(newIdempotencyKey())

	if _, err := stripesubscription.Cancel(user.StripeSubscriptionID, params); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	logging.L(ctx).Info("subscription cancellation requested",
		"user_id", user.ID, "subscription_id", user.StripeSubscriptionID)
	return nil
}

func (s *Service) publish(userID, event string, data map[string]interface{}) {
	if s.events != nil {
		s.events.Publish(userID, event, data)
	}
}

func newIdempotencyKey() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("qbk_%d", time.Now().UnixNano())
	}
	return "qbk_" + base64.RawURLEncoding.EncodeToString(buf)
}
