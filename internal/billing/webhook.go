package billing

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/logging"
	"github.com/quillbill/quillbill/internal/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB hard cap

// HandleWebhook processes Stripe webhook events. It is the only writer of the
// plan/subscription fields on the account profile. Unrecognized event types
// are acknowledged and ignored so Stripe doesn't retry them forever.
func (s *Service) HandleWebhook(c *gin.Context) {
	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		metrics.StripeWebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_signature", "message": "Stripe-Signature header required"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "failed to read request body"})
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, s.cfg.WebhookSecret, s.cfg.WebhookTolerance)
	if err != nil {
		metrics.StripeWebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature", "message": "webhook signature verification failed"})
		return
	}

	evtType := string(evt.Type)
	logging.L(c.Request.Context()).Info("stripe webhook event received",
		"event_id", evt.ID, "event_type", evtType)

	result := "ok"
	switch evtType {
	case "checkout.session.completed":
		err = s.applyCheckoutCompleted(c, evt.Data.Raw)
	case "customer.subscription.created", "customer.subscription.updated":
		err = s.applySubscriptionUpdated(c, evt.Data.Raw)
	case "customer.subscription.deleted":
		err = s.applySubscriptionDeleted(c, evt.Data.Raw)
	default:
		result = "ignored"
	}
	if err != nil {
		metrics.StripeWebhookEventsTotal.WithLabelValues(evtType, "error").Inc()
		logging.L(c.Request.Context()).Error("stripe webhook processing failed",
			"event_id", evt.ID, "event_type", evtType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook_failed", "message": "failed to process event"})
		return
	}

	metrics.StripeWebhookEventsTotal.WithLabelValues(evtType, result).Inc()
	c.JSON(http.StatusOK, gin.H{"status": result})
}

func (s *Service) applyCheckoutCompleted(c *gin.Context, raw json.RawMessage) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return err
	}
	userID := session.Metadata["user_id"]
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		logging.L(c.Request.Context()).Warn("stripe checkout session missing user_id metadata",
			"session_id", session.ID)
		return nil
	}

	ctx := c.Request.Context()
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return err
	}

	planName := session.Metadata["plan"]
	if planName == "" {
		planName = "pro"
	}
	user.Plan = planName
	user.SubscriptionStatus = "active"
	if session.Customer != nil {
		user.StripeCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		user.StripeSubscriptionID = session.Subscription.ID
	}
	user.UpdatedAt = time.Now()
	if err := s.accounts.Update(ctx, user); err != nil {
		return err
	}

	logging.L(ctx).Info("plan activated via checkout",
		"user_id", user.ID, "plan", user.Plan)
	s.publish(user.ID, "subscription.updated", map[string]interface{}{
		"plan": user.Plan, "status": user.SubscriptionStatus,
	})
	return nil
}

func (s *Service) applySubscriptionUpdated(c *gin.Context, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return err
	}

	ctx := c.Request.Context()
	user, err := s.resolveUser(c, sub.Metadata["user_id"], sub.Customer)
	if err != nil || user == nil {
		return err
	}

	// The raw provider status is stored as-is; the entitlement engine decides
	// which statuses count as active.
	user.SubscriptionStatus = string(sub.Status)
	if planName := sub.Metadata["plan"]; planName != "" {
		user.Plan = planName
	}
	user.StripeSubscriptionID = sub.ID
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		user.CurrentPeriodEnd = &end
	}
	user.UpdatedAt = time.Now()
	if err := s.accounts.Update(ctx, user); err != nil {
		return err
	}

	logging.L(ctx).Info("subscription state updated",
		"user_id", user.ID, "status", user.SubscriptionStatus)
	s.publish(user.ID, "subscription.updated", map[string]interface{}{
		"plan": user.Plan, "status": user.SubscriptionStatus,
	})
	return nil
}

func (s *Service) applySubscriptionDeleted(c *gin.Context, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return err
	}

	ctx := c.Request.Context()
	user, err := s.resolveUser(c, sub.Metadata["user_id"], sub.Customer)
	if err != nil || user == nil {
		return err
	}

	user.Plan = "free"
	user.SubscriptionStatus = "canceled"
	user.StripeSubscriptionID = ""
	user.CurrentPeriodEnd = nil
	user.UpdatedAt = time.Now()
	if err := s.accounts.Update(ctx, user); err != nil {
		return err
	}

	logging.L(ctx).Info("subscription canceled, plan downgraded",
		"user_id", user.ID)
	s.publish(user.ID, "subscription.updated", map[string]interface{}{
		"plan": user.Plan, "status": user.SubscriptionStatus,
	})
	return nil
}

// resolveUser finds the account a subscription event belongs to, preferring
// explicit metadata over the customer id. A nil user with nil error means the
// event references nobody we know; it is acknowledged and dropped.
func (s *Service) resolveUser(c *gin.Context, metaUserID string, customer *stripe.Customer) (*account.User, error) {
	ctx := c.Request.Context()
	if metaUserID != "" {
		user, err := s.accounts.Get(ctx, metaUserID)
		if err == nil {
			return user, nil
		}
	}
	if customer != nil {
		user, err := s.accounts.GetByStripeCustomer(ctx, customer.ID)
		if err == nil {
			return user, nil
		}
	}
	logging.L(ctx).Warn("stripe subscription event for unknown account")
	return nil, nil
}
