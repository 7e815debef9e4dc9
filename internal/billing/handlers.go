package billing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillbill/quillbill/internal/auth"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/plan"
)

// Handler provides HTTP endpoints for billing flows.
type Handler struct {
	svc     *Service
	checker *entitlement.Service
}

// NewHandler creates a new billing handler.
func NewHandler(svc *Service, checker *entitlement.Service) *Handler {
	return &Handler{svc: svc, checker: checker}
}

// RegisterRoutes sets up the billing routes (token auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/billing/subscription", h.GetSubscription)
	r.POST("/billing/checkout", h.CreateCheckout)
	r.POST("/billing/portal", h.CreatePortal)
	r.POST("/billing/cancel", h.Cancel)
}

// RegisterWebhookRoutes sets up the public webhook endpoint. It must not sit
// behind token auth; Stripe authenticates with its signature header.
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/stripe", h.svc.HandleWebhook)
}

// GetSubscription handles GET /v1/billing/subscription: the caller's raw
// billing state plus the tier and limits the entitlement engine derives
// from it.
func (h *Handler) GetSubscription(c *gin.Context) {
	user, err := h.svc.accounts.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load account"})
		return
	}

	tier := plan.Normalize(user.Plan)
	c.JSON(http.StatusOK, gin.H{
		"plan":             user.Plan,
		"tier":             tier,
		"status":           user.SubscriptionStatus,
		"currentPeriodEnd": user.CurrentPeriodEnd,
		"active":           h.checker.IsSubscriptionActive(user.SubscriptionStatus, user.CurrentPeriodEnd),
		"limits":           h.checker.Catalog().Limits(tier),
	})
}

// CreateCheckout handles POST /v1/billing/checkout.
func (h *Handler) CreateCheckout(c *gin.Context) {
	url, err := h.svc.CreateCheckoutSession(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "checkout_failed", "message": "failed to start checkout"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// CreatePortal handles POST /v1/billing/portal.
func (h *Handler) CreatePortal(c *gin.Context) {
	url, err := h.svc.CreatePortalSession(c.Request.Context(), auth.UserID(c))
	if err != nil {
		if errors.Is(err, ErrNoCustomer) {
			c.JSON(http.StatusConflict, gin.H{"error": "no_billing_profile", "message": "subscribe first to manage billing"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "portal_failed", "message": "failed to open billing portal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Cancel handles POST /v1/billing/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.CancelSubscription(c.Request.Context(), auth.UserID(c)); err != nil {
		if errors.Is(err, ErrNoSubscription) {
			c.JSON(http.StatusConflict, gin.H{"error": "no_subscription", "message": "nothing to cancel"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "cancel_failed", "message": "failed to cancel subscription"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancellation_requested"})
}
