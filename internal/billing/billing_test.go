package billing

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/plan"
)

const testWebhookSecret = "whsec_test_secret"

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) Publish(_, event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newWebhookFixture(t *testing.T) (*gin.Engine, *account.MemoryStore, *account.User, *eventRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	accounts := account.NewMemoryStore()
	user := &account.User{
		ID:    "usr_hook",
		Email: "freelancer@example.com",
		Name:  "Test Freelancer",
		Plan:  "free",
	}
	require.NoError(t, accounts.Create(context.Background(), user))

	events := &eventRecorder{}
	svc := NewService(accounts, Config{WebhookSecret: testWebhookSecret}, events)

	r := gin.New()
	r.POST("/webhooks/stripe", svc.HandleWebhook)
	return r, accounts, user, events
}

func deliver(t *testing.T, r *gin.Engine, payload string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	r, _, _, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		bytes.NewReader([]byte(`{"type":"checkout.session.completed"}`)))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_signature")
}

func TestWebhook_RejectsMissingSignature(t *testing.T) {
	r, _, _, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_CheckoutCompletedActivatesPlan(t *testing.T) {
	r, accounts, user, events := newWebhookFixture(t)

	payload := fmt.Sprintf(`{
		"id": "evt_1", "type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": %q,
			"metadata": {"user_id": %q, "plan": "pro"},
			"customer": {"id": "cus_123"},
			"subscription": {"id": "sub_123"}
		}}
	}`, user.ID, user.ID)

	w := deliver(t, r, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, err := accounts.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", updated.Plan)
	assert.Equal(t, "active", updated.SubscriptionStatus)
	assert.Equal(t, "cus_123", updated.StripeCustomerID)
	assert.Equal(t, "sub_123", updated.StripeSubscriptionID)
	assert.Contains(t, events.names(), "subscription.updated")
}

func TestWebhook_SubscriptionUpdatedStoresRawStatusAndPeriodEnd(t *testing.T) {
	r, accounts, user, _ := newWebhookFixture(t)

	periodEnd := time.Now().AddDate(0, 1, 0).Unix()
	payload := fmt.Sprintf(`{
		"id": "evt_2", "type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_123",
			"status": "past_due",
			"metadata": {"user_id": %q},
			"customer": {"id": "cus_123"},
			"current_period_end": %d
		}}
	}`, user.ID, periodEnd)

	w := deliver(t, r, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, err := accounts.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "past_due", updated.SubscriptionStatus)
	require.NotNil(t, updated.CurrentPeriodEnd)
	assert.Equal(t, periodEnd, updated.CurrentPeriodEnd.Unix())

	// past_due is stored verbatim but is not an active status.
	checker := entitlement.NewService(plan.DefaultCatalog())
	assert.False(t, checker.IsSubscriptionActive(updated.SubscriptionStatus, updated.CurrentPeriodEnd))
}

func TestWebhook_SubscriptionDeletedDowngradesToFree(t *testing.T) {
	r, accounts, user, events := newWebhookFixture(t)

	user.Plan = "pro"
	user.SubscriptionStatus = "active"
	user.StripeCustomerID = "cus_123"
	user.StripeSubscriptionID = "sub_123"
	require.NoError(t, accounts.Update(context.Background(), user))

	payload := `{
		"id": "evt_3", "type": "customer.subscription.deleted",
		"data": {"object": {
			"id": "sub_123",
			"status": "canceled",
			"customer": {"id": "cus_123"}
		}}
	}`

	w := deliver(t, r, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, err := accounts.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "free", updated.Plan)
	assert.Equal(t, "canceled", updated.SubscriptionStatus)
	assert.Empty(t, updated.StripeSubscriptionID)
	assert.Nil(t, updated.CurrentPeriodEnd)
	assert.Contains(t, events.names(), "subscription.updated")
}

func TestWebhook_UnknownAccountIsAcknowledged(t *testing.T) {
	r, _, _, _ := newWebhookFixture(t)

	payload := `{
		"id": "evt_4", "type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_999",
			"status": "active",
			"customer": {"id": "cus_nobody"}
		}}
	}`

	w := deliver(t, r, payload)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestWebhook_UnhandledEventIsIgnored(t *testing.T) {
	r, _, _, _ := newWebhookFixture(t)

	w := deliver(t, r, `{"id": "evt_5", "type": "invoice.payment_succeeded", "data": {"object": {}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestCancelSubscription_NoSubscription(t *testing.T) {
	accounts := account.NewMemoryStore()
	user := &account.User{ID: "usr_free", Email: "f@example.com", Plan: "free"}
	require.NoError(t, accounts.Create(context.Background(), user))

	svc := NewService(accounts, Config{}, nil)
	err := svc.CancelSubscription(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestCreatePortalSession_NoCustomer(t *testing.T) {
	accounts := account.NewMemoryStore()
	user := &account.User{ID: "usr_free", Email: "f@example.com", Plan: "free"}
	require.NoError(t, accounts.Create(context.Background(), user))

	svc := NewService(accounts, Config{}, nil)
	_, err := svc.CreatePortalSession(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrNoCustomer)
}
