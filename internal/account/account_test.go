package account

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbill/quillbill/internal/auth"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u := &User{ID: "usr_1", Email: "Ada@Example.com", Name: "Ada", Plan: "free"}
	require.NoError(t, s.Create(ctx, u))

	got, err := s.Get(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	// Email lookup is case-insensitive.
	got, err = s.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", got.ID)

	_, err = s.Get(ctx, "usr_missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryStore_DuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &User{ID: "usr_1", Email: "ada@example.com"}))
	err := s.Create(ctx, &User{ID: "usr_2", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestMemoryStore_GetByStripeCustomer(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u := &User{ID: "usr_1", Email: "ada@example.com", StripeCustomerID: "cus_123"}
	require.NoError(t, s.Create(ctx, u))

	got, err := s.GetByStripeCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", got.ID)

	_, err = s.GetByStripeCustomer(ctx, "cus_unknown")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryStore_CopyOnReadWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &User{ID: "usr_1", Email: "ada@example.com", Plan: "free"}))

	got, err := s.Get(ctx, "usr_1")
	require.NoError(t, err)
	got.Plan = "pro" // mutating the copy must not leak into the store

	again, err := s.Get(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "free", again.Plan)
}

func TestUser_PlanProfile(t *testing.T) {
	end := time.Now().AddDate(0, 1, 0)
	u := &User{Plan: "pro", SubscriptionStatus: "active", CurrentPeriodEnd: &end}

	p := u.PlanProfile()
	assert.Equal(t, "pro", p.Plan)
	assert.Equal(t, "active", p.SubscriptionStatus)
	require.NotNil(t, p.CurrentPeriodEnd)
	assert.True(t, p.CurrentPeriodEnd.Equal(end))
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func newTestRouter(t *testing.T) (*gin.Engine, *MemoryStore, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	mgr := auth.NewManager(auth.NewMemoryStore())
	h := NewHandler(store, mgr)

	r := gin.New()
	v1 := r.Group("/v1")
	h.RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(auth.Middleware(mgr), auth.RequireAuth())
	h.RegisterProtectedRoutes(protected)
	return r, store, mgr
}

func postJSON(r *gin.Engine, path, token string, body interface{}) *httptest.ResponseRecorder {
	return requestJSON(r, http.MethodPost, path, token, body)
}

func requestJSON(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_SignupIssuesToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := postJSON(r, "/v1/signup", "", map[string]string{
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		User     *User  `json:"user"`
		APIToken string `json:"apiToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "free", resp.User.Plan)
	assert.Equal(t, "USD", resp.User.Currency)
	assert.True(t, len(resp.APIToken) > 10)
	assert.Contains(t, resp.APIToken, "qb_")
}

func TestHandler_SignupRejectsBadInput(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := postJSON(r, "/v1/signup", "", map[string]string{"email": "not-an-email", "name": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_email")

	w = postJSON(r, "/v1/signup", "", map[string]string{"name": "No Email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/v1/signup", "", map[string]string{
		"email": "ada@example.com", "name": "Ada", "currency": "DOLLARS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_currency")
}

func TestHandler_SignupDuplicateEmailConflicts(t *testing.T) {
	r, _, _ := newTestRouter(t)

	body := map[string]string{"email": "ada@example.com", "name": "Ada"}
	w := postJSON(r, "/v1/signup", "", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/v1/signup", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "email_taken")
}

func TestHandler_GetMeAndUpdateMe(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := postJSON(r, "/v1/signup", "", map[string]string{
		"email": "ada@example.com", "name": "Ada",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var signup struct {
		APIToken string `json:"apiToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signup))

	w = requestJSON(r, http.MethodGet, "/v1/me", signup.APIToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")

	w = requestJSON(r, http.MethodPatch, "/v1/me", signup.APIToken, map[string]string{
		"businessName": "Lovelace Analytics",
		"currency":     "EUR",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Lovelace Analytics")
	assert.Contains(t, w.Body.String(), "EUR")

	// Fields not in the PATCH body stay untouched.
	w = requestJSON(r, http.MethodGet, "/v1/me", signup.APIToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ada"`)
}

func TestHandler_MeRequiresAuth(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := requestJSON(r, http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
