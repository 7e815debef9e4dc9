package account

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quillbill/quillbill/internal/auth"
	"github.com/quillbill/quillbill/internal/idgen"
	"github.com/quillbill/quillbill/internal/logging"
	"github.com/quillbill/quillbill/internal/validation"
)

// Handler provides HTTP endpoints for account management.
type Handler struct {
	store   Store
	authMgr *auth.Manager
}

// NewHandler creates a new account handler.
func NewHandler(store Store, authMgr *auth.Manager) *Handler {
	return &Handler{store: store, authMgr: authMgr}
}

// RegisterPublicRoutes sets up routes that need no authentication.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/signup", h.Signup)
}

// RegisterProtectedRoutes sets up routes behind token auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.GetMe)
	r.PATCH("/me", h.UpdateMe)
	r.GET("/me/tokens", h.ListTokens)
	r.DELETE("/me/tokens/:tokenId", h.RevokeToken)
}

// Signup handles POST /v1/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req struct {
		Email        string `json:"email" binding:"required"`
		Name         string `json:"name" binding:"required"`
		BusinessName string `json:"businessName"`
		Currency     string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and name required"})
		return
	}

	req.Email = validation.NormalizeEmail(req.Email)
	if !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "email address is not valid"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if !validation.IsValidCurrency(req.Currency) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency", "message": "currency must be a 3-letter ISO code"})
		return
	}

	now := time.Now()
	u := &User{
		ID:           idgen.WithPrefix("usr_"),
		Email:        req.Email,
		Name:         validation.SanitizeString(req.Name, 200),
		BusinessName: validation.SanitizeString(req.BusinessName, 200),
		Currency:     req.Currency,
		Plan:         "free", // everyone starts on free; Stripe webhooks flip this
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.Create(c.Request.Context(), u); err != nil {
		if err == ErrEmailTaken {
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "email already registered"})
			return
		}
		logging.L(c.Request.Context()).Error("failed to create user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create account"})
		return
	}

	rawToken, tok, err := h.authMgr.GenerateToken(c.Request.Context(), u.ID, "default")
	if err != nil {
		c.JSON(http.StatusCreated, gin.H{
			"user":    u,
			"warning": "Account created but token generation failed. Contact support.",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":     u,
		"apiToken": rawToken,
		"tokenId":  tok.ID,
		"warning":  "Store this API token securely. It will not be shown again.",
	})
}

// GetMe handles GET /v1/me.
func (h *Handler) GetMe(c *gin.Context) {
	u, err := h.store.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		if err == ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// UpdateMe handles PATCH /v1/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	var req struct {
		Name            *string `json:"name"`
		BusinessName    *string `json:"businessName"`
		BusinessAddress *string `json:"businessAddress"`
		TaxID           *string `json:"taxId"`
		Currency        *string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid JSON body"})
		return
	}

	u, err := h.store.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "user not found"})
		return
	}

	if req.Name != nil {
		u.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.BusinessName != nil {
		u.BusinessName = validation.SanitizeString(*req.BusinessName, 200)
	}
	if req.BusinessAddress != nil {
		u.BusinessAddress = validation.SanitizeString(*req.BusinessAddress, 500)
	}
	if req.TaxID != nil {
		u.TaxID = validation.SanitizeString(*req.TaxID, 50)
	}
	if req.Currency != nil {
		if !validation.IsValidCurrency(*req.Currency) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency", "message": "currency must be a 3-letter ISO code"})
			return
		}
		u.Currency = *req.Currency
	}
	u.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// ListTokens handles GET /v1/me/tokens.
func (h *Handler) ListTokens(c *gin.Context) {
	toks, err := h.authMgr.ListTokens(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": toks})
}

// RevokeToken handles DELETE /v1/me/tokens/:tokenId.
func (h *Handler) RevokeToken(c *gin.Context) {
	err := h.authMgr.RevokeToken(c.Request.Context(), c.Param("tokenId"), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "token not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
