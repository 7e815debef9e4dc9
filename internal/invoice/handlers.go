package invoice

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quillbill/quillbill/internal/auth"
	"github.com/quillbill/quillbill/internal/client"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/pagination"
	"github.com/quillbill/quillbill/internal/plan"
	"github.com/quillbill/quillbill/internal/template"
	"github.com/quillbill/quillbill/internal/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler provides HTTP endpoints for invoice management.
type Handler struct {
	svc *Service
}

// NewHandler creates a new invoice handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the invoice routes (token auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/invoices", h.CreateInvoice)
	r.POST("/invoices/draft", h.DraftFromText)
	r.GET("/invoices", h.ListInvoices)
	r.GET("/invoices/:id", h.GetInvoice)
	r.POST("/invoices/:id/status", h.UpdateStatus)
	r.PUT("/invoices/:id/template", h.SetTemplate)
	r.DELETE("/invoices/:id", h.DeleteInvoice)
	r.GET("/templates", h.ListTemplates)
}

type lineItemRequest struct {
	Description string  `json:"description" binding:"required"`
	Quantity    float64 `json:"quantity"`
	UnitCents   int64   `json:"unitCents"`
}

type createInvoiceRequest struct {
	ClientID    string             `json:"clientId"`
	ClientName  string             `json:"clientName"`
	ClientEmail string             `json:"clientEmail"`
	Items       []lineItemRequest  `json:"items" binding:"required"`
	Currency    string             `json:"currency"`
	Notes       string             `json:"notes"`
	TemplateID  string             `json:"templateId"`
	IssueDate   *time.Time         `json:"issueDate"`
	DueDate     *time.Time         `json:"dueDate"`
	Recurring   *RecurringSchedule `json:"recurring"`
}

// CreateInvoice handles POST /v1/invoices.
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "items required"})
		return
	}
	if req.Currency != "" && !validation.IsValidCurrency(req.Currency) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency", "message": "currency must be a 3-letter ISO code"})
		return
	}

	in := CreateInput{
		ClientID:    req.ClientID,
		ClientName:  validation.SanitizeString(req.ClientName, 200),
		ClientEmail: validation.NormalizeEmail(req.ClientEmail),
		Currency:    req.Currency,
		Notes:       validation.SanitizeString(req.Notes, 2000),
		TemplateID:  req.TemplateID,
		Recurring:   req.Recurring,
	}
	for _, li := range req.Items {
		if li.Quantity <= 0 || li.UnitCents < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_line_item", "message": "quantity must be positive and unitCents non-negative"})
			return
		}
		in.Items = append(in.Items, LineItem{
			Description: validation.SanitizeString(li.Description, 500),
			Quantity:    li.Quantity,
			UnitCents:   li.UnitCents,
		})
	}
	if req.IssueDate != nil {
		in.IssueDate = *req.IssueDate
	}
	if req.DueDate != nil {
		in.DueDate = *req.DueDate
	}

	inv, verdict, err := h.svc.Create(c.Request.Context(), auth.UserID(c), in)
	if err != nil {
		h.writeError(c, verdict, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": inv})
}

// DraftFromText handles POST /v1/invoices/draft.
func (h *Handler) DraftFromText(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "text required"})
		return
	}

	inv, verdict, err := h.svc.DraftFromText(c.Request.Context(), auth.UserID(c), req.Text)
	if err != nil {
		if errors.Is(err, ErrEmptyDraft) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "empty_draft", "message": err.Error()})
			return
		}
		h.writeError(c, verdict, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": inv})
}

// ListInvoices handles GET /v1/invoices with cursor pagination.
func (h *Handler) ListInvoices(c *gin.Context) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "message": "limit must be 1-100"})
			return
		}
		limit = n
	}
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": err.Error()})
		return
	}
	var before time.Time
	var beforeID string
	if cursor != nil {
		before, beforeID = cursor.Keyset()
	}

	// Fetch one extra row to learn whether another page exists.
	invoices, err := h.svc.List(c.Request.Context(), auth.UserID(c), before, beforeID, limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list invoices"})
		return
	}
	page, next, hasMore := pagination.ComputePage(invoices, limit, func(inv *Invoice) (time.Time, string) {
		return inv.CreatedAt, inv.ID
	})
	if page == nil {
		page = []*Invoice{}
	}
	c.JSON(http.StatusOK, gin.H{
		"invoices":    page,
		"next_cursor": next,
		"has_more":    hasMore,
	})
}

// GetInvoice handles GET /v1/invoices/:id.
func (h *Handler) GetInvoice(c *gin.Context) {
	inv, err := h.svc.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv, "total_cents": inv.SubtotalCents()})
}

// UpdateStatus handles POST /v1/invoices/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "status required"})
		return
	}

	inv, err := h.svc.UpdateStatus(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Status)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv})
}

// SetTemplate handles PUT /v1/invoices/:id/template.
func (h *Handler) SetTemplate(c *gin.Context) {
	var req struct {
		TemplateID string `json:"templateId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "templateId required"})
		return
	}

	inv, verdict, err := h.svc.SetTemplate(c.Request.Context(), auth.UserID(c), c.Param("id"), req.TemplateID)
	if err != nil {
		if errors.Is(err, template.ErrUnknownTemplate) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_template", "message": err.Error()})
			return
		}
		h.writeError(c, verdict, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv})
}

// DeleteInvoice handles DELETE /v1/invoices/:id.
func (h *Handler) DeleteInvoice(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListTemplates handles GET /v1/templates: the full catalog annotated with
// which entries the caller's tier unlocks.
func (h *Handler) ListTemplates(c *gin.Context) {
	user, err := h.svc.accounts.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load profile"})
		return
	}

	type entry struct {
		template.Template
		Unlocked bool `json:"unlocked"`
	}
	out := make([]entry, 0, len(template.All()))
	for _, tpl := range template.All() {
		res := h.svc.checker.CheckOrdinalLimit(user.Plan, plan.LimitTemplates, tpl.Index)
		out = append(out, entry{Template: tpl, Unlocked: res.Allowed})
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

// writeError maps a service error to an HTTP response. A plan-limit denial is
// a 402 carrying the reason and a concrete upgrade target.
func (h *Handler) writeError(c *gin.Context, verdict *entitlement.Result, err error) {
	switch {
	case errors.Is(err, ErrPlanLimit):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "plan_limit",
			"message":   verdict.Reason,
			"upgradeTo": verdict.UpgradeTo,
		})
	case errors.Is(err, ErrNoLineItems):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_line_items", "message": err.Error()})
	case errors.Is(err, ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "invoice not found"})
	case errors.Is(err, client.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_client", "message": "client not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "operation failed"})
	}
}
