package client

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillbill/quillbill/internal/auth"
	"github.com/quillbill/quillbill/internal/validation"
)

// Handler provides HTTP endpoints for client management.
type Handler struct {
	svc *Service
}

// NewHandler creates a new client handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the client routes (token auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/clients", h.CreateClient)
	r.GET("/clients", h.ListClients)
	r.GET("/clients/:id", h.GetClient)
	r.PATCH("/clients/:id", h.UpdateClient)
	r.DELETE("/clients/:id", h.DeleteClient)
}

// CreateClient handles POST /v1/clients.
func (h *Handler) CreateClient(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email"`
		Company string `json:"company"`
		Address string `json:"address"`
		Notes   string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name required"})
		return
	}
	if req.Email != "" && !validation.IsValidEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "email address is not valid"})
		return
	}

	created, verdict, err := h.svc.Create(c.Request.Context(), auth.UserID(c), CreateInput{
		Name:    validation.SanitizeString(req.Name, 200),
		Email:   validation.NormalizeEmail(req.Email),
		Company: validation.SanitizeString(req.Company, 200),
		Address: validation.SanitizeString(req.Address, 500),
		Notes:   validation.SanitizeString(req.Notes, 2000),
	})
	if err != nil {
		if err == ErrPlanLimit {
			// Denial is the expected outcome here, not a failure: surface the
			// reason and a concrete upgrade target for the prompt.
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":     "plan_limit",
				"message":   verdict.Reason,
				"upgradeTo": verdict.UpgradeTo,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create client"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": created})
}

// ListClients handles GET /v1/clients.
func (h *Handler) ListClients(c *gin.Context) {
	clients, err := h.svc.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list clients"})
		return
	}
	if clients == nil {
		clients = []*Client{}
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients, "count": len(clients)})
}

// GetClient handles GET /v1/clients/:id.
func (h *Handler) GetClient(c *gin.Context) {
	cl, err := h.svc.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": cl})
}

// UpdateClient handles PATCH /v1/clients/:id.
func (h *Handler) UpdateClient(c *gin.Context) {
	var req struct {
		Name    *string `json:"name"`
		Email   *string `json:"email"`
		Company *string `json:"company"`
		Address *string `json:"address"`
		Notes   *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid JSON body"})
		return
	}

	cl, err := h.svc.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "client not found"})
		return
	}

	if req.Name != nil {
		cl.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.Email != nil {
		if *req.Email != "" && !validation.IsValidEmail(*req.Email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "email address is not valid"})
			return
		}
		cl.Email = validation.NormalizeEmail(*req.Email)
	}
	if req.Company != nil {
		cl.Company = validation.SanitizeString(*req.Company, 200)
	}
	if req.Address != nil {
		cl.Address = validation.SanitizeString(*req.Address, 500)
	}
	if req.Notes != nil {
		cl.Notes = validation.SanitizeString(*req.Notes, 2000)
	}

	if err := h.svc.Update(c.Request.Context(), auth.UserID(c), cl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update client"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": cl})
}

// DeleteClient handles DELETE /v1/clients/:id.
func (h *Handler) DeleteClient(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
