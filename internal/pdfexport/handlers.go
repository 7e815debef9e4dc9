package pdfexport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillbill/quillbill/internal/auth"
	"github.com/quillbill/quillbill/internal/invoice"
)

// Handler serves invoice PDF downloads.
type Handler struct {
	svc *Service
}

// NewHandler creates a new PDF export handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the export route (token auth required).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/invoices/:id/pdf", h.ExportPDF)
}

// ExportPDF handles GET /v1/invoices/:id/pdf.
func (h *Handler) ExportPDF(c *gin.Context) {
	pdf, verdict, err := h.svc.Export(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrPlanLimit):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":     "plan_limit",
				"message":   verdict.Reason,
				"upgradeTo": verdict.UpgradeTo,
			})
		case errors.Is(err, invoice.ErrInvoiceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "invoice not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to export invoice"})
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
