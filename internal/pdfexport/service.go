package pdfexport

import (
	"context"
	"fmt"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/invoice"
	"github.com/quillbill/quillbill/internal/metrics"
	"github.com/quillbill/quillbill/internal/plan"
	"github.com/quillbill/quillbill/internal/template"
	"github.com/quillbill/quillbill/internal/traces"
)

// Service gates and runs invoice PDF export.
type Service struct {
	renderer *Renderer
	invoices *invoice.Service
	accounts account.Store
	checker  *entitlement.Service
}

// NewService creates a new PDF export service.
func NewService(invoices *invoice.Service, accounts account.Store, checker *entitlement.Service) *Service {
	return &Service{
		renderer: NewRenderer(),
		invoices: invoices,
		accounts: accounts,
		checker:  checker,
	}
}

// Export renders an invoice owned by userID to PDF. The export itself is a
// paid feature; the custom-branding flag separately decides whether the
// template accent color is applied.
func (s *Service) Export(ctx context.Context, userID, invoiceID string) ([]byte, *entitlement.Result, error) {
	ctx, span := traces.StartSpan(ctx, "pdfexport.export",
		traces.UserID(userID), traces.InvoiceID(invoiceID))
	defer span.End()

	// Fail closed: no profile, no export.
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plan profile: %w", err)
	}

	res := s.checker.CheckPremiumFeature(user.Plan, user.SubscriptionStatus,
		user.CurrentPeriodEnd, plan.FeaturePDFExport)
	metrics.ObserveEntitlementCheck("pdf.export", res.Allowed)
	span.SetAttributes(traces.CheckAllowed(res.Allowed))
	if !res.Allowed {
		return nil, &res, invoice.ErrPlanLimit
	}

	inv, err := s.invoices.Get(ctx, userID, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	tpl, err := template.ByID(inv.TemplateID)
	if err != nil {
		tpl = template.Default()
	}

	branding := s.checker.CheckFeature(user.Plan, plan.FeatureCustomBranding)
	pdf, err := s.renderer.Render(inv, user, tpl, branding.Allowed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render invoice: %w", err)
	}

	metrics.PDFExportsTotal.Inc()
	return pdf, &res, nil
}
