package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/quillbill/quillbill/internal/account"
	"github.com/quillbill/quillbill/internal/client"
	"github.com/quillbill/quillbill/internal/entitlement"
	"github.com/quillbill/quillbill/internal/idgen"
	"github.com/quillbill/quillbill/internal/logging"
	"github.com/quillbill/quillbill/internal/metrics"
	"github.com/quillbill/quillbill/internal/plan"
	"github.com/quillbill/quillbill/internal/template"
	"github.com/quillbill/quillbill/internal/traces"
)

// EventPublisher pushes domain events to connected dashboard clients.
// A nil publisher disables events.
type EventPublisher interface {
	Publish(userID, event string, data interface{})
}

// Service provides invoice business logic. Every gated operation loads the
// owner's plan profile and fresh usage counts before acting, and fails closed
// when either fetch fails.
type Service struct {
	store    Store
	clients  client.Store
	accounts account.Store
	checker  *entitlement.Service
	events   EventPublisher
	now      func() time.Time
}

// NewService creates a new invoice service. events may be nil.
func NewService(store Store, clients client.Store, accounts account.Store, checker *entitlement.Service, events EventPublisher) *Service {
	return &Service{
		store:    store,
		clients:  clients,
		accounts: accounts,
		checker:  checker,
		events:   events,
		now:      time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput carries the fields a new invoice can set.
type CreateInput struct {
	ClientID    string
	ClientName  string
	ClientEmail string
	Items       []LineItem
	Currency    string
	Notes       string
	TemplateID  string
	IssueDate   time.Time
	DueDate     time.Time
	Recurring   *RecurringSchedule
}

// Create adds an invoice after all applicable gates pass: the monthly count
// cap always, the recurring-invoices flag when a schedule is attached, and
// the template ordinal limit when a non-default template is chosen. On denial
// it returns ErrPlanLimit plus the verdict.
//
// The count check and the insert are not atomic; a concurrent pair of creates
// can overshoot the monthly cap by one. Accepted as a soft limit.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Invoice, *entitlement.Result, error) {
	ctx, span := traces.StartSpan(ctx, "invoice.create", traces.UserID(userID))
	defer span.End()

	if len(in.Items) == 0 {
		return nil, nil, ErrNoLineItems
	}

	// Fail closed: no profile, no create.
	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plan profile: %w", err)
	}

	count, err := s.store.CountForMonth(ctx, userID, s.now())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	res := s.checker.CheckCountLimit(user.Plan, plan.LimitInvoicesPerMonth, count)
	metrics.ObserveEntitlementCheck("invoice.create", res.Allowed)
	span.SetAttributes(traces.CheckAllowed(res.Allowed))
	if !res.Allowed {
		s.publishDenial(userID, "invoice.create", res)
		return nil, &res, ErrPlanLimit
	}

	if in.Recurring != nil {
		res := s.checker.CheckPremiumFeature(user.Plan, user.SubscriptionStatus,
			user.CurrentPeriodEnd, plan.FeatureRecurringInvoices)
		metrics.ObserveEntitlementCheck("invoice.recurring", res.Allowed)
		if !res.Allowed {
			s.publishDenial(userID, "invoice.recurring", res)
			return nil, &res, ErrPlanLimit
		}
	}

	tpl := template.Default()
	if in.TemplateID != "" {
		tpl, err = template.ByID(in.TemplateID)
		if err != nil {
			return nil, nil, err
		}
		res := s.checker.CheckOrdinalLimit(user.Plan, plan.LimitTemplates, tpl.Index)
		metrics.ObserveEntitlementCheck("template.select", res.Allowed)
		if !res.Allowed {
			s.publishDenial(userID, "template.select", res)
			return nil, &res, ErrPlanLimit
		}
	}

	clientName, clientEmail := in.ClientName, in.ClientEmail
	if in.ClientID != "" {
		cl, err := s.clients.Get(ctx, in.ClientID)
		if err != nil {
			return nil, nil, err
		}
		if cl.UserID != userID {
			return nil, nil, client.ErrClientNotFound
		}
		clientName, clientEmail = cl.Name, cl.Email
	}

	now := s.now()
	year := now.UTC().Year()
	seq, err := s.store.NextSequence(ctx, userID, year)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	currency := in.Currency
	if currency == "" {
		currency = user.Currency
	}
	if currency == "" {
		currency = "USD"
	}
	issueDate := in.IssueDate
	if issueDate.IsZero() {
		issueDate = now
	}
	dueDate := in.DueDate
	if dueDate.IsZero() {
		dueDate = issueDate.AddDate(0, 0, 30)
	}

	inv := &Invoice{
		ID:          idgen.WithPrefix("inv_"),
		UserID:      userID,
		Number:      FormatNumber(year, seq),
		Seq:         seq,
		Year:        year,
		ClientID:    in.ClientID,
		ClientName:  clientName,
		ClientEmail: clientEmail,
		Status:      StatusDraft,
		Items:       in.Items,
		Currency:    currency,
		Notes:       in.Notes,
		TemplateID:  tpl.ID,
		IssueDate:   issueDate,
		DueDate:     dueDate,
		Recurring:   in.Recurring,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, inv); err != nil {
		return nil, nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	metrics.InvoicesCreatedTotal.Inc()
	s.publish(userID, "invoice.created", map[string]interface{}{"id": inv.ID, "number": inv.Number})
	logging.L(ctx).Info("invoice created",
		"invoice_id", inv.ID, "number", inv.Number, "total_cents", inv.SubtotalCents())
	return inv, &res, nil
}

// DraftFromText parses free-form text into a draft invoice. The parse itself
// is gated as a premium feature; the resulting create then runs the usual
// monthly count gate.
func (s *Service) DraftFromText(ctx context.Context, userID, text string) (*Invoice, *entitlement.Result, error) {
	ctx, span := traces.StartSpan(ctx, "invoice.draft_from_text", traces.UserID(userID))
	defer span.End()

	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plan profile: %w", err)
	}

	res := s.checker.CheckPremiumFeature(user.Plan, user.SubscriptionStatus,
		user.CurrentPeriodEnd, plan.FeatureAIGeneration)
	metrics.ObserveEntitlementCheck("invoice.draft_from_text", res.Allowed)
	span.SetAttributes(traces.CheckAllowed(res.Allowed))
	if !res.Allowed {
		s.publishDenial(userID, "invoice.draft_from_text", res)
		return nil, &res, ErrPlanLimit
	}

	draft, err := ParseDraft(text)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	return s.Create(ctx, userID, CreateInput{
		ClientName: draft.ClientName,
		Items:      draft.Items,
		Notes:      draft.Notes,
		IssueDate:  now,
		DueDate:    now.AddDate(0, 0, draft.DueInDays),
	})
}

// SetTemplate assigns a template to an invoice, gated by the template's
// catalog position.
func (s *Service) SetTemplate(ctx context.Context, userID, invoiceID, templateID string) (*Invoice, *entitlement.Result, error) {
	inv, err := s.Get(ctx, userID, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	tpl, err := template.ByID(templateID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plan profile: %w", err)
	}
	res := s.checker.CheckOrdinalLimit(user.Plan, plan.LimitTemplates, tpl.Index)
	metrics.ObserveEntitlementCheck("template.select", res.Allowed)
	if !res.Allowed {
		s.publishDenial(userID, "template.select", res)
		return nil, &res, ErrPlanLimit
	}

	inv.TemplateID = tpl.ID
	inv.UpdatedAt = s.now()
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, nil, err
	}
	return inv, &res, nil
}

// UpdateStatus moves an invoice along its lifecycle. Paid invoices get a
// timestamp and an event.
func (s *Service) UpdateStatus(ctx context.Context, userID, invoiceID string, to Status) (*Invoice, error) {
	inv, err := s.Get(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(inv.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, to)
	}
	inv.Status = to
	inv.UpdatedAt = s.now()
	if to == StatusPaid {
		paidAt := s.now()
		inv.PaidAt = &paidAt
	}
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, err
	}
	if to == StatusPaid {
		s.publish(userID, "invoice.paid", map[string]interface{}{"id": inv.ID, "number": inv.Number})
	}
	return inv, nil
}

// Get returns an invoice owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}

// List returns a page of the user's invoices, newest first.
func (s *Service) List(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Invoice, error) {
	return s.store.ListByUser(ctx, userID, before, beforeID, limit)
}

// Delete removes an invoice owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// GenerateRecurring creates the next occurrence of every due recurring
// invoice and advances its schedule. Occurrences denied by the owner's
// current monthly cap are skipped, not retried; the schedule still advances
// so a lapsed plan doesn't queue up a backlog. Returns how many invoices
// were generated.
func (s *Service) GenerateRecurring(ctx context.Context) (int, error) {
	due, err := s.store.ListRecurringDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due recurring invoices: %w", err)
	}

	generated := 0
	for _, src := range due {
		_, res, err := s.Create(ctx, src.UserID, CreateInput{
			ClientID:    src.ClientID,
			ClientName:  src.ClientName,
			ClientEmail: src.ClientEmail,
			Items:       src.Items,
			Currency:    src.Currency,
			Notes:       src.Notes,
			TemplateID:  src.TemplateID,
			DueDate:     s.now().AddDate(0, 0, 30),
		})
		switch {
		case err == ErrPlanLimit:
			logging.L(ctx).Warn("recurring invoice skipped",
				"invoice_id", src.ID, "reason", res.Reason)
		case err != nil:
			logging.L(ctx).Error("recurring invoice generation failed",
				"invoice_id", src.ID, "error", err)
			continue
		default:
			generated++
		}

		advanced := src.Recurring.Advance()
		src.Recurring = &advanced
		src.UpdatedAt = s.now()
		if err := s.store.Update(ctx, src); err != nil {
			logging.L(ctx).Error("failed to advance recurring schedule",
				"invoice_id", src.ID, "error", err)
		}
	}
	return generated, nil
}



func (s *Service) publish(userID, event string, data map[string]interface{}) {
	if s.events != nil {
		s.events.Publish(userID, event, data)
	}
}

func (s *Service) publishDenial(userID, action string, res entitlement.Result) {
	s.publish(userID, "limit.denied", map[string]interface{}{
		"action":    action,
		"reason":    res.Reason,
		"upgradeTo": res.UpgradeTo,
	})
}
