// Package invoice manages invoices through their draft→sent→paid lifecycle.
// Creation is gated by the tier's monthly invoice cap; recurring schedules,
// premium templates and text drafting are gated by tier flags.
package invoice

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrInvoiceNotFound   = errors.New("invoice: not found")
	ErrPlanLimit         = errors.New("invoice: plan limit reached")
	ErrInvalidTransition = errors.New("invoice: invalid status transition")
	ErrNoLineItems       = errors.New("invoice: at least one line item required")
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// validTransitions maps a status to the statuses it may move to.
var validTransitions = map[Status][]Status{
	StatusDraft:   {StatusSent},
	StatusSent:    {StatusPaid, StatusOverdue},
	StatusOverdue: {StatusPaid},
	StatusPaid:    {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LineItem is one billed row. Money is in integer cents to avoid float drift.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitCents   int64   `json:"unitCents"`
}

// TotalCents returns the line total rounded to the nearest cent.
func (li LineItem) TotalCents() int64 {
	return int64(li.Quantity*float64(li.UnitCents) + 0.5)
}

// RecurringSchedule repeats an invoice on a fixed interval.
type RecurringSchedule struct {
	Interval string    `json:"interval"` // "weekly" or "monthly"
	NextDate time.Time `json:"nextDate"`
}

// Advance returns the schedule moved one interval forward.
func (r RecurringSchedule) Advance() RecurringSchedule {
	next := r
	switch r.Interval {
	case "weekly":
		next.NextDate = r.NextDate.AddDate(0, 0, 7)
	default:
		next.NextDate = r.NextDate.AddDate(0, 1, 0)
	}
	return next
}

// Invoice is a single bill to a client. Client name/email are snapshotted at
// creation so later edits to the client record don't rewrite sent invoices.
type Invoice struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Number string `json:"number"` // INV-YYYY-NNNN, per-user sequence
	Seq    int    `json:"-"`
	Year   int    `json:"-"`

	ClientID    string `json:"clientId,omitempty"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail,omitempty"`

	Status     Status     `json:"status"`
	Items      []LineItem `json:"items"`
	Currency   string     `json:"currency"`
	Notes      string     `json:"notes,omitempty"`
	TemplateID string     `json:"templateId"`

	IssueDate time.Time  `json:"issueDate"`
	DueDate   time.Time  `json:"dueDate"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`

	Recurring *RecurringSchedule `json:"recurring,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubtotalCents sums all line totals.
func (inv *Invoice) SubtotalCents() int64 {
	var total int64
	for _, li := range inv.Items {
		total += li.TotalCents()
	}
	return total
}

// FormatNumber renders the per-user invoice number for a year and sequence.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}
