// Package plan defines the subscription tiers and the limits each tier grants.
//
// The catalog is the single source of truth for entitlements: both "what does
// this tier allow" lookups and "what is the cheapest tier that allows X"
// searches read the same table. It is built once at startup and never mutated.
package plan

import "strings"

// Tier identifies a pricing tier. Tiers are ordered by capability:
// Order(free) < Order(pro).
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// tierOrder lists tiers from least to most capable. MinTierFor* scans walk
// this slice front to back, which is what makes their result the minimum.
var tierOrder = []Tier{TierFree, TierPro}

// Order returns the tier's position in the capability ordering.
// Unknown tiers sort as free.
func (t Tier) Order() int {
	for i, tier := range tierOrder {
		if tier == t {
			return i
		}
	}
	return 0
}

// Tiers returns all tiers from least to most capable.
func Tiers() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// Unlimited is the sentinel for counting limits with no cap.
const Unlimited = -1

// FeatureKey identifies a boolean entitlement flag. The set is closed: call
// sites reference these constants, so an unknown key cannot reach the
// evaluator at runtime.
type FeatureKey string

const (
	FeatureAIGeneration       FeatureKey = "ai_generation"
	FeaturePDFExport          FeatureKey = "pdf_export"
	FeatureRecurringInvoices  FeatureKey = "recurring_invoices"
	FeatureCustomBranding     FeatureKey = "custom_branding"
	FeatureAdvancedAnalytics  FeatureKey = "advanced_analytics"
	FeatureTeamAccess         FeatureKey = "team_access"
	FeatureAutomatedReminders FeatureKey = "automated_reminders"
	FeatureIntegrations       FeatureKey = "integrations"
	FeatureAPIAccess          FeatureKey = "api_access"
	FeaturePrioritySupport    FeatureKey = "priority_support"
)

// CountLimitKey identifies a numeric entitlement limit.
type CountLimitKey string

const (
	LimitInvoicesPerMonth CountLimitKey = "invoices_per_month"
	LimitClients          CountLimitKey = "clients"
	LimitTemplates        CountLimitKey = "templates"
)

// Limits is the full entitlement set attached to one tier.
type Limits struct {
	// Counting limits. Unlimited (-1) means no cap.
	MaxInvoicesPerMonth int `json:"maxInvoicesPerMonth"`
	MaxClients          int `json:"maxClients"`
	MaxTemplates        int `json:"maxTemplates"`

	// Feature flags.
	AIGeneration       bool `json:"aiGeneration"`
	PDFExport          bool `json:"pdfExport"`
	RecurringInvoices  bool `json:"recurringInvoices"`
	CustomBranding     bool `json:"customBranding"`
	AdvancedAnalytics  bool `json:"advancedAnalytics"`
	TeamAccess         bool `json:"teamAccess"`
	AutomatedReminders bool `json:"automatedReminders"`
	Integrations       bool `json:"integrations"`
	APIAccess          bool `json:"apiAccess"`
	PrioritySupport    bool `json:"prioritySupport"`
}

// Feature returns the boolean flag for a key.
func (l Limits) Feature(key FeatureKey) bool {
	switch key {
	case FeatureAIGeneration:
		return l.AIGeneration
	case FeaturePDFExport:
		return l.PDFExport
	case FeatureRecurringInvoices:
		return l.RecurringInvoices
	case FeatureCustomBranding:
		return l.CustomBranding
	case FeatureAdvancedAnalytics:
		return l.AdvancedAnalytics
	case FeatureTeamAccess:
		return l.TeamAccess
	case FeatureAutomatedReminders:
		return l.AutomatedReminders
	case FeatureIntegrations:
		return l.Integrations
	case FeatureAPIAccess:
		return l.APIAccess
	case FeaturePrioritySupport:
		return l.PrioritySupport
	}
	return false
}

// Count returns the numeric limit for a key.
func (l Limits) Count(key CountLimitKey) int {
	switch key {
	case LimitInvoicesPerMonth:
		return l.MaxInvoicesPerMonth
	case LimitClients:
		return l.MaxClients
	case LimitTemplates:
		return l.MaxTemplates
	}
	return 0
}

// paidKeywords are substrings that mark a plan string as paid. Billing
// providers have shipped several plan names over the years ("Growth Monthly",
// "Business Advanced", ...); all of them collapse to pro.
var paidKeywords = []string{"pro", "growth", "business", "enterprise", "advanced"}

// Normalize maps an arbitrary, possibly empty or legacy, plan string to a
// canonical tier. Unrecognised input normalizes to free. Total function.
func Normalize(raw string) Tier {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return TierFree
	}
	for _, kw := range paidKeywords {
		if strings.Contains(s, kw) {
			return TierPro
		}
	}
	return TierFree
}
