// Package entitlement decides whether a user's subscription tier and billing
// status permit a gated action, and which tier would unlock it if not.
//
// Every check is a pure function of its inputs plus the static catalog: no
// I/O, no hidden state, no error path. Denial is a value (Result with
// Allowed=false), never an error. Callers fetch the raw plan string, the
// subscription status and fresh usage counts themselves and must fail closed
// when those fetches fail.
package entitlement

import (
	"fmt"
	"time"

	"github.com/quillbill/quillbill/internal/plan"
)

// Result is the verdict of a single entitlement check.
// UpgradeTo is set on denial when some tier would allow the action, so the
// caller can name a concrete target in the upgrade prompt.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	UpgradeTo plan.Tier `json:"upgradeTo,omitempty"`
}

func allow() Result { return Result{Allowed: true} }

// activeStatuses are the subscription states under which a paid tier's
// entitlements are live. Everything else (canceled, incomplete_expired,
// past_due, pending_cancellation, missing) is inactive.
var activeStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
}

// Service evaluates entitlement checks against a fixed catalog.
// The clock is injectable so subscription-validity tests can pin time.
type Service struct {
	catalog plan.Catalog
	now     func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an entitlement service over a catalog.
func NewService(catalog plan.Catalog, opts ...Option) *Service {
	s := &Service{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog exposes the underlying tier table (read-only by construction).
func (s *Service) Catalog() plan.Catalog { return s.catalog }

// IsSubscriptionActive reports whether a paid subscription is currently
// usable. Status must be in the accepted-active set, and a known period end
// strictly in the past overrides the status string — that covers the window
// where a provider webhook is delayed after a lapse.
func (s *Service) IsSubscriptionActive(status string, periodEnd *time.Time) bool {
	if !activeStatuses[status] {
		return false
	}
	if periodEnd != nil && periodEnd.Before(s.now()) {
		return false
	}
	return true
}

// CheckFeature gates an action on a boolean flag of the user's tier.
func (s *Service) CheckFeature(rawPlan string, key plan.FeatureKey) Result {
	tier := plan.Normalize(rawPlan)
	if s.catalog.Limits(tier).Feature(key) {
		return allow()
	}
	res := Result{
		Allowed: false,
		Reason:  fmt.Sprintf("%s is not included in the %s plan", featureLabel(key), tier),
	}
	if min, ok := s.catalog.MinTierForFeature(key); ok {
		res.UpgradeTo = min
	}
	return res
}

// CheckCountLimit gates an action that would grow a usage count.
// currentCount is the count before the action; the check denies when the
// action would exceed the tier's cap (check-then-act).
func (s *Service) CheckCountLimit(rawPlan string, key plan.CountLimitKey, currentCount int) Result {
	tier := plan.Normalize(rawPlan)
	limit := s.catalog.Limits(tier).Count(key)
	if limit == plan.Unlimited || currentCount < limit {
		return allow()
	}
	res := Result{
		Allowed: false,
		Reason:  fmt.Sprintf("the %s plan allows %d %s; you have reached that limit", tier, limit, countLabel(key)),
	}
	if min, ok := s.catalog.MinTierForCount(key, currentCount+1); ok {
		res.UpgradeTo = min
	}
	return res
}

// CheckOrdinalLimit gates access to the item at a fixed zero-based catalog
// position: the first N items are unlocked, where N is the tier's limit.
func (s *Service) CheckOrdinalLimit(rawPlan string, key plan.CountLimitKey, itemIndex int) Result {
	tier := plan.Normalize(rawPlan)
	limit := s.catalog.Limits(tier).Count(key)
	if limit == plan.Unlimited || itemIndex < limit {
		return allow()
	}
	res := Result{
		Allowed: false,
		Reason:  fmt.Sprintf("the %s plan unlocks the first %d %s", tier, limit, countLabel(key)),
	}
	if min, ok := s.catalog.MinTierForCount(key, itemIndex+1); ok {
		res.UpgradeTo = min
	}
	return res
}

// CheckPremiumAccess is the composite gate in front of any paid-only action.
// The free tier is denied outright; a paid tier is denied when the
// subscription is not live, even though the cached plan string says paid.
// A lapsed card must lose paid features on the very next check.
func (s *Service) CheckPremiumAccess(rawPlan string, status string, periodEnd *time.Time) Result {
	tier := plan.Normalize(rawPlan)
	if tier == plan.TierFree {
		return Result{
			Allowed:   false,
			Reason:    "this feature requires a higher plan",
			UpgradeTo: plan.TierPro,
		}
	}
	if !s.IsSubscriptionActive(status, periodEnd) {
		return Result{
			Allowed:   false,
			Reason:    "your subscription is expired or inactive; renew to continue using paid features",
			UpgradeTo: tier,
		}
	}
	return allow()
}

// CheckPremiumFeature combines the premium gate with a specific flag check,
// so call sites run exactly one composite check per protected action instead
// of two that could disagree.
func (s *Service) CheckPremiumFeature(rawPlan string, status string, periodEnd *time.Time, key plan.FeatureKey) Result {
	if res := s.CheckPremiumAccess(rawPlan, status, periodEnd); !res.Allowed {
		return res
	}
	return s.CheckFeature(rawPlan, key)
}

func featureLabel(key plan.FeatureKey) string {
	switch key {
	case plan.FeatureAIGeneration:
		return "AI invoice drafting"
	case plan.FeaturePDFExport:
		return "PDF export"
	case plan.FeatureRecurringInvoices:
		return "recurring invoices"
	case plan.FeatureCustomBranding:
		return "custom branding"
	case plan.FeatureAdvancedAnalytics:
		return "advanced analytics"
	case plan.FeatureTeamAccess:
		return "team access"
	case plan.FeatureAutomatedReminders:
		return "automated reminders"
	case plan.FeatureIntegrations:
		return "integrations"
	case plan.FeatureAPIAccess:
		return "API access"
	case plan.FeaturePrioritySupport:
		return "priority support"
	}
	return string(key)
}

func countLabel(key plan.CountLimitKey) string {
	switch key {
	case plan.LimitInvoicesPerMonth:
		return "invoices per month"
	case plan.LimitClients:
		return "clients"
	case plan.LimitTemplates:
		return "templates"
	}
	return string(key)
}
