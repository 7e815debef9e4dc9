package plan

import "fmt"

// Catalog holds the Tier → Limits table. Construct it once at startup and
// hand it to the entitlement service; it is read-only afterwards.
type Catalog struct {
	limits map[Tier]Limits
}

// NewCatalog builds a catalog from an explicit table. Validate rejects
// tables whose capability does not grow monotonically with tier order.
func NewCatalog(table map[Tier]Limits) (Catalog, error) {
	c := Catalog{limits: make(map[Tier]Limits, len(table))}
	for t, l := range table {
		c.limits[t] = l
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// DefaultCatalog returns the production tier table.
func DefaultCatalog() Catalog {
	c, err := NewCatalog(map[Tier]Limits{
		TierFree: {
			MaxInvoicesPerMonth: 5,
			MaxClients:          3,
			MaxTemplates:        1,
		},
		TierPro: {
			MaxInvoicesPerMonth: Unlimited,
			MaxClients:          Unlimited,
			MaxTemplates:        Unlimited,
			AIGeneration:        true,
			PDFExport:           true,
			RecurringInvoices:   true,
			CustomBranding:      true,
			AdvancedAnalytics:   true,
			TeamAccess:          true,
			AutomatedReminders:  true,
			Integrations:        true,
			APIAccess:           true,
			PrioritySupport:     true,
		},
	})
	if err != nil {
		// The production table is static; a validation failure here is a
		// programming error, not a runtime condition.
		panic("plan: default catalog invalid: " + err.Error())
	}
	return c
}

// Limits returns the limit set for a tier. Total: tiers missing from the
// table resolve to the free tier's limits.
func (c Catalog) Limits(t Tier) Limits {
	if l, ok := c.limits[t]; ok {
		return l
	}
	return c.limits[TierFree]
}

// LimitsForPlan normalizes a raw plan string and returns its limits.
func (c Catalog) LimitsForPlan(raw string) Limits {
	return c.Limits(Normalize(raw))
}

// MinTierForFeature returns the lowest tier whose limits enable the flag,
// scanning tiers from least to most capable. The second result is false when
// no tier enables it.
func (c Catalog) MinTierForFeature(key FeatureKey) (Tier, bool) {
	for _, t := range tierOrder {
		if c.Limits(t).Feature(key) {
			return t, true
		}
	}
	return "", false
}

// MinTierForCount returns the lowest tier whose limit for key admits at least
// needed items (or is unlimited).
func (c Catalog) MinTierForCount(key CountLimitKey, needed int) (Tier, bool) {
	for _, t := range tierOrder {
		limit := c.Limits(t).Count(key)
		if limit == Unlimited || limit >= needed {
			return t, true
		}
	}
	return "", false
}

var allFeatures = []FeatureKey{
	FeatureAIGeneration, FeaturePDFExport, FeatureRecurringInvoices,
	FeatureCustomBranding, FeatureAdvancedAnalytics, FeatureTeamAccess,
	FeatureAutomatedReminders, FeatureIntegrations, FeatureAPIAccess,
	FeaturePrioritySupport,
}

var allCountLimits = []CountLimitKey{
	LimitInvoicesPerMonth, LimitClients, LimitTemplates,
}

// Validate checks the monotonicity invariant: for every pair of adjacent
// tiers, the higher tier's limits are at least as permissive. Without this,
// "minimum tier that satisfies X" is ill-defined.
func (c Catalog) Validate() error {
	if _, ok := c.limits[TierFree]; !ok {
		return fmt.Errorf("plan: catalog missing %s tier", TierFree)
	}
	for i := 1; i < len(tierOrder); i++ {
		lo, hi := tierOrder[i-1], tierOrder[i]
		loLim, hiLim := c.Limits(lo), c.Limits(hi)

		for _, f := range allFeatures {
			if loLim.Feature(f) && !hiLim.Feature(f) {
				return fmt.Errorf("plan: feature %s enabled on %s but not on higher tier %s", f, lo, hi)
			}
		}
		for _, k := range allCountLimits {
			loN, hiN := loLim.Count(k), hiLim.Count(k)
			if loN == Unlimited && hiN != Unlimited {
				return fmt.Errorf("plan: limit %s unbounded on %s but capped on higher tier %s", k, lo, hi)
			}
			if loN != Unlimited && hiN != Unlimited && hiN < loN {
				return fmt.Errorf("plan: limit %s shrinks from %d (%s) to %d (%s)", k, loN, lo, hiN, hi)
			}
		}
	}
	return nil
}
