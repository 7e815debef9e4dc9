package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want Tier
	}{
		{"", TierFree},
		{"   ", TierFree},
		{"free", TierFree},
		{"Free Plan", TierFree},
		{"starter", TierFree},
		{"pro", TierPro},
		{"PRO", TierPro},
		{"Pro Monthly", TierPro},
		{"growth-monthly", TierPro},
		{"Business Advanced", TierPro},
		{"enterprise_2023", TierPro},
		{"Advanced", TierPro},
		{"basic", TierFree},
		{"trial", TierFree},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.raw), "raw=%q", tc.raw)
	}
}

func TestTierOrder(t *testing.T) {
	assert.Less(t, TierFree.Order(), TierPro.Order())
	// Unknown tiers sort as free.
	assert.Equal(t, 0, Tier("mystery").Order())
}

func TestDefaultCatalog_Limits(t *testing.T) {
	c := DefaultCatalog()

	free := c.Limits(TierFree)
	assert.Equal(t, 5, free.MaxInvoicesPerMonth)
	assert.Equal(t, 3, free.MaxClients)
	assert.Equal(t, 1, free.MaxTemplates)
	assert.False(t, free.PDFExport)
	assert.False(t, free.AIGeneration)

	pro := c.Limits(TierPro)
	assert.Equal(t, Unlimited, pro.MaxInvoicesPerMonth)
	assert.Equal(t, Unlimited, pro.MaxClients)
	assert.True(t, pro.PDFExport)
	assert.True(t, pro.RecurringInvoices)
	assert.True(t, pro.PrioritySupport)

	// Unknown tier falls back to free.
	assert.Equal(t, free, c.Limits(Tier("legacy-v1")))
}

func TestDefaultCatalog_LimitsForPlan(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, c.Limits(TierPro), c.LimitsForPlan("Growth Annual"))
	assert.Equal(t, c.Limits(TierFree), c.LimitsForPlan(""))
}

// Monotonicity: any flag or limit granted by a lower tier must also be
// granted by every higher tier.
func TestDefaultCatalog_Monotonic(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())

	tiers := Tiers()
	for i := 1; i < len(tiers); i++ {
		lo, hi := c.Limits(tiers[i-1]), c.Limits(tiers[i])
		for _, f := range allFeatures {
			if lo.Feature(f) {
				assert.True(t, hi.Feature(f), "feature %s lost at %s", f, tiers[i])
			}
		}
	}
}

func TestNewCatalog_RejectsNonMonotonic(t *testing.T) {
	_, err := NewCatalog(map[Tier]Limits{
		TierFree: {MaxClients: 10, PDFExport: true},
		TierPro:  {MaxClients: 3},
	})
	require.Error(t, err)
}

func TestNewCatalog_RejectsShrinkingUnlimited(t *testing.T) {
	_, err := NewCatalog(map[Tier]Limits{
		TierFree: {MaxClients: Unlimited},
		TierPro:  {MaxClients: 100},
	})
	require.Error(t, err)
}

func TestNewCatalog_RequiresFreeTier(t *testing.T) {
	_, err := NewCatalog(map[Tier]Limits{
		TierPro: {MaxClients: Unlimited},
	})
	require.Error(t, err)
}

func TestMinTierForFeature(t *testing.T) {
	c := DefaultCatalog()

	tier, ok := c.MinTierForFeature(FeaturePDFExport)
	require.True(t, ok)
	assert.Equal(t, TierPro, tier)

	// A flag enabled on free resolves to free, not pro (lowest-first scan).
	custom, err := NewCatalog(map[Tier]Limits{
		TierFree: {MaxClients: 3, PDFExport: true},
		TierPro:  {MaxClients: Unlimited, PDFExport: true},
	})
	require.NoError(t, err)
	tier, ok = custom.MinTierForFeature(FeaturePDFExport)
	require.True(t, ok)
	assert.Equal(t, TierFree, tier)

	// No tier enables the flag.
	_, ok = custom.MinTierForFeature(FeatureTeamAccess)
	assert.False(t, ok)
}

func TestMinTierForCount(t *testing.T) {
	c := DefaultCatalog()

	tier, ok := c.MinTierForCount(LimitClients, 4)
	require.True(t, ok)
	assert.Equal(t, TierPro, tier)

	tier, ok = c.MinTierForCount(LimitClients, 3)
	require.True(t, ok)
	assert.Equal(t, TierFree, tier)
}

func TestLimitsAccessors_UnknownKeys(t *testing.T) {
	var l Limits
	assert.False(t, l.Feature(FeatureKey("nope")))
	assert.Equal(t, 0, l.Count(CountLimitKey("nope")))
}
