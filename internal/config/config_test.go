package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("RATE_LIMIT_RPM", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_RPM", "30")
	t.Setenv("STRIPE_PRICE_PRO", "price_123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.RateLimitRPM)
	assert.Equal(t, "price_123", cfg.StripePricePro)
}

func TestValidate_ProductionRequiresStripe(t *testing.T) {
	cfg := &Config{Env: "production", RateLimitRPM: 60}
	require.Error(t, cfg.Validate())

	cfg.StripeSecretKey = "sk_test_x"
	require.Error(t, cfg.Validate())

	cfg.StripeWebhookSecret = "whsec_x"
	require.Error(t, cfg.Validate())

	cfg.StripePricePro = "price_x"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadRateLimit(t *testing.T) {
	cfg := &Config{Env: "development", RateLimitRPM: 0}
	assert.Error(t, cfg.Validate())
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
}
