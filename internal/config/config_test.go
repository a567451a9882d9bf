package config

import (
	"testing"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"QUOTE_MARKUP_PERCENT", "QUOTE_INTEREST_RATE_PERCENT", "QUOTE_MAX_DISCOUNT_PERCENT",
		"QUOTE_MAX_REFERRAL_PERCENT", "QUOTE_BALANCE_TOLERANCE", "QUOTE_INSTALLMENT_INTERVAL_DAYS",
		"DRAFT_TTL", "SERVER_PORT",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 8*time.Hour, cfg.DraftTTL)
	assert.Equal(t, core.DefaultPricingConfig(), cfg.Pricing())
}

func TestLoad_PricingOverrides(t *testing.T) {
	t.Setenv("QUOTE_MARKUP_PERCENT", "35")
	t.Setenv("QUOTE_INTEREST_RATE_PERCENT", "1,99")
	t.Setenv("QUOTE_MAX_REFERRAL_PERCENT", "20")
	t.Setenv("QUOTE_INSTALLMENT_INTERVAL_DAYS", "28")
	t.Setenv("DRAFT_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Pricing()
	assert.Equal(t, "35", p.MarkupPercent.String())
	assert.Equal(t, "1.99", p.DefaultInterestRatePercent.String())
	assert.Equal(t, "20", p.MaxReferralPercent.String())
	assert.Equal(t, 28, p.InstallmentIntervalDays)
	assert.Equal(t, 30*time.Minute, cfg.DraftTTL)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"QUOTE_MARKUP_PERCENT", "abc"},
		{"QUOTE_MARKUP_PERCENT", "-5"},
		{"QUOTE_MAX_REFERRAL_PERCENT", "100"},
		{"QUOTE_MAX_DISCOUNT_PERCENT", "120"},
		{"QUOTE_BALANCE_TOLERANCE", "0"},
		{"QUOTE_INSTALLMENT_INTERVAL_DAYS", "monthly"},
		{"DRAFT_TTL", "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, core.IsConfigurationError(err))
		})
	}
}
