package core_test

import (
	"testing"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*core.PricingConfig)
		wantErr bool
	}{
		{"defaults", func(*core.PricingConfig) {}, false},
		{"negative markup", func(c *core.PricingConfig) { c.MarkupPercent = dec("-1") }, true},
		{"negative interest", func(c *core.PricingConfig) { c.DefaultInterestRatePercent = dec("-0.5") }, true},
		{"discount ceiling above 100", func(c *core.PricingConfig) { c.MaxDiscountPercent = dec("101") }, true},
		{"referral ceiling of 100", func(c *core.PricingConfig) { c.MaxReferralPercent = dec("100") }, true},
		{"zero tolerance", func(c *core.PricingConfig) { c.BalanceTolerance = decimal.Zero }, true},
		{"zero interval", func(c *core.PricingConfig) { c.InstallmentIntervalDays = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := core.DefaultPricingConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfigurationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSaleValue_AppliesMarkup(t *testing.T) {
	cfg := core.DefaultPricingConfig()
	assertDecimal(t, "1500", core.SaleValue(dec("1500"), cfg))

	cfg.MarkupPercent = dec("40")
	assertDecimal(t, "2100", core.SaleValue(dec("1500"), cfg))

	lines := core.ApplyMarkup([]core.EnvironmentQuoteLine{
		{Detail: []core.AggregatedItem{{TotalPrice: dec("100")}, {TotalPrice: dec("50")}}, Selected: true},
		{Detail: []core.AggregatedItem{{TotalPrice: dec("1000")}}, Selected: false},
	}, cfg)
	assertDecimal(t, "150", lines[0].CostTotal)
	assertDecimal(t, "210", lines[0].SaleValue)
	assertDecimal(t, "210", core.SelectedBase(lines))
	assertDecimal(t, "150", core.SelectedCost(lines))
}

func TestReferralUplift_Scenario(t *testing.T) {
	total, payout := core.ReferralUplift(dec("9000"), dec("10"))
	assertDecimal(t, "10000", total)
	assertDecimal(t, "1000", payout)
}

func TestReferralUplift_ZeroIsExact(t *testing.T) {
	total, payout := core.ReferralUplift(dec("1234.567"), decimal.Zero)
	assertDecimal(t, "1234.567", total)
	assert.True(t, payout.IsZero())
}

func TestReferralUplift_RoundTrip(t *testing.T) {
	bases := []string{"0.01", "1234.56", "9999.99", "187432.17"}
	rates := []string{"0.5", "7", "12.5", "33.33", "89.9"}

	for _, b := range bases {
		for _, r := range rates {
			base, rate := dec(b), dec(r)
			total, payout := core.ReferralUplift(base, rate)

			back := total.Mul(decimal.NewFromInt(1).Sub(rate.Div(decimal.NewFromInt(100))))
			assertNear(t, base, back, "0.01")
			assertNear(t, total.Mul(rate).Div(decimal.NewFromInt(100)), payout, "0.01")
			assert.True(t, total.GreaterThanOrEqual(base), "base %s rate %s", b, r)
		}
	}
}

func TestValidateReferralPercent(t *testing.T) {
	cfg := core.DefaultPricingConfig()

	for _, ok := range []string{"0", "10", "89.99", "90"} {
		assert.NoError(t, core.ValidateReferralPercent(dec(ok), cfg), ok)
	}
	for _, bad := range []string{"-1", "90.01", "100", "150"} {
		err := core.ValidateReferralPercent(dec(bad), cfg)
		assert.True(t, core.IsConfigurationError(err), bad)
	}

	cfg.MaxReferralPercent = dec("20")
	assert.Error(t, core.ValidateReferralPercent(dec("25"), cfg))
}

func TestDiscountDuality(t *testing.T) {
	total := dec("10000")

	assertDecimal(t, "1500", core.DiscountValueFromPercent(total, dec("15")))
	assertDecimal(t, "15", core.DiscountPercentFromValue(total, dec("1500")))
	assert.True(t, core.DiscountPercentFromValue(decimal.Zero, dec("50")).IsZero())

	for _, p := range []string{"0", "3.3333", "12.5", "99.9"} {
		v := core.DiscountValueFromPercent(dec("7345.21"), dec(p))
		assertNear(t, dec(p), core.DiscountPercentFromValue(dec("7345.21"), v), "0.0000001")
	}
}

func TestValidateDiscountPercent(t *testing.T) {
	cfg := core.DefaultPricingConfig()
	assert.NoError(t, core.ValidateDiscountPercent(dec("100"), cfg))
	assert.Error(t, core.ValidateDiscountPercent(dec("-0.01"), cfg))

	cfg.MaxDiscountPercent = dec("10")
	assert.NoError(t, core.ValidateDiscountPercent(dec("10"), cfg))
	assert.Error(t, core.ValidateDiscountPercent(dec("10.01"), cfg))
}
