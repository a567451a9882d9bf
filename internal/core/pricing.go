package core

import (
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// PricingConfig is the read-only configuration snapshot every pricing and
// present-value calculation receives explicitly.
type PricingConfig struct {
	MarkupPercent              decimal.Decimal `json:"markup_percent"`
	DefaultInterestRatePercent decimal.Decimal `json:"default_interest_rate_percent"` // monthly
	MaxDiscountPercent         decimal.Decimal `json:"max_discount_percent"`
	MaxReferralPercent         decimal.Decimal `json:"max_referral_percent"`
	BalanceTolerance           decimal.Decimal `json:"balance_tolerance"`
	InstallmentIntervalDays    int             `json:"installment_interval_days"`
}

// DefaultPricingConfig returns the configuration used when nothing overrides it.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		MarkupPercent:              decimal.Zero,
		DefaultInterestRatePercent: decimal.Zero,
		MaxDiscountPercent:         hundred,
		MaxReferralPercent:         decimal.NewFromInt(90),
		BalanceTolerance:           one,
		InstallmentIntervalDays:    30,
	}
}

// Validate rejects configurations the engine cannot compute with.
func (c PricingConfig) Validate() error {
	if c.MarkupPercent.IsNegative() {
		return &ConfigurationError{Field: "markup percent", Value: c.MarkupPercent.String(), Reason: "must not be negative"}
	}
	if c.DefaultInterestRatePercent.IsNegative() {
		return &ConfigurationError{Field: "interest rate", Value: c.DefaultInterestRatePercent.String(), Reason: "must not be negative"}
	}
	if c.MaxDiscountPercent.IsNegative() || c.MaxDiscountPercent.GreaterThan(hundred) {
		return &ConfigurationError{Field: "max discount percent", Value: c.MaxDiscountPercent.String(), Reason: "must be between 0 and 100"}
	}
	if c.MaxReferralPercent.IsNegative() || c.MaxReferralPercent.GreaterThanOrEqual(hundred) {
		return &ConfigurationError{Field: "max referral percent", Value: c.MaxReferralPercent.String(), Reason: "must be at least 0 and below 100"}
	}
	if !c.BalanceTolerance.IsPositive() {
		return &ConfigurationError{Field: "balance tolerance", Value: c.BalanceTolerance.String(), Reason: "must be positive"}
	}
	if c.InstallmentIntervalDays <= 0 {
		return &ConfigurationError{Field: "installment interval", Value: strconv.Itoa(c.InstallmentIntervalDays), Reason: "must be at least one day"}
	}
	return nil
}

// SaleValue applies the markup: cost × (1 + markup/100).
func SaleValue(cost decimal.Decimal, cfg PricingConfig) decimal.Decimal {
	return cost.Mul(one.Add(cfg.MarkupPercent.Div(hundred)))
}

// Recalculate recomputes the line's cost from its detail and its sale value from the cost.
func (l *EnvironmentQuoteLine) Recalculate(cfg PricingConfig) {
	l.CostTotal = detailTotal(l.Detail)
	l.SaleValue = SaleValue(l.CostTotal, cfg)
}

// ApplyMarkup recalculates every line in place and returns the slice for chaining.
func ApplyMarkup(lines []EnvironmentQuoteLine, cfg PricingConfig) []EnvironmentQuoteLine {
	for i := range lines {
		lines[i].Recalculate(cfg)
	}
	return lines
}

// SelectedBase is the naive sum of the selected lines' sale values.
func SelectedBase(lines []EnvironmentQuoteLine) decimal.Decimal {
	base := decimal.Zero
	for _, l := range lines {
		if l.Selected {
			base = base.Add(l.SaleValue)
		}
	}
	return base
}

// SelectedCost is the sum of the selected lines' cost totals.
func SelectedCost(lines []EnvironmentQuoteLine) decimal.Decimal {
	cost := decimal.Zero
	for _, l := range lines {
		if l.Selected {
			cost = cost.Add(l.CostTotal)
		}
	}
	return cost
}

// ValidateReferralPercent accepts 0 <= r <= cfg.MaxReferralPercent. The ceiling is
// always below 100, where the uplift divides by zero.
func ValidateReferralPercent(r decimal.Decimal, cfg PricingConfig) error {
	if r.IsNegative() {
		return &ConfigurationError{Field: "referral percent", Value: r.String(), Reason: "must not be negative"}
	}
	if r.GreaterThanOrEqual(hundred) || r.GreaterThan(cfg.MaxReferralPercent) {
		return &ConfigurationError{Field: "referral percent", Value: r.String(), Reason: "exceeds the allowed ceiling of " + cfg.MaxReferralPercent.String()}
	}
	return nil
}

// ReferralUplift grosses base up so that paying r% of the result to the referral
// party still leaves base for the house:
//
//	proposalTotal = base / (1 - r/100)
//	payout        = proposalTotal - base
//
// r must already have passed ValidateReferralPercent.
func ReferralUplift(base, r decimal.Decimal) (proposalTotal, payout decimal.Decimal) {
	if r.IsZero() {
		return base, decimal.Zero
	}
	proposalTotal = base.Div(one.Sub(r.Div(hundred)))
	return proposalTotal, proposalTotal.Sub(base)
}

// DiscountValueFromPercent returns proposalTotal × pct/100.
func DiscountValueFromPercent(proposalTotal, pct decimal.Decimal) decimal.Decimal {
	return proposalTotal.Mul(pct).Div(hundred)
}

// DiscountPercentFromValue returns value / proposalTotal × 100, or zero for an empty proposal.
func DiscountPercentFromValue(proposalTotal, value decimal.Decimal) decimal.Decimal {
	if proposalTotal.IsZero() {
		return decimal.Zero
	}
	return value.Div(proposalTotal).Mul(hundred)
}

// ValidateDiscountPercent accepts 0 <= pct <= cfg.MaxDiscountPercent.
func ValidateDiscountPercent(pct decimal.Decimal, cfg PricingConfig) error {
	if pct.IsNegative() {
		return &ConfigurationError{Field: "discount percent", Value: pct.String(), Reason: "must not be negative"}
	}
	if pct.GreaterThan(cfg.MaxDiscountPercent) {
		return &ConfigurationError{Field: "discount percent", Value: pct.String(), Reason: "exceeds the allowed ceiling of " + cfg.MaxDiscountPercent.String()}
	}
	return nil
}
