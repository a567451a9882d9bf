package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SettingsService resolves per-company pricing overrides from the pricing_settings table.
type SettingsService interface {
	LoadPricing(ctx context.Context, companyCode string, defaults PricingConfig) (PricingConfig, error)
}

type settingsService struct {
	pool *pgxpool.Pool
}

// NewSettingsService constructs a SettingsService backed by the pricing_settings table.
func NewSettingsService(pool *pgxpool.Pool) SettingsService {
	return &settingsService{pool: pool}
}

// LoadPricing overlays the company's stored settings on top of defaults. NULL
// columns and a missing row keep the default. The merged snapshot is validated.
func (s *settingsService) LoadPricing(ctx context.Context, companyCode string, defaults PricingConfig) (PricingConfig, error) {
	var (
		markup, interest, maxDiscount, maxReferral, tolerance decimal.NullDecimal
		interval                                              *int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT ps.markup_percent, ps.interest_rate_percent, ps.max_discount_percent,
		       ps.max_referral_percent, ps.balance_tolerance, ps.installment_interval_days
		FROM pricing_settings ps
		JOIN companies c ON c.id = ps.company_id
		WHERE c.company_code = $1
	`, companyCode).Scan(&markup, &interest, &maxDiscount, &maxReferral, &tolerance, &interval)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("failed to load pricing settings for company %s: %w", companyCode, err)
	}

	cfg := defaults
	if markup.Valid {
		cfg.MarkupPercent = markup.Decimal
	}
	if interest.Valid {
		cfg.DefaultInterestRatePercent = interest.Decimal
	}
	if maxDiscount.Valid {
		cfg.MaxDiscountPercent = maxDiscount.Decimal
	}
	if maxReferral.Valid {
		cfg.MaxReferralPercent = maxReferral.Decimal
	}
	if tolerance.Valid {
		cfg.BalanceTolerance = tolerance.Decimal
	}
	if interval != nil {
		cfg.InstallmentIntervalDays = *interval
	}

	if err := cfg.Validate(); err != nil {
		return defaults, fmt.Errorf("pricing settings for company %s: %w", companyCode, err)
	}
	return cfg, nil
}
