package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all process configuration loaded from environment variables.
type Config struct {
	DatabaseURL    string
	ServerPort     string
	AllowedOrigins string
	OpenAIAPIKey   string
	CompanyCode    string
	OperatorID     string

	LogLevel  string
	LogFormat string

	DraftTTL time.Duration

	pricing core.PricingConfig
}

// Load reads the .env file (if any) and the environment. Malformed or out-of-range
// pricing values are reported as *core.ConfigurationError.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		CompanyCode:    getEnv("COMPANY_CODE", ""),
		OperatorID:     getEnv("OPERATOR_ID", os.Getenv("USER")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.DraftTTL, err = getEnvDuration("DRAFT_TTL", 8*time.Hour); err != nil {
		return nil, err
	}
	if cfg.pricing, err = loadPricing(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Pricing returns the process-wide pricing defaults. Per-company overrides are
// layered on top by core.SettingsService.
func (c *Config) Pricing() core.PricingConfig {
	return c.pricing
}

func loadPricing() (core.PricingConfig, error) {
	p := core.DefaultPricingConfig()
	var err error

	if p.MarkupPercent, err = getEnvDecimal("QUOTE_MARKUP_PERCENT", p.MarkupPercent); err != nil {
		return p, err
	}
	if p.DefaultInterestRatePercent, err = getEnvDecimal("QUOTE_INTEREST_RATE_PERCENT", p.DefaultInterestRatePercent); err != nil {
		return p, err
	}
	if p.MaxDiscountPercent, err = getEnvDecimal("QUOTE_MAX_DISCOUNT_PERCENT", p.MaxDiscountPercent); err != nil {
		return p, err
	}
	if p.MaxReferralPercent, err = getEnvDecimal("QUOTE_MAX_REFERRAL_PERCENT", p.MaxReferralPercent); err != nil {
		return p, err
	}
	if p.BalanceTolerance, err = getEnvDecimal("QUOTE_BALANCE_TOLERANCE", p.BalanceTolerance); err != nil {
		return p, err
	}
	if p.InstallmentIntervalDays, err = getEnvInt("QUOTE_INSTALLMENT_INTERVAL_DAYS", p.InstallmentIntervalDays); err != nil {
		return p, err
	}

	return p, p.Validate()
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := getEnv(key, "")
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback, &core.ConfigurationError{Field: key, Value: val, Reason: "not an integer"}
	}
	return n, nil
}

// getEnvDecimal accepts both "2.5" and "2,5".
func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	val := getEnv(key, "")
	if val == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(strings.Replace(val, ",", ".", 1))
	if err != nil {
		return fallback, &core.ConfigurationError{Field: key, Value: val, Reason: "not a number"}
	}
	return d, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fallback, &core.ConfigurationError{Field: key, Value: val, Reason: "not a positive duration"}
	}
	return d, nil
}
