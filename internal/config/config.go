// Package config loads the PRM's typed configuration via viper,
// grounded on the pi5-trading-system config loader's defaults-then-file-
// then-env-override shape.
package config

import (
	"fmt"

	"github.com/atlas-desktop/prm/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// PRMConfig is the root configuration record. Every field is enumerated
// rather than read through a string-keyed map, per the redesign guidance
// against untyped config.
type PRMConfig struct {
	InitialEquity string         `mapstructure:"initial_equity"`
	Limits        RiskLimitsConf `mapstructure:"risk_limits"`
	Rebalance     RebalanceConf  `mapstructure:"rebalance"`
	Strategies    []StrategyConf `mapstructure:"strategies"`
	Logging       LoggingConf    `mapstructure:"logging"`
}

// RiskLimitsConf mirrors types.RiskLimits with primitive field types
// suitable for mapstructure decoding; ToRiskLimits converts it.
type RiskLimitsConf struct {
	MaxPortfolioDrawdownPct float64 `mapstructure:"max_portfolio_drawdown_pct"`
	MaxDailyLoss            float64 `mapstructure:"max_daily_loss"`
	MaxConcurrentPositions  int     `mapstructure:"max_concurrent_positions"`
	MaxCorrelation          float64 `mapstructure:"max_correlation"`
	MinCashReserve          float64 `mapstructure:"min_cash_reserve"`
	MaxLeverage             float64 `mapstructure:"max_leverage"`
}

// RebalanceConf configures the rebalance controller and the allocator
// it drives.
type RebalanceConf struct {
	Method          string  `mapstructure:"method"`
	Threshold       float64 `mapstructure:"threshold"`
	AdaptationSpeed float64 `mapstructure:"adaptation_speed"`
	LookbackDays    int     `mapstructure:"lookback_days"`
	MinWeight       float64 `mapstructure:"min_weight"`
	MaxWeight       float64 `mapstructure:"max_weight"`
}

// StrategyConf registers one strategy and its sizer policy at startup.
type StrategyConf struct {
	ID         string  `mapstructure:"id"`
	SizerKind  string  `mapstructure:"sizer_kind"`
	Allocation float64 `mapstructure:"allocation"`
	Active     bool    `mapstructure:"active"`
}

// LoggingConf configures the zap logger, grounded on the teacher's
// setupLogger flag surface.
type LoggingConf struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from configPath, applying defaults first and
// allowing PRM_-prefixed environment variables to override any key. An
// empty configPath runs on defaults alone, for callers that only need
// environment overrides.
func Load(configPath string) (*PRMConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("PRM")
	v.AutomaticEnv()

	var cfg PRMConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("initial_equity", "100000")
	v.SetDefault("risk_limits.max_portfolio_drawdown_pct", 15.0)
	v.SetDefault("risk_limits.max_daily_loss", 0.0)
	v.SetDefault("risk_limits.max_concurrent_positions", 10)
	v.SetDefault("risk_limits.max_correlation", 0.8)
	v.SetDefault("risk_limits.min_cash_reserve", 0.0)
	v.SetDefault("risk_limits.max_leverage", 2.0)
	v.SetDefault("rebalance.method", "equal_weight")
	v.SetDefault("rebalance.threshold", 0.05)
	v.SetDefault("rebalance.adaptation_speed", 0.3)
	v.SetDefault("rebalance.lookback_days", 20)
	v.SetDefault("rebalance.min_weight", 0.0)
	v.SetDefault("rebalance.max_weight", 1.0)
	v.SetDefault("logging.level", "info")
}

// InitialEquityDecimal parses InitialEquity into a decimal.Decimal.
func (c PRMConfig) InitialEquityDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(c.InitialEquity)
}

// MaxDailyLossDecimal and MinCashReserveDecimal convert RiskLimitsConf's
// currency-denominated fields into the decimal.Decimal fields
// types.RiskLimits requires.
func (r RiskLimitsConf) MaxDailyLossDecimal() decimal.Decimal {
	return decimal.NewFromFloat(r.MaxDailyLoss)
}

func (r RiskLimitsConf) MinCashReserveDecimal() decimal.Decimal {
	return decimal.NewFromFloat(r.MinCashReserve)
}

// ToRiskLimits converts the decoded configuration into the domain's
// types.RiskLimits, translating currency fields to decimal.Decimal.
func (r RiskLimitsConf) ToRiskLimits() types.RiskLimits {
	return types.RiskLimits{
		MaxPortfolioDrawdownPct: r.MaxPortfolioDrawdownPct,
		MaxDailyLoss:            r.MaxDailyLossDecimal(),
		MaxConcurrentPositions:  r.MaxConcurrentPositions,
		MaxCorrelation:          r.MaxCorrelation,
		MinCashReserve:          r.MinCashReserveDecimal(),
		MaxLeverage:             r.MaxLeverage,
	}
}
