// Package types provides shared value types for the portfolio risk manager.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyId identifies a trading strategy. Strategies hold only this
// handle; they never hold a reference back to the manager.
type StrategyId string

// AllocationMethod selects the allocator policy (C6).
type AllocationMethod string

const (
	AllocationEqualWeight         AllocationMethod = "equal_weight"
	AllocationPerformanceWeighted AllocationMethod = "performance_weighted"
	AllocationSharpeWeighted      AllocationMethod = "sharpe_weighted"
	AllocationRiskParity          AllocationMethod = "risk_parity"
	AllocationAdaptiveKelly       AllocationMethod = "adaptive_kelly"
)

// SizerKind selects the position sizing policy (C2) for a strategy.
type SizerKind string

const (
	SizerFixedDollarRisk    SizerKind = "fixed_dollar_risk"
	SizerPercentRisk        SizerKind = "percent_risk"
	SizerFixedFractional    SizerKind = "fixed_fractional"
	SizerVolatilityAdjusted SizerKind = "volatility_adjusted"
	SizerKellyCriterion     SizerKind = "kelly_criterion"
)

// RiskLimits configures the risk gate (C5). Immutable once handed to the
// gate; a new RiskLimits replaces it wholesale via SetLimits.
type RiskLimits struct {
	MaxPortfolioDrawdownPct float64         `json:"maxPortfolioDrawdownPct" mapstructure:"max_portfolio_drawdown_pct"`
	MaxDailyLoss            decimal.Decimal `json:"maxDailyLoss" mapstructure:"max_daily_loss"`
	MaxConcurrentPositions  int             `json:"maxConcurrentPositions" mapstructure:"max_concurrent_positions"`
	MaxCorrelation          float64         `json:"maxCorrelation" mapstructure:"max_correlation"`
	MinCashReserve          decimal.Decimal `json:"minCashReserve" mapstructure:"min_cash_reserve"`
	MaxLeverage             float64         `json:"maxLeverage" mapstructure:"max_leverage"`
}

// StrategyAllocation is one entry of the allocation list (§3).
type StrategyAllocation struct {
	StrategyId StrategyId `json:"strategyId"`
	Allocation float64    `json:"allocation"`
	Active     bool       `json:"active"`
}

// StrategyMetrics are derived, recomputed-on-demand performance figures.
type StrategyMetrics struct {
	StrategyId  StrategyId `json:"strategyId"`
	TotalReturn float64    `json:"totalReturn"`
	Sharpe      float64    `json:"sharpe"`
	MaxDrawdown float64    `json:"maxDrawdown"`
	WinRate     float64    `json:"winRate"`
	TradeCount  int        `json:"tradeCount"`
	LastUpdate  time.Time  `json:"lastUpdate"`
	Active      bool       `json:"active"`
}

// AllocationDelta is one strategy's row in an AllocationReport.
type AllocationDelta struct {
	StrategyId StrategyId `json:"strategyId"`
	OldWeight  float64    `json:"oldWeight"`
	NewWeight  float64    `json:"newWeight"`
	Delta      float64    `json:"delta"`
	DeltaPct   float64    `json:"deltaPct"`
}

// AllocationReport is the timestamped diff emitted by a rebalance commit.
type AllocationReport struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Method      AllocationMethod  `json:"method"`
	Rebalanced  bool              `json:"rebalanced"`
	TotalChange float64           `json:"totalChange"`
	Deltas      []AllocationDelta `json:"deltas"`
}

// EquityUpdate is the inbound event carrying a fresh equity snapshot.
type EquityUpdate struct {
	Timestamp     time.Time       `json:"timestamp"`
	TotalEquity   decimal.Decimal `json:"totalEquity"`
	Cash          decimal.Decimal `json:"cash"`
	PositionValue decimal.Decimal `json:"positionValue"`
	TotalExposure decimal.Decimal `json:"totalExposure"`
}

// PositionUpdate is the inbound event carrying a strategy's open position count.
type PositionUpdate struct {
	Timestamp     time.Time  `json:"timestamp"`
	StrategyId    StrategyId `json:"strategyId"`
	OpenPositions int        `json:"openPositions"`
}

// DayClose is the inbound event recording a strategy's daily return.
type DayClose struct {
	Date        time.Time  `json:"date"`
	StrategyId  StrategyId `json:"strategyId"`
	DailyReturn float64    `json:"dailyReturn"`
}

// DayBoundary triggers the daily equity reset.
type DayBoundary struct {
	Date time.Time `json:"date"`
}

// RiskStatusLevel is the traffic-light summary of CanTrade's predicate state.
type RiskStatusLevel string

const (
	RiskStatusGreen  RiskStatusLevel = "green"
	RiskStatusYellow RiskStatusLevel = "yellow"
	RiskStatusRed    RiskStatusLevel = "red"
)

// RiskStatus is the response to the RiskStatus query.
type RiskStatus struct {
	Level    RiskStatusLevel `json:"level"`
	Warnings []string        `json:"warnings,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// DecisionKind tags the outcome of SizeOrder.
type DecisionKind string

const (
	DecisionApproved DecisionKind = "approved"
	DecisionDenied   DecisionKind = "denied"
	DecisionSkipped  DecisionKind = "skipped"
)

// Decision is the sum-type result of on_trade_request (§4.8, §9): exactly
// one of Approved(shares) / Denied(reason) / Skipped(category, detail).
type Decision struct {
	Kind     DecisionKind `json:"kind"`
	Shares   int64        `json:"shares,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Category string       `json:"category,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

// Snapshot is the immutable view returned by the Snapshot query.
type Snapshot struct {
	Timestamp           time.Time                  `json:"timestamp"`
	TotalEquity         decimal.Decimal            `json:"totalEquity"`
	Cash                decimal.Decimal            `json:"cash"`
	PositionValue       decimal.Decimal            `json:"positionValue"`
	PeakEquity          decimal.Decimal            `json:"peakEquity"`
	CurrentDrawdown     decimal.Decimal            `json:"currentDrawdown"`
	CurrentDrawdownPct  float64                    `json:"currentDrawdownPct"`
	DailyStartEquity    decimal.Decimal            `json:"dailyStartEquity"`
	DailyPnL            decimal.Decimal            `json:"dailyPnl"`
	InceptionEquity     decimal.Decimal            `json:"inceptionEquity"`
	TotalExposure       decimal.Decimal            `json:"totalExposure"`
	Leverage            float64                    `json:"leverage"`
	OpenPositions       int                        `json:"openPositions"`
	PositionsByStrategy map[StrategyId]int         `json:"positionsByStrategy"`
	Allocations         []StrategyAllocation       `json:"allocations"`
	Metrics             map[StrategyId]StrategyMetrics `json:"metrics"`
}
