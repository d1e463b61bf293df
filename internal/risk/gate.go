// Package risk implements the ordered risk gate (C5): a fixed-order
// predicate chain that decides whether a strategy may open a new trade.
// Grounded on the teacher's RiskManager.CheckOrder and the polybot
// risk-gate's hard-block section, but flattened into named predicates
// evaluated in the exact order the contract requires — callers may key
// telemetry on which predicate fired, so reordering them is a breaking
// change.
package risk

import (
	"github.com/atlas-desktop/prm/internal/portfolio"
	"github.com/atlas-desktop/prm/pkg/types"
	"github.com/shopspring/decimal"
)

// warningBandFraction is the fraction of a limit at which predicates 1-3
// switch the status report from green to yellow.
const warningBandFraction = 0.8

// Gate evaluates can_trade against a live portfolio.State and the
// current allocation list. It holds no state of its own; every field is
// a read-only view supplied by the orchestrator.
type Gate struct {
	state       *portfolio.State
	limits      types.RiskLimits
	allocations []types.StrategyAllocation
}

// New constructs a Gate over the given state and limits. Allocations
// must be set via SetAllocations before the first CanTrade call.
func New(state *portfolio.State, limits types.RiskLimits) *Gate {
	return &Gate{state: state, limits: limits}
}

// SetLimits replaces the limits wholesale, as the orchestrator's command
// surface does on a config reload.
func (g *Gate) SetLimits(limits types.RiskLimits) {
	g.limits = limits
}

// SetAllocations replaces the allocation list wholesale, as the
// rebalance controller does on every commit.
func (g *Gate) SetAllocations(allocations []types.StrategyAllocation) {
	g.allocations = allocations
}

// CanTrade evaluates the six predicates in fixed order and returns the
// first failing reason, or allowed=true if every predicate passes.
func (g *Gate) CanTrade(sid types.StrategyId) (allowed bool, reason string) {
	if g.state.CurrentDrawdownPct() > g.limits.MaxPortfolioDrawdownPct {
		return false, "drawdown exceeds limit"
	}
	if g.limits.MaxDailyLoss.IsPositive() {
		negLimit := g.limits.MaxDailyLoss.Neg()
		if g.state.DailyPnL().LessThan(negLimit) {
			return false, "daily loss exceeds limit"
		}
	}
	if g.state.OpenPositions() >= g.limits.MaxConcurrentPositions {
		return false, "max concurrent positions"
	}
	if g.state.Cash().LessThan(g.limits.MinCashReserve) {
		return false, "cash below reserve"
	}
	if g.state.Leverage() > g.limits.MaxLeverage {
		return false, "leverage exceeds limit"
	}
	if !g.isAllocated(sid) {
		return false, "strategy not allocated"
	}
	return true, ""
}

func (g *Gate) isAllocated(sid types.StrategyId) bool {
	for _, a := range g.allocations {
		if a.StrategyId == sid && a.Active && a.Allocation > 0 {
			return true
		}
	}
	return false
}

// Status reports the traffic-light summary used by the query surface.
// Predicates 1-3 contribute a yellow warning once the observed value
// crosses 80% of its limit; any hard failure reports red with the
// specific reason.
func (g *Gate) Status(sid types.StrategyId) types.RiskStatus {
	if allowed, reason := g.CanTrade(sid); !allowed {
		return types.RiskStatus{Level: types.RiskStatusRed, Reason: reason}
	}

	var warnings []string
	if g.limits.MaxPortfolioDrawdownPct > 0 {
		if g.state.CurrentDrawdownPct() > warningBandFraction*g.limits.MaxPortfolioDrawdownPct {
			warnings = append(warnings, "drawdown approaching limit")
		}
	}
	if g.limits.MaxDailyLoss.IsPositive() {
		bandLimit := g.limits.MaxDailyLoss.Mul(decimal.NewFromFloat(warningBandFraction)).Neg()
		if g.state.DailyPnL().LessThan(bandLimit) {
			warnings = append(warnings, "daily loss approaching limit")
		}
	}
	if g.limits.MaxConcurrentPositions > 0 {
		band := float64(g.limits.MaxConcurrentPositions) * warningBandFraction
		if float64(g.state.OpenPositions()) > band {
			warnings = append(warnings, "open positions approaching limit")
		}
	}

	if len(warnings) > 0 {
		return types.RiskStatus{Level: types.RiskStatusYellow, Warnings: warnings}
	}
	return types.RiskStatus{Level: types.RiskStatusGreen}
}
