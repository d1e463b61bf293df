// Package portfolio implements the aggregate portfolio state (C4): total
// equity, peak/drawdown tracking, daily P&L, cash, exposure, leverage,
// and per-strategy position counts. Every exported method is a single
// logical transaction; callers never observe a half-updated state
// because the single-writer discipline (documented in the orchestrator)
// means these methods are never interleaved with each other.
package portfolio

import (
	"time"

	"github.com/atlas-desktop/prm/pkg/errs"
	"github.com/atlas-desktop/prm/pkg/types"
	"github.com/shopspring/decimal"
)

// State is the singleton aggregate portfolio state for one PRM instance.
type State struct {
	totalEquity      decimal.Decimal
	cash             decimal.Decimal
	positionValue    decimal.Decimal
	peakEquity       decimal.Decimal
	inceptionEquity  decimal.Decimal
	inceptionSet     bool
	dailyStartEquity decimal.Decimal
	totalExposure    decimal.Decimal
	positionsByID    map[types.StrategyId]int
	lastUpdate       time.Time
}

// New constructs a State with zero balances. The first UpdateEquity call
// establishes both the peak and the inception equity.
func New() *State {
	return &State{
		totalEquity:   decimal.Zero,
		cash:          decimal.Zero,
		positionValue: decimal.Zero,
		peakEquity:    decimal.Zero,
		positionsByID: make(map[types.StrategyId]int),
	}
}

// UpdateEquity sets total equity, advances the peak if a new high was
// reached, and recomputes drawdown and daily P&L. The first call also
// establishes inception equity and the daily start equity.
func (s *State) UpdateEquity(newEquity decimal.Decimal, now time.Time) error {
	if newEquity.IsNegative() {
		return errs.InvalidInput("UpdateEquity", "equity must be non-negative")
	}
	s.totalEquity = newEquity
	if !s.inceptionSet {
		s.inceptionEquity = newEquity
		s.dailyStartEquity = newEquity
		s.inceptionSet = true
	}
	if newEquity.GreaterThan(s.peakEquity) {
		s.peakEquity = newEquity
	}
	s.lastUpdate = now
	return nil
}

// UpdatePositions replaces the open-position count for a single strategy.
func (s *State) UpdatePositions(sid types.StrategyId, count int) error {
	if count < 0 {
		return errs.InvalidInput("UpdatePositions", "count must be non-negative")
	}
	s.positionsByID[sid] = count
	return nil
}

// UpdateExposure sets total exposure, from which leverage is derived.
func (s *State) UpdateExposure(totalExposure decimal.Decimal) error {
	if totalExposure.IsNegative() {
		return errs.InvalidInput("UpdateExposure", "exposure must be non-negative")
	}
	s.totalExposure = totalExposure
	return nil
}

// UpdateCash sets the cash balance.
func (s *State) UpdateCash(cash decimal.Decimal) error {
	if cash.IsNegative() {
		return errs.InvalidInput("UpdateCash", "cash must be non-negative")
	}
	s.cash = cash
	return nil
}

// UpdatePositionValue sets the marked position value.
func (s *State) UpdatePositionValue(pv decimal.Decimal) error {
	if pv.IsNegative() {
		return errs.InvalidInput("UpdatePositionValue", "position value must be non-negative")
	}
	s.positionValue = pv
	return nil
}

// ResetDaily snapshots the current equity as the new daily start, zeroing
// daily P&L until the next UpdateEquity call. Called once per external
// day-boundary tick; the PRM keeps no clock of its own.
func (s *State) ResetDaily() {
	s.dailyStartEquity = s.totalEquity
}

// CurrentDrawdown returns peak_equity - total_equity, always >= 0.
func (s *State) CurrentDrawdown() decimal.Decimal {
	dd := s.peakEquity.Sub(s.totalEquity)
	if dd.IsNegative() {
		return decimal.Zero
	}
	return dd
}

// CurrentDrawdownPct returns 100 * CurrentDrawdown / peak_equity, or 0
// when there is no peak yet.
func (s *State) CurrentDrawdownPct() float64 {
	if s.peakEquity.IsZero() {
		return 0
	}
	pct := s.CurrentDrawdown().Div(s.peakEquity).Mul(decimal.NewFromInt(100))
	return pct.InexactFloat64()
}

// DailyPnL returns total_equity - daily_start_equity.
func (s *State) DailyPnL() decimal.Decimal {
	return s.totalEquity.Sub(s.dailyStartEquity)
}

// OpenPositions returns the sum of positions across all strategies.
func (s *State) OpenPositions() int {
	total := 0
	for _, c := range s.positionsByID {
		total += c
	}
	return total
}

// Leverage returns total_exposure / total_equity, or 0 when equity is 0.
func (s *State) Leverage() float64 {
	if s.totalEquity.IsZero() {
		return 0
	}
	return s.totalExposure.Div(s.totalEquity).InexactFloat64()
}

// TotalEquity returns the current total equity.
func (s *State) TotalEquity() decimal.Decimal { return s.totalEquity }

// Cash returns the current cash balance.
func (s *State) Cash() decimal.Decimal { return s.cash }

// PositionValue returns the current marked position value.
func (s *State) PositionValue() decimal.Decimal { return s.positionValue }

// PeakEquity returns the all-time high total equity.
func (s *State) PeakEquity() decimal.Decimal { return s.peakEquity }

// InceptionEquity returns the first observed total equity, distinct from
// the daily start equity which resets every trading day.
func (s *State) InceptionEquity() decimal.Decimal { return s.inceptionEquity }

// DailyStartEquity returns the equity snapshot taken at the last daily
// reset.
func (s *State) DailyStartEquity() decimal.Decimal { return s.dailyStartEquity }

// TotalExposure returns the current total exposure.
func (s *State) TotalExposure() decimal.Decimal { return s.totalExposure }

// PositionCount returns the open position count for a single strategy.
func (s *State) PositionCount(sid types.StrategyId) int {
	return s.positionsByID[sid]
}

// PositionsByStrategy returns a defensive copy of the per-strategy
// position map, suitable for inclusion in a Snapshot.
func (s *State) PositionsByStrategy() map[types.StrategyId]int {
	out := make(map[types.StrategyId]int, len(s.positionsByID))
	for sid, count := range s.positionsByID {
		out[sid] = count
	}
	return out
}

// LastUpdate returns the timestamp of the most recent UpdateEquity call.
func (s *State) LastUpdate() time.Time { return s.lastUpdate }
