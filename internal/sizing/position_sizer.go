// Package sizing implements the position sizing policies (C2): a family
// of stateless, interchangeable strategies for turning a risk budget into
// a concrete share count. Grounded on the teacher's PositionSizer but
// recast as a small polymorphic interface instead of one struct with a
// mode switch, matching the orchestrator's registry-of-policies pattern.
package sizing

import (
	"math"

	"github.com/atlas-desktop/prm/pkg/errs"
)

// Outcome is the result of a successful sizing computation. Shares is
// always >= 1; a computed count below 1 is reported as an error instead
// of rounding to zero silently.
type Outcome struct {
	Shares int64
}

// Sizer computes a share count from a risk budget. Implementations never
// mutate shared state; they close over their own parameters only.
type Sizer interface {
	ComputeShares(equity, entry, stop, atr float64) (Outcome, error)
	Describe() string
}

func floorShares(x float64) (int64, error) {
	shares := int64(math.Floor(x))
	if shares < 1 {
		return 0, errs.PositionTooSmall("sizing")
	}
	return shares, nil
}

func validateCommon(equity, entry float64) error {
	if equity <= 0 {
		return errs.InvalidInput("sizing", "equity must be positive")
	}
	if entry <= 0 {
		return errs.InvalidInput("sizing", "entry must be positive")
	}
	return nil
}

// FixedDollarRisk sizes a position to risk exactly R dollars against the
// stop distance: shares = floor(R / |entry - stop|).
type FixedDollarRisk struct {
	RiskDollars float64
}

func NewFixedDollarRisk(riskDollars float64) FixedDollarRisk {
	return FixedDollarRisk{RiskDollars: riskDollars}
}

func (s FixedDollarRisk) ComputeShares(equity, entry, stop, _ float64) (Outcome, error) {
	if err := validateCommon(equity, entry); err != nil {
		return Outcome{}, err
	}
	dist := math.Abs(entry - stop)
	if dist <= 0 {
		return Outcome{}, errs.InvalidInput("FixedDollarRisk", "stop distance must be positive")
	}
	shares, err := floorShares(s.RiskDollars / dist)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Shares: shares}, nil
}

func (s FixedDollarRisk) Describe() string { return "fixed_dollar_risk" }

// PercentRisk risks a fixed percentage of equity against the stop
// distance, capped by a maximum notional percentage of equity.
type PercentRisk struct {
	RiskPct float64
	CapPct  float64
}

func NewPercentRisk(riskPct, capPct float64) PercentRisk {
	return PercentRisk{RiskPct: riskPct, CapPct: capPct}
}

func (s PercentRisk) ComputeShares(equity, entry, stop, _ float64) (Outcome, error) {
	if err := validateCommon(equity, entry); err != nil {
		return Outcome{}, err
	}
	dist := math.Abs(entry - stop)
	if dist <= 0 {
		return Outcome{}, errs.InvalidInput("PercentRisk", "stop distance must be positive")
	}
	risk := equity * s.RiskPct
	raw := risk / dist
	capShares := (equity * s.CapPct) / entry
	if raw > capShares {
		raw = capShares
	}
	shares, err := floorShares(raw)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Shares: shares}, nil
}

func (s PercentRisk) Describe() string { return "percent_risk" }

// FixedFractional commits a fixed fraction of equity to the position
// regardless of stop distance.
type FixedFractional struct {
	Fraction float64
}

func NewFixedFractional(fraction float64) FixedFractional {
	return FixedFractional{Fraction: fraction}
}

func (s FixedFractional) ComputeShares(equity, entry, _, _ float64) (Outcome, error) {
	if err := validateCommon(equity, entry); err != nil {
		return Outcome{}, err
	}
	shares, err := floorShares(equity * s.Fraction / entry)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Shares: shares}, nil
}

func (s FixedFractional) Describe() string { return "fixed_fractional" }

// VolatilityAdjusted sizes against a multiple of average true range
// instead of a fixed stop, capped by a maximum notional percentage of
// equity.
type VolatilityAdjusted struct {
	RiskPct float64
	ATRMult float64
	CapPct  float64
}

func NewVolatilityAdjusted(riskPct, atrMult, capPct float64) VolatilityAdjusted {
	return VolatilityAdjusted{RiskPct: riskPct, ATRMult: atrMult, CapPct: capPct}
}

func (s VolatilityAdjusted) ComputeShares(equity, entry, _, atr float64) (Outcome, error) {
	if err := validateCommon(equity, entry); err != nil {
		return Outcome{}, err
	}
	stopDistance := s.ATRMult * atr
	if stopDistance <= 0 {
		return Outcome{}, errs.InvalidInput("VolatilityAdjusted", "atr must be positive")
	}
	risk := equity * s.RiskPct
	raw := risk / stopDistance
	capShares := (equity * s.CapPct) / entry
	if raw > capShares {
		raw = capShares
	}
	shares, err := floorShares(raw)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Shares: shares}, nil
}

func (s VolatilityAdjusted) Describe() string { return "volatility_adjusted" }

// KellyCriterion sizes a position by a fractional Kelly bet against the
// strategy's historical win rate and average win/loss. Grounded on the
// teacher's calculateKelly formula (kelly = p - q/b).
type KellyCriterion struct {
	WinRate  float64
	AvgWin   float64
	AvgLoss  float64
	Fraction float64
	CapPct   float64
}

func NewKellyCriterion(winRate, avgWin, avgLoss, fraction, capPct float64) KellyCriterion {
	return KellyCriterion{WinRate: winRate, AvgWin: avgWin, AvgLoss: avgLoss, Fraction: fraction, CapPct: capPct}
}

func (s KellyCriterion) ComputeShares(equity, entry, _, _ float64) (Outcome, error) {
	if err := validateCommon(equity, entry); err != nil {
		return Outcome{}, err
	}
	if s.AvgLoss <= 0 {
		return Outcome{}, errs.InvalidInput("KellyCriterion", "avg loss must be positive")
	}
	b := s.AvgWin / s.AvgLoss
	kelly := s.WinRate - (1-s.WinRate)/b
	kelly *= s.Fraction
	if kelly <= 0 {
		return Outcome{}, errs.PositionTooSmall("KellyCriterion (no position: kelly fraction is non-positive)")
	}
	if kelly > s.CapPct {
		kelly = s.CapPct
	}
	shares, err := floorShares(equity * kelly / entry)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Shares: shares}, nil
}

func (s KellyCriterion) Describe() string { return "kelly_criterion" }
