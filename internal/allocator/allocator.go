// Package allocator implements the capital allocation policies (C6):
// given a set of active strategies and their return series, produce a
// target weight vector subject to per-strategy clamps and
// renormalization. Grounded on the teacher's CapitalAllocator
// (equal/risk-adjusted split) and the VolatilityScaledSizer /
// InverseVolatilityWeighter pair in position_sizer.go, generalized into
// a five-policy interface per the spec's Metric-ranked redesign.
package allocator

import (
	"sort"

	"github.com/atlas-desktop/prm/internal/ledger"
	"github.com/atlas-desktop/prm/internal/numerics"
	"github.com/atlas-desktop/prm/pkg/types"
)

// Weights maps strategy to a target weight in [0,1].
type Weights map[types.StrategyId]float64

// Result is the outcome of a single Allocate call. FallbackReason is set
// whenever a policy degraded to EqualWeight; an empty string means the
// policy's own formula was used.
type Result struct {
	Weights        Weights
	FallbackReason string
}

// Policy computes a target allocation vector over a set of active
// strategies, using at most the last lookback returns per strategy.
type Policy interface {
	Allocate(active []types.StrategyId, led *ledger.Ledger, lookback int) Result
	Method() types.AllocationMethod
}

// sortedIDs returns active in ascending lexical order, so that every
// policy sums in a deterministic order regardless of map iteration.
func sortedIDs(active []types.StrategyId) []types.StrategyId {
	out := make([]types.StrategyId, len(active))
	copy(out, active)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalWeight(active []types.StrategyId) Weights {
	w := make(Weights, len(active))
	if len(active) == 0 {
		return w
	}
	share := 1.0 / float64(len(active))
	for _, sid := range sortedIDs(active) {
		w[sid] = share
	}
	return w
}

// EqualWeight assigns 1/n to every active strategy.
type EqualWeight struct{}

func (EqualWeight) Allocate(active []types.StrategyId, _ *ledger.Ledger, _ int) Result {
	return Result{Weights: equalWeight(active)}
}

func (EqualWeight) Method() types.AllocationMethod { return types.AllocationEqualWeight }

// PerformanceWeighted weights each strategy by its positive cumulative
// return over the lookback window, falling back to EqualWeight when no
// strategy has a positive return.
type PerformanceWeighted struct{}

func (PerformanceWeighted) Allocate(active []types.StrategyId, led *ledger.Ledger, lookback int) Result {
	ids := sortedIDs(active)
	scores := make(map[types.StrategyId]float64, len(ids))
	var sum float64
	for _, sid := range ids {
		series := led.Recent(sid, lookback)
		r, err := numerics.CumulativeReturn(series)
		if err != nil || r <= 0 {
			continue
		}
		scores[sid] = r
		sum += r
	}
	if sum == 0 {
		return Result{Weights: equalWeight(active), FallbackReason: "no strategy had positive cumulative return"}
	}
	w := make(Weights, len(ids))
	for _, sid := range ids {
		w[sid] = scores[sid] / sum
	}
	return Result{Weights: w}
}

func (PerformanceWeighted) Method() types.AllocationMethod { return types.AllocationPerformanceWeighted }

// SharpeWeighted weights each strategy by its positive annualized Sharpe
// ratio over the lookback window, falling back to EqualWeight when no
// strategy has a positive Sharpe.
type SharpeWeighted struct {
	RiskFreeRate float64
}

func (s SharpeWeighted) Allocate(active []types.StrategyId, led *ledger.Ledger, lookback int) Result {
	ids := sortedIDs(active)
	scores := make(map[types.StrategyId]float64, len(ids))
	var sum float64
	for _, sid := range ids {
		series := led.Recent(sid, lookback)
		sharpe, err := numerics.AnnualizedSharpe(series, s.RiskFreeRate)
		if err != nil || sharpe <= 0 {
			continue
		}
		scores[sid] = sharpe
		sum += sharpe
	}
	if sum == 0 {
		return Result{Weights: equalWeight(active), FallbackReason: "no strategy had positive Sharpe"}
	}
	w := make(Weights, len(ids))
	for _, sid := range ids {
		w[sid] = scores[sid] / sum
	}
	return Result{Weights: w}
}

func (SharpeWeighted) Method() types.AllocationMethod { return types.AllocationSharpeWeighted }

// RiskParity weights each strategy inversely to its annualized
// volatility, so that each contributes roughly equal risk. Falls back to
// EqualWeight when no strategy has positive volatility.
type RiskParity struct{}

func (RiskParity) Allocate(active []types.StrategyId, led *ledger.Ledger, lookback int) Result {
	ids := sortedIDs(active)
	inv := make(map[types.StrategyId]float64, len(ids))
	var sum float64
	for _, sid := range ids {
		series := led.Recent(sid, lookback)
		vol, err := numerics.AnnualizedVolatility(series)
		if err != nil || vol <= 0 {
			continue
		}
		inv[sid] = 1 / vol
		sum += inv[sid]
	}
	if sum == 0 {
		return Result{Weights: equalWeight(active), FallbackReason: "no strategy had positive volatility"}
	}
	w := make(Weights, len(ids))
	for _, sid := range ids {
		w[sid] = inv[sid] / sum
	}
	return Result{Weights: w}
}

func (RiskParity) Method() types.AllocationMethod { return types.AllocationRiskParity }

// AdaptiveKelly weights each strategy by a quarter-Kelly fraction derived
// from its historical win/loss stats, falling back to EqualWeight when
// no strategy has a positive Kelly fraction.
type AdaptiveKelly struct {
	KellyScale float64 // quarter-Kelly by default: 0.25
}

func (k AdaptiveKelly) Allocate(active []types.StrategyId, led *ledger.Ledger, lookback int) Result {
	scale := k.KellyScale
	if scale == 0 {
		scale = 0.25
	}
	ids := sortedIDs(active)
	scores := make(map[types.StrategyId]float64, len(ids))
	var sum float64
	for _, sid := range ids {
		series := led.Recent(sid, lookback)
		stats, err := numerics.ComputeWinStats(series)
		if err != nil || stats.AvgLoss <= 0 {
			continue
		}
		b := stats.AvgWin / stats.AvgLoss
		kelly := (stats.WinRate - (1-stats.WinRate)/b) * scale
		if kelly <= 0 {
			continue
		}
		scores[sid] = kelly
		sum += kelly
	}
	if sum == 0 {
		return Result{Weights: equalWeight(active), FallbackReason: "no strategy had positive Kelly fraction"}
	}
	w := make(Weights, len(ids))
	for _, sid := range ids {
		w[sid] = scores[sid] / sum
	}
	return Result{Weights: w}
}

func (AdaptiveKelly) Method() types.AllocationMethod { return types.AllocationAdaptiveKelly }

// Metric names a ranking criterion for RankBy, replacing the
// string-keyed "sharpe"/"return" lookups the teacher used against its
// metrics map with a closed, typed enum.
type Metric int

const (
	MetricSharpe Metric = iota
	MetricReturn
	MetricWinRate
)

// RankBy orders strategy ids by the named metric over each series'
// full history, descending. A strategy whose metric cannot be computed
// (insufficient data) sorts last.
func RankBy(metric Metric, series map[types.StrategyId][]float64) []types.StrategyId {
	ids := make([]types.StrategyId, 0, len(series))
	for sid := range series {
		ids = append(ids, sid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	score := func(sid types.StrategyId) (float64, bool) {
		s := series[sid]
		switch metric {
		case MetricReturn:
			v, err := numerics.CumulativeReturn(s)
			return v, err == nil
		case MetricWinRate:
			stats, err := numerics.ComputeWinStats(s)
			return stats.WinRate, err == nil
		default:
			v, err := numerics.AnnualizedSharpe(s, 0)
			return v, err == nil
		}
	}

	sort.SliceStable(ids, func(i, j int) bool {
		vi, oki := score(ids[i])
		vj, okj := score(ids[j])
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return vi > vj
	})
	return ids
}

// ApplyBoundsAndRenormalize applies the spec's fixed post-processing
// order: clamp each active weight up to wMin, clamp every weight down to
// wMax, then renormalize to a sum of 1. Renormalization holds any weight
// that would rise above wMax at wMax and spreads the remaining mass over
// the other active weights in proportion to their clamped values, so wMax
// stays a hard ceiling; wMin is a soft floor that this rescaling may
// undercut. Inactive strategies (absent from active) are excluded from
// both steps and report 0.
func ApplyBoundsAndRenormalize(w Weights, active []types.StrategyId, wMin, wMax float64) Weights {
	activeSet := make(map[types.StrategyId]bool, len(active))
	for _, sid := range active {
		activeSet[sid] = true
	}

	out := make(Weights, len(w))
	for sid, weight := range w {
		if !activeSet[sid] {
			out[sid] = 0
			continue
		}
		if weight < wMin {
			weight = wMin
		}
		out[sid] = weight
	}
	for sid := range out {
		if !activeSet[sid] {
			continue
		}
		if out[sid] > wMax {
			out[sid] = wMax
		}
	}

	capped := make(map[types.StrategyId]bool, len(active))
	fixed := 0.0
	for changed := true; changed; {
		changed = false
		var sum float64
		for _, sid := range active {
			if !capped[sid] {
				sum += out[sid]
			}
		}
		if sum <= 0 {
			break
		}
		scale := (1 - fixed) / sum
		for _, sid := range active {
			if !capped[sid] {
				out[sid] *= scale
				if out[sid] > wMax {
					out[sid], capped[sid], changed = wMax, true, true
					fixed += wMax
				}
			}
		}
	}
	return out
}
