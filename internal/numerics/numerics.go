// Package numerics implements the stateless statistics shared by the
// sizers, the allocator, and the strategy metrics query. Every function
// here fails closed with errs.ErrInsufficientData when given fewer
// observations than it needs, rather than returning a degenerate zero.
package numerics

import (
	"math"
	"sort"

	"github.com/atlas-desktop/prm/pkg/errs"
	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// Mean returns the arithmetic mean of xs, via gonum/stat.
func Mean(xs []float64) (float64, error) {
	if len(xs) < 1 {
		return 0, errs.InsufficientData("Mean", len(xs), 1)
	}
	return stat.Mean(xs, nil), nil
}

// SampleStdev returns the sample standard deviation (n-1 denominator)
// of xs, via gonum/stat. Requires at least 2 observations.
func SampleStdev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, errs.InsufficientData("SampleStdev", len(xs), 2)
	}
	return stat.StdDev(xs, nil), nil
}

// AnnualizedVolatility scales a sample of daily returns to an annualized
// figure by the square root of 252.
func AnnualizedVolatility(dailyReturns []float64) (float64, error) {
	sd, err := SampleStdev(dailyReturns)
	if err != nil {
		return 0, err
	}
	return sd * math.Sqrt(float64(tradingDaysPerYear)), nil
}

// zeroVarianceFloor substitutes for a zero sample stdev so a
// zero-variance series with a nonzero mean still yields a sharply
// dominant but finite Sharpe ratio, rather than an exact 0 that would
// make it indistinguishable from (or worse than) a losing strategy.
const zeroVarianceFloor = 1e-9

// AnnualizedSharpe computes the annualized Sharpe ratio of dailyReturns
// against a per-period riskFreeRate. Returns errs.ErrInsufficientData
// below 2 samples. A zero-variance series floors its stdev instead of
// dividing by zero, so a steady positive-mean series dominates a
// volatile one rather than vanishing to 0.
func AnnualizedSharpe(dailyReturns []float64, riskFreeRate float64) (float64, error) {
	mean, err := Mean(dailyReturns)
	if err != nil {
		return 0, err
	}
	sd, err := SampleStdev(dailyReturns)
	if err != nil {
		return 0, err
	}
	if sd == 0 {
		sd = zeroVarianceFloor
	}
	excess := mean - riskFreeRate
	return (excess / sd) * math.Sqrt(float64(tradingDaysPerYear)), nil
}

// PearsonCorrelation computes the Pearson correlation coefficient between
// two equal-length return series, via gonum/stat. Requires at least 2
// paired observations; returns 0 when either series has zero variance.
func PearsonCorrelation(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidInput("PearsonCorrelation", "series must be equal length")
	}
	if len(a) < 2 {
		return 0, errs.InsufficientData("PearsonCorrelation", len(a), 2)
	}
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return 0, nil
	}
	return stat.Correlation(a, b, nil), nil
}

// CumulativeReturn compounds a series of per-period returns into a single
// total return, e.g. [0.01, -0.02, 0.03] -> 1.01*0.98*1.03 - 1.
func CumulativeReturn(periodReturns []float64) (float64, error) {
	if len(periodReturns) < 1 {
		return 0, errs.InsufficientData("CumulativeReturn", len(periodReturns), 1)
	}
	growth := 1.0
	for _, r := range periodReturns {
		growth *= 1 + r
	}
	return growth - 1, nil
}

// WinStats is the win/loss breakdown of a trade PnL series.
type WinStats struct {
	WinRate    float64
	AvgWin     float64
	AvgLoss    float64
	TradeCount int
}

// ComputeWinStats summarizes a series of realized trade PnLs.
func ComputeWinStats(pnls []float64) (WinStats, error) {
	if len(pnls) < 1 {
		return WinStats{}, errs.InsufficientData("ComputeWinStats", len(pnls), 1)
	}
	var wins, losses int
	var winSum, lossSum float64
	for _, p := range pnls {
		if p > 0 {
			wins++
			winSum += p
		} else if p < 0 {
			losses++
			lossSum += -p
		}
	}
	stats := WinStats{TradeCount: len(pnls)}
	stats.WinRate = float64(wins) / float64(len(pnls))
	if wins > 0 {
		stats.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		stats.AvgLoss = lossSum / float64(losses)
	}
	return stats, nil
}

// MaxDrawdown returns the largest peak-to-trough decline observed in an
// equity curve, expressed as a positive fraction (0.2 == 20%).
func MaxDrawdown(equityCurve []float64) (float64, error) {
	if len(equityCurve) < 1 {
		return 0, errs.InsufficientData("MaxDrawdown", len(equityCurve), 1)
	}
	peak := equityCurve[0]
	maxDD := 0.0
	for _, v := range equityCurve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD, nil
}

// sortedCopy returns a sorted ascending copy of xs without mutating it.
func sortedCopy(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}

// Percentile returns the value at the given percentile (0..100) of xs
// using linear interpolation between the two nearest ranks of a sorted
// copy of the series.
func Percentile(xs []float64, pct float64) (float64, error) {
	if len(xs) < 1 {
		return 0, errs.InsufficientData("Percentile", len(xs), 1)
	}
	sorted := sortedCopy(xs)
	rank := (pct / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), nil
}
