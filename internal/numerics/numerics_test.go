package numerics_test

import (
	"errors"
	"math"
	"testing"

	"github.com/atlas-desktop/prm/internal/numerics"
	"github.com/atlas-desktop/prm/pkg/errs"
)

func closeEnough(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMean(t *testing.T) {
	mean, err := numerics.Mean([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Mean returned error: %v", err)
	}
	if !closeEnough(mean, 2.5, 1e-9) {
		t.Errorf("expected mean 2.5, got %v", mean)
	}
}

func TestMeanInsufficientData(t *testing.T) {
	_, err := numerics.Mean(nil)
	if !errors.Is(err, errs.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestSampleStdev(t *testing.T) {
	sd, err := numerics.SampleStdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("SampleStdev returned error: %v", err)
	}
	if !closeEnough(sd, 2.138, 0.01) {
		t.Errorf("expected stdev ~2.138, got %v", sd)
	}
}

func TestSampleStdevRequiresTwoSamples(t *testing.T) {
	_, err := numerics.SampleStdev([]float64{1})
	if !errors.Is(err, errs.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	vol, err := numerics.AnnualizedVolatility([]float64{0.01, -0.01, 0.02, -0.02, 0.01})
	if err != nil {
		t.Fatalf("AnnualizedVolatility returned error: %v", err)
	}
	if vol <= 0 {
		t.Errorf("expected positive annualized volatility, got %v", vol)
	}
}

func TestAnnualizedSharpeZeroVariance(t *testing.T) {
	sharpe, err := numerics.AnnualizedSharpe([]float64{0.01, 0.01, 0.01}, 0)
	if err != nil {
		t.Fatalf("AnnualizedSharpe returned error: %v", err)
	}
	if sharpe <= 0 || math.IsInf(sharpe, 0) || math.IsNaN(sharpe) {
		t.Errorf("expected a large finite positive sharpe for a zero-variance positive-mean series, got %v", sharpe)
	}
}

func TestAnnualizedSharpeZeroVarianceDominatesVolatileSeries(t *testing.T) {
	steady, err := numerics.AnnualizedSharpe([]float64{0.01, 0.01, 0.01, 0.01}, 0)
	if err != nil {
		t.Fatalf("AnnualizedSharpe(steady) returned error: %v", err)
	}
	volatile, err := numerics.AnnualizedSharpe([]float64{-0.01, 0.02, -0.01, 0.02}, 0)
	if err != nil {
		t.Fatalf("AnnualizedSharpe(volatile) returned error: %v", err)
	}
	if steady <= volatile {
		t.Errorf("expected zero-variance steady series to dominate a volatile one, steady=%v volatile=%v", steady, volatile)
	}
}

func TestPearsonCorrelationPerfectlyCorrelated(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	corr, err := numerics.PearsonCorrelation(a, b)
	if err != nil {
		t.Fatalf("PearsonCorrelation returned error: %v", err)
	}
	if !closeEnough(corr, 1.0, 1e-9) {
		t.Errorf("expected correlation 1.0, got %v", corr)
	}
}

func TestPearsonCorrelationMismatchedLength(t *testing.T) {
	_, err := numerics.PearsonCorrelation([]float64{1, 2}, []float64{1})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCumulativeReturn(t *testing.T) {
	total, err := numerics.CumulativeReturn([]float64{0.1, -0.1, 0.05})
	if err != nil {
		t.Fatalf("CumulativeReturn returned error: %v", err)
	}
	want := 1.1*0.9*1.05 - 1
	if !closeEnough(total, want, 1e-9) {
		t.Errorf("expected %v, got %v", want, total)
	}
}

func TestComputeWinStats(t *testing.T) {
	stats, err := numerics.ComputeWinStats([]float64{10, -5, 20, -10, 0})
	if err != nil {
		t.Fatalf("ComputeWinStats returned error: %v", err)
	}
	if stats.TradeCount != 5 {
		t.Errorf("expected trade count 5, got %d", stats.TradeCount)
	}
	if !closeEnough(stats.WinRate, 0.4, 1e-9) {
		t.Errorf("expected win rate 0.4, got %v", stats.WinRate)
	}
	if !closeEnough(stats.AvgWin, 15, 1e-9) {
		t.Errorf("expected avg win 15, got %v", stats.AvgWin)
	}
	if !closeEnough(stats.AvgLoss, 7.5, 1e-9) {
		t.Errorf("expected avg loss 7.5, got %v", stats.AvgLoss)
	}
}

func TestMaxDrawdown(t *testing.T) {
	dd, err := numerics.MaxDrawdown([]float64{100, 120, 90, 110, 80, 95})
	if err != nil {
		t.Fatalf("MaxDrawdown returned error: %v", err)
	}
	want := (120.0 - 80.0) / 120.0
	if !closeEnough(dd, want, 1e-9) {
		t.Errorf("expected max drawdown %v, got %v", want, dd)
	}
}

func TestPercentileMedian(t *testing.T) {
	p, err := numerics.Percentile([]float64{5, 1, 3, 2, 4}, 50)
	if err != nil {
		t.Fatalf("Percentile returned error: %v", err)
	}
	if !closeEnough(p, 3, 1e-9) {
		t.Errorf("expected median 3, got %v", p)
	}
}
