package allocator_test

import (
	"math"
	"testing"

	"github.com/atlas-desktop/prm/internal/allocator"
	"github.com/atlas-desktop/prm/internal/ledger"
	"github.com/atlas-desktop/prm/pkg/types"
)

func closeEnough(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func sumWeights(w allocator.Weights, ids []types.StrategyId) float64 {
	var sum float64
	for _, sid := range ids {
		sum += w[sid]
	}
	return sum
}

func TestEqualWeightExactlyOneOverN(t *testing.T) {
	active := []types.StrategyId{"A", "B", "C"}
	result := allocator.EqualWeight{}.Allocate(active, ledger.New(), 20)
	for _, sid := range active {
		if !closeEnough(result.Weights[sid], 1.0/3.0, 1e-9) {
			t.Errorf("expected weight 1/3 for %s, got %v", sid, result.Weights[sid])
		}
	}
}

func TestSharpeWeightedHigherSharpeWinsBothPositive(t *testing.T) {
	led := ledger.New()
	for _, r := range []float64{0.01, 0.01, 0.01, 0.01} {
		led.RecordReturn("A", r)
	}
	for _, r := range []float64{-0.01, 0.02, -0.01, 0.02} {
		led.RecordReturn("B", r)
	}
	active := []types.StrategyId{"A", "B"}
	result := allocator.SharpeWeighted{}.Allocate(active, led, 4)

	if result.Weights["A"] <= 0 || result.Weights["B"] <= 0 {
		t.Fatalf("expected both weights positive, got A=%v B=%v", result.Weights["A"], result.Weights["B"])
	}
	if result.Weights["A"] <= result.Weights["B"] {
		t.Errorf("expected A (steady positive) to outweigh B (volatile), got A=%v B=%v", result.Weights["A"], result.Weights["B"])
	}
	if !closeEnough(sumWeights(result.Weights, active), 1.0, 1e-9) {
		t.Errorf("expected weights to sum to 1, got %v", sumWeights(result.Weights, active))
	}
}

func TestRiskParityLowerVolGetsHigherWeight(t *testing.T) {
	led := ledger.New()
	for i := 0; i < 10; i++ {
		led.RecordReturn("low", 0.001)
		led.RecordReturn("high", 0.02)
	}
	// inject variance so stdev is nonzero
	led.RecordReturn("low", 0.003)
	led.RecordReturn("high", -0.03)

	active := []types.StrategyId{"low", "high"}
	result := allocator.RiskParity{}.Allocate(active, led, 11)
	if result.Weights["low"] <= result.Weights["high"] {
		t.Errorf("expected lower-vol strategy to get higher weight, got low=%v high=%v", result.Weights["low"], result.Weights["high"])
	}
}

func TestPerformanceWeightedFallsBackWhenAllNegative(t *testing.T) {
	led := ledger.New()
	for _, r := range []float64{-0.01, -0.02, -0.01} {
		led.RecordReturn("A", r)
		led.RecordReturn("B", r)
	}
	active := []types.StrategyId{"A", "B"}
	result := allocator.PerformanceWeighted{}.Allocate(active, led, 3)
	if result.FallbackReason == "" {
		t.Fatal("expected fallback reason when all returns are negative")
	}
	if !closeEnough(result.Weights["A"], 0.5, 1e-9) {
		t.Errorf("expected equal-weight fallback, got %v", result.Weights["A"])
	}
}

func TestApplyBoundsAndRenormalize(t *testing.T) {
	w := allocator.Weights{"A": 0.9, "B": 0.1}
	active := []types.StrategyId{"A", "B"}
	out := allocator.ApplyBoundsAndRenormalize(w, active, 0.2, 0.7)

	if out["A"] > 0.7+1e-9 {
		t.Errorf("expected A clamped to max 0.7, got %v", out["A"])
	}
	if out["B"] < 0 {
		t.Errorf("unexpected negative weight for B: %v", out["B"])
	}
	if !closeEnough(sumWeights(out, active), 1.0, 1e-6) {
		t.Errorf("expected renormalized weights to sum to 1, got %v", sumWeights(out, active))
	}
}

func TestApplyBoundsExcludesInactive(t *testing.T) {
	w := allocator.Weights{"A": 0.6, "B": 0.4, "stale": 0.3}
	active := []types.StrategyId{"A", "B"}
	out := allocator.ApplyBoundsAndRenormalize(w, active, 0, 1)
	if out["stale"] != 0 {
		t.Errorf("expected inactive strategy weight 0, got %v", out["stale"])
	}
}

func TestRankByReturnOrdersDescending(t *testing.T) {
	series := map[types.StrategyId][]float64{
		"A": {0.01, 0.01, 0.01},
		"B": {0.05, 0.05, 0.05},
		"C": {-0.01, -0.01, -0.01},
	}
	ranked := allocator.RankBy(allocator.MetricReturn, series)
	if len(ranked) != 3 || ranked[0] != "B" || ranked[2] != "C" {
		t.Errorf("expected B first and C last by cumulative return, got %v", ranked)
	}
}

func TestRankByPutsInsufficientDataLast(t *testing.T) {
	series := map[types.StrategyId][]float64{
		"A": {0.01, 0.01, 0.01},
		"B": {},
	}
	ranked := allocator.RankBy(allocator.MetricSharpe, series)
	if ranked[len(ranked)-1] != "B" {
		t.Errorf("expected strategy with no data to sort last, got %v", ranked)
	}
}
