package prm_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/prm/internal/allocator"
	"github.com/atlas-desktop/prm/internal/prm"
	"github.com/atlas-desktop/prm/internal/sizing"
	"github.com/atlas-desktop/prm/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, limits types.RiskLimits) *prm.Manager {
	t.Helper()
	cfg := prm.AllocatorConfig{
		Policy:          allocator.EqualWeight{},
		Lookback:        20,
		MinWeight:       0,
		MaxWeight:       1,
		Threshold:       0.02,
		AdaptationSpeed: 0.3,
	}
	m, err := prm.New(zap.NewNop(), decimal.NewFromInt(100000), limits, cfg, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return m
}

func TestSizeOrderPercentRiskScenario(t *testing.T) {
	limits := types.RiskLimits{MaxPortfolioDrawdownPct: 100, MaxConcurrentPositions: 10, MaxLeverage: 10}
	m := newTestManager(t, limits)

	if err := m.SetAllocations([]types.StrategyAllocation{{StrategyId: "S1", Allocation: 1, Active: true}}); err != nil {
		t.Fatalf("SetAllocations returned error: %v", err)
	}
	if err := m.SetSizer("S1", sizing.NewPercentRisk(0.01, 0.20)); err != nil {
		t.Fatalf("SetSizer returned error: %v", err)
	}

	decision, err := m.SizeOrder("S1", 50000, 50, 48)
	if err != nil {
		t.Fatalf("SizeOrder returned error: %v", err)
	}
	if decision.Kind != types.DecisionApproved {
		t.Fatalf("expected approved decision, got %v (%s)", decision.Kind, decision.Reason)
	}
	if decision.Shares != 200 {
		t.Errorf("expected 200 shares (cap-clamped), got %d", decision.Shares)
	}
}

func TestSizeOrderKellyScenario(t *testing.T) {
	limits := types.RiskLimits{MaxPortfolioDrawdownPct: 100, MaxConcurrentPositions: 10, MaxLeverage: 10}
	m := newTestManager(t, limits)

	if err := m.SetAllocations([]types.StrategyAllocation{{StrategyId: "S1", Allocation: 1, Active: true}}); err != nil {
		t.Fatalf("SetAllocations returned error: %v", err)
	}
	if err := m.SetSizer("S1", sizing.NewKellyCriterion(0.55, 2.0, 1.0, 0.5, 0.10)); err != nil {
		t.Fatalf("SetSizer returned error: %v", err)
	}

	decision, err := m.SizeOrder("S1", 100000, 50, 0)
	if err != nil {
		t.Fatalf("SizeOrder returned error: %v", err)
	}
	if decision.Kind != types.DecisionApproved {
		t.Fatalf("expected approved decision, got %v (%s)", decision.Kind, decision.Reason)
	}
	if decision.Shares != 200 {
		t.Errorf("expected 200 shares (cap-clamped), got %d", decision.Shares)
	}
}

func TestSizeOrderDeniedByGate(t *testing.T) {
	limits := types.RiskLimits{MaxPortfolioDrawdownPct: 5, MaxConcurrentPositions: 10, MaxLeverage: 10}
	m := newTestManager(t, limits)
	_ = m.OnEquity(types.EquityUpdate{Timestamp: time.Now(), TotalEquity: decimal.NewFromInt(80000)})

	if err := m.SetAllocations([]types.StrategyAllocation{{StrategyId: "S1", Allocation: 1, Active: true}}); err != nil {
		t.Fatalf("SetAllocations returned error: %v", err)
	}
	_ = m.SetSizer("S1", sizing.NewFixedFractional(0.1))

	decision, err := m.SizeOrder("S1", 80000, 50, 0)
	if err != nil {
		t.Fatalf("SizeOrder returned error: %v", err)
	}
	if decision.Kind != types.DecisionDenied {
		t.Fatalf("expected denied decision, got %v", decision.Kind)
	}
}

func TestSizeOrderSurfacesInvalidInput(t *testing.T) {
	limits := types.RiskLimits{MaxPortfolioDrawdownPct: 100, MaxConcurrentPositions: 10, MaxLeverage: 10}
	m := newTestManager(t, limits)
	if err := m.SetAllocations([]types.StrategyAllocation{{StrategyId: "S1", Allocation: 1, Active: true}}); err != nil {
		t.Fatalf("SetAllocations returned error: %v", err)
	}
	if err := m.SetSizer("S1", sizing.NewVolatilityAdjusted(0.02, 2, 0.1)); err != nil {
		t.Fatalf("SetSizer returned error: %v", err)
	}

	_, err := m.SizeOrder("S1", 100000, 50, 0)
	if err == nil {
		t.Fatal("expected SizeOrder to surface an error for a zero ATR")
	}
}

func TestSetAllocationsRejectsOversum(t *testing.T) {
	m := newTestManager(t, types.RiskLimits{MaxPortfolioDrawdownPct: 100, MaxConcurrentPositions: 10, MaxLeverage: 10})
	err := m.SetAllocations([]types.StrategyAllocation{
		{StrategyId: "S1", Allocation: 0.7, Active: true},
		{StrategyId: "S2", Allocation: 0.5, Active: true},
	})
	if err == nil {
		t.Fatal("expected error when active allocations sum above 1")
	}
}

func TestOnRebalanceTickEqualWeightCommitsOnLargeDrift(t *testing.T) {
	m := newTestManager(t, types.RiskLimits{MaxPortfolioDrawdownPct: 100, MaxConcurrentPositions: 10, MaxLeverage: 10})
	_ = m.SetAllocations([]types.StrategyAllocation{
		{StrategyId: "S1", Allocation: 0, Active: true},
		{StrategyId: "S2", Allocation: 1, Active: true},
	})

	report, err := m.OnRebalanceTick()
	if err != nil {
		t.Fatalf("OnRebalanceTick returned error: %v", err)
	}
	if report == nil {
		t.Fatal("expected a rebalance report on first tick toward equal weight")
	}
}

func TestOnRebalanceTickSecondCallWithNoChangeCommitsAtMostOnce(t *testing.T) {
	m := newTestManager(t, types.RiskLimits{MaxPortfolioDrawdownPct: 100, MaxConcurrentPositions: 10, MaxLeverage: 10})
	if err := m.SetAllocations([]types.StrategyAllocation{
		{StrategyId: "S1", Allocation: 0, Active: true},
		{StrategyId: "S2", Allocation: 1, Active: true},
	}); err != nil {
		t.Fatalf("SetAllocations returned error: %v", err)
	}

	first, err := m.OnRebalanceTick()
	if err != nil {
		t.Fatalf("first OnRebalanceTick returned error: %v", err)
	}
	if first == nil {
		t.Fatal("expected a rebalance report on the first tick toward equal weight")
	}

	second, err := m.OnRebalanceTick()
	if err != nil {
		t.Fatalf("second OnRebalanceTick returned error: %v", err)
	}
	if second != nil {
		t.Fatalf("expected no commit on a second tick with unchanged ledger/allocation inputs, got %v", second)
	}
}

func TestSnapshotReflectsEquityUpdate(t *testing.T) {
	m := newTestManager(t, types.RiskLimits{MaxPortfolioDrawdownPct: 100, MaxConcurrentPositions: 10, MaxLeverage: 10})
	if err := m.OnEquity(types.EquityUpdate{
		Timestamp:     time.Now(),
		TotalEquity:   decimal.NewFromInt(105000),
		Cash:          decimal.NewFromInt(20000),
		PositionValue: decimal.NewFromInt(85000),
		TotalExposure: decimal.NewFromInt(85000),
	}); err != nil {
		t.Fatalf("OnEquity returned error: %v", err)
	}

	snap := m.Snapshot()
	if !snap.TotalEquity.Equal(decimal.NewFromInt(105000)) {
		t.Errorf("expected snapshot equity 105000, got %s", snap.TotalEquity)
	}
}
