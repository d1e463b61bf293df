// Package prm implements the orchestrator (C8): the public entry point
// that ties equity updates, return recordings, and rebalance ticks to
// the portfolio state, risk gate, allocator, and rebalance controller.
// Grounded on the teacher's TradingOrchestrator for the overall shape —
// one struct holding every sub-component behind a single mutex — but
// scoped to the PRM's single-logical-writer, many-readers model instead
// of the teacher's worker-pool/event-bus machinery.
package prm

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/atlas-desktop/prm/internal/allocator"
	"github.com/atlas-desktop/prm/internal/ledger"
	"github.com/atlas-desktop/prm/internal/numerics"
	"github.com/atlas-desktop/prm/internal/portfolio"
	"github.com/atlas-desktop/prm/internal/rebalance"
	"github.com/atlas-desktop/prm/internal/risk"
	"github.com/atlas-desktop/prm/internal/sizing"
	"github.com/atlas-desktop/prm/internal/telemetry"
	"github.com/atlas-desktop/prm/pkg/errs"
	"github.com/atlas-desktop/prm/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocatorConfig configures the rebalance cycle: which policy to run,
// the lookback window it reads from the ledger, the per-strategy
// clamps, and the hysteresis parameters handed to the controller.
type AllocatorConfig struct {
	Policy          allocator.Policy
	Lookback        int
	MinWeight       float64
	MaxWeight       float64
	Threshold       float64
	AdaptationSpeed float64
}

// Manager is the PRM's single-logical-writer orchestrator. Every
// exported method that mutates state takes mu; read-only methods take
// an RLock so snapshot/can_trade never observe a half-updated state.
type Manager struct {
	logger *zap.Logger
	mu     sync.RWMutex

	state      *portfolio.State
	led        *ledger.Ledger
	gate       *risk.Gate
	controller *rebalance.Controller
	metrics    *telemetry.Metrics

	allocatorCfg        AllocatorConfig
	allocations         []types.StrategyAllocation
	curWeights          allocator.Weights
	lastCommittedTarget allocator.Weights
	sizers              map[types.StrategyId]sizing.Sizer
	strategyMeta        map[types.StrategyId]types.StrategyMetrics

	halted       bool
	haltedReason string
}

// New constructs a Manager with the given initial equity, risk limits,
// and rebalance configuration. The logger follows the teacher's
// convention of being injected rather than constructed internally.
// metrics may be nil, in which case telemetry updates are skipped.
func New(logger *zap.Logger, initialEquity decimal.Decimal, limits types.RiskLimits, allocCfg AllocatorConfig, metrics *telemetry.Metrics) (*Manager, error) {
	if initialEquity.IsNegative() {
		return nil, errs.InvalidInput("prm.New", "initial equity must be non-negative")
	}
	state := portfolio.New()
	if err := state.UpdateEquity(initialEquity, time.Now()); err != nil {
		return nil, err
	}
	gate := risk.New(state, limits)
	return &Manager{
		logger:       logger,
		state:        state,
		led:          ledger.New(),
		gate:         gate,
		controller:   rebalance.New(allocCfg.Threshold, allocCfg.AdaptationSpeed),
		metrics:      metrics,
		allocatorCfg: allocCfg,
		curWeights:   allocator.Weights{},
		sizers:       make(map[types.StrategyId]sizing.Sizer),
		strategyMeta: make(map[types.StrategyId]types.StrategyMetrics),
	}, nil
}

// requireNotHalted is checked at the top of every mutating operation; an
// InvariantViolated failure trips a permanent halt that outlives any
// single call.
func (m *Manager) requireNotHalted() error {
	if m.halted {
		return errs.InvariantViolated("manager halted: " + m.haltedReason)
	}
	return nil
}

func (m *Manager) halt(reason string) error {
	m.halted = true
	m.haltedReason = reason
	if m.logger != nil {
		m.logger.Error("prm invariant violated, halting", zap.String("reason", reason))
	}
	return errs.InvariantViolated(reason)
}

// OnEquity applies an equity update as one logical transaction (event
// sink: EquityUpdate).
func (m *Manager) OnEquity(update types.EquityUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	peakBefore := m.state.PeakEquity()
	if err := m.state.UpdateEquity(update.TotalEquity, update.Timestamp); err != nil {
		return err
	}
	if m.state.PeakEquity().LessThan(peakBefore) {
		return m.halt("peak equity decreased")
	}
	if m.state.CurrentDrawdown().IsNegative() {
		return m.halt("current drawdown went negative")
	}
	if err := m.state.UpdateCash(update.Cash); err != nil {
		return err
	}
	if err := m.state.UpdatePositionValue(update.PositionValue); err != nil {
		return err
	}
	if err := m.state.UpdateExposure(update.TotalExposure); err != nil {
		return err
	}
	m.updatePortfolioTelemetry()
	return nil
}

// OnPositionChange applies a per-strategy open-position count update
// (event sink: PositionUpdate).
func (m *Manager) OnPositionChange(update types.PositionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	if err := m.state.UpdatePositions(update.StrategyId, update.OpenPositions); err != nil {
		return err
	}
	m.updatePortfolioTelemetry()
	return nil
}

// OnDayClose appends a strategy's daily return to the ledger (event
// sink: DayClose).
func (m *Manager) OnDayClose(update types.DayClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	m.led.RecordReturn(update.StrategyId, update.DailyReturn)
	m.recomputeStrategyMetrics(update.StrategyId)
	return nil
}

// OnDayBoundary resets the daily-scoped equity snapshot (event sink:
// DayBoundary). The PRM owns no calendar of its own; this must be
// driven by an external clock.
func (m *Manager) OnDayBoundary(_ types.DayBoundary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	m.state.ResetDaily()
	return nil
}

// SetAllocations replaces the allocation list wholesale (command
// surface). Fails with InvalidInput if active allocations sum to more
// than 1 + epsilon.
func (m *Manager) SetAllocations(list []types.StrategyAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	const epsilon = 1e-9
	var sum float64
	for _, a := range list {
		if a.Active {
			sum += a.Allocation
		}
	}
	if sum > 1+epsilon {
		return errs.InvalidInput("SetAllocations", "active allocations sum to more than 1")
	}
	m.allocations = list
	m.gate.SetAllocations(list)
	for _, a := range list {
		m.curWeights[a.StrategyId] = a.Allocation
	}
	return nil
}

// SetLimits replaces the risk limits wholesale (command surface).
func (m *Manager) SetLimits(limits types.RiskLimits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	m.gate.SetLimits(limits)
	return nil
}

// SetAllocator reconfigures the allocation policy and the rebalance
// controller's hysteresis parameters (command surface).
func (m *Manager) SetAllocator(cfg AllocatorConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	m.allocatorCfg = cfg
	m.controller = rebalance.New(cfg.Threshold, cfg.AdaptationSpeed)
	return nil
}

// SetSizer registers the position sizer used for a single strategy's
// trade requests (command surface).
func (m *Manager) SetSizer(sid types.StrategyId, s sizing.Sizer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return err
	}
	m.sizers[sid] = s
	return nil
}

// CanTrade runs the risk gate for a strategy (decision surface). It is
// read-only and never mutates state.
func (m *Manager) CanTrade(sid types.StrategyId) (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gate.CanTrade(sid)
}

// SizeOrder runs the gate, then the strategy's configured sizer
// (decision surface). It mutates nothing: a denial or a sizing formula
// that resolves to no position is an ordinary decision outcome, not a
// state change. A malformed caller argument (negative equity, bad
// price) is not: it surfaces as an error, per the InvalidInput/
// InvariantViolated propagation rule, instead of being folded into a
// Skipped outcome indistinguishable from a genuine no-trade result.
func (m *Manager) SizeOrder(sid types.StrategyId, equity, entry, stopOrATR float64) (types.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if allowed, reason := m.gate.CanTrade(sid); !allowed {
		m.recordDecisionTelemetry("denied")
		if m.metrics != nil {
			m.metrics.RiskDenials.WithLabelValues(reason).Inc()
		}
		return types.Decision{Kind: types.DecisionDenied, Reason: reason}, nil
	}

	s, ok := m.sizers[sid]
	if !ok {
		m.recordDecisionTelemetry("skipped")
		return types.Decision{Kind: types.DecisionSkipped, Category: "no_sizer_configured"}, nil
	}

	out, err := s.ComputeShares(equity, entry, stopOrATR, stopOrATR)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidInput) {
			m.recordDecisionTelemetry("error")
			return types.Decision{}, err
		}
		m.recordDecisionTelemetry("skipped")
		return types.Decision{Kind: types.DecisionSkipped, Category: s.Describe(), Detail: err.Error()}, nil
	}

	m.recordDecisionTelemetry("approved")
	return types.Decision{Kind: types.DecisionApproved, Shares: out.Shares}, nil
}

func (m *Manager) recordDecisionTelemetry(outcome string) {
	if m.metrics != nil {
		m.metrics.TradeDecisions.WithLabelValues(outcome).Inc()
	}
}

// OnRebalanceTick runs one pass of the allocator and rebalance
// controller (decision surface). It returns an AllocationReport only
// when a commit occurred. Two consecutive calls with no interleaving
// events recompute the identical target from the unchanged ledger and
// allocation inputs; once that target has been committed once, a
// repeat call is a no-op rather than a second partial commit toward
// the same destination.
func (m *Manager) OnRebalanceTick() (*types.AllocationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNotHalted(); err != nil {
		return nil, err
	}
	if m.allocatorCfg.Policy == nil {
		return nil, errs.InvalidInput("OnRebalanceTick", "no allocation policy configured")
	}

	active := m.activeStrategyIDs()
	result := m.allocatorCfg.Policy.Allocate(active, m.led, m.allocatorCfg.Lookback)
	target := allocator.ApplyBoundsAndRenormalize(result.Weights, active, m.allocatorCfg.MinWeight, m.allocatorCfg.MaxWeight)

	if m.lastCommittedTarget != nil && weightsEqual(target, m.lastCommittedTarget) {
		return nil, nil
	}

	blended, report := m.controller.Tick(m.curWeights, target, m.allocatorCfg.Policy.Method(), time.Now())
	m.curWeights = blended

	if report != nil {
		roundReportPrecision(report)
		m.applyBlendedWeights(blended)
		m.lastCommittedTarget = target
		if m.metrics != nil {
			m.metrics.Rebalances.Inc()
			for sid, w := range blended {
				m.metrics.StrategyAllocation.WithLabelValues(string(sid)).Set(w)
			}
		}
	}
	return report, nil
}

// weightsEqual reports whether a and b hold exactly the same strategy
// ids mapped to bitwise-equal weights.
func weightsEqual(a, b allocator.Weights) bool {
	if len(a) != len(b) {
		return false
	}
	for sid, wa := range a {
		wb, ok := b[sid]
		if !ok || wa != wb {
			return false
		}
	}
	return true
}

func (m *Manager) activeStrategyIDs() []types.StrategyId {
	ids := make([]types.StrategyId, 0, len(m.allocations))
	for _, a := range m.allocations {
		if a.Active {
			ids = append(ids, a.StrategyId)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) applyBlendedWeights(blended allocator.Weights) {
	for i := range m.allocations {
		if w, ok := blended[m.allocations[i].StrategyId]; ok {
			m.allocations[i].Allocation = w
		}
	}
	m.gate.SetAllocations(m.allocations)
}

// CorrelationMatrix returns the Pearson correlation of every pair of
// active strategies' full return series (query surface).
func (m *Manager) CorrelationMatrix() map[types.StrategyId]map[types.StrategyId]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.activeStrategyIDs()
	out := make(map[types.StrategyId]map[types.StrategyId]float64, len(ids))
	for _, a := range ids {
		out[a] = make(map[types.StrategyId]float64, len(ids))
		for _, b := range ids {
			if a == b {
				out[a][b] = 1.0
				continue
			}
			seriesA := m.led.Recent(a, 0)
			seriesB := m.led.Recent(b, 0)
			corr, err := numerics.PearsonCorrelation(seriesA, seriesB)
			if err != nil {
				corr = 0
			}
			out[a][b] = corr
		}
	}
	return out
}

// RiskStatus reports the traffic-light summary for a strategy (query
// surface).
func (m *Manager) RiskStatus(sid types.StrategyId) types.RiskStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gate.Status(sid)
}

// Snapshot returns an immutable view of portfolio state, allocations,
// and derived strategy metrics (query surface).
func (m *Manager) Snapshot() types.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metricsCopy := make(map[types.StrategyId]types.StrategyMetrics, len(m.strategyMeta))
	for sid, sm := range m.strategyMeta {
		metricsCopy[sid] = sm
	}
	allocCopy := make([]types.StrategyAllocation, len(m.allocations))
	copy(allocCopy, m.allocations)

	return types.Snapshot{
		Timestamp:           m.state.LastUpdate(),
		TotalEquity:         m.state.TotalEquity(),
		Cash:                m.state.Cash(),
		PositionValue:       m.state.PositionValue(),
		PeakEquity:          m.state.PeakEquity(),
		CurrentDrawdown:     m.state.CurrentDrawdown(),
		CurrentDrawdownPct:  m.state.CurrentDrawdownPct(),
		DailyStartEquity:    m.state.DailyStartEquity(),
		DailyPnL:            m.state.DailyPnL(),
		InceptionEquity:     m.state.InceptionEquity(),
		TotalExposure:       m.state.TotalExposure(),
		Leverage:            m.state.Leverage(),
		OpenPositions:       m.state.OpenPositions(),
		PositionsByStrategy: m.state.PositionsByStrategy(),
		Allocations:         allocCopy,
		Metrics:             metricsCopy,
	}
}

// recomputeStrategyMetrics rebuilds the derived StrategyMetrics entry
// for sid from its full return series. Called after every OnDayClose;
// cheap because it runs over one strategy's series, not all of them.
func (m *Manager) recomputeStrategyMetrics(sid types.StrategyId) {
	series := m.led.Recent(sid, 0)
	sm := types.StrategyMetrics{StrategyId: sid, TradeCount: len(series), LastUpdate: time.Now()}

	if totalReturn, err := numerics.CumulativeReturn(series); err == nil {
		sm.TotalReturn = totalReturn
	}
	if sharpe, err := numerics.AnnualizedSharpe(series, 0); err == nil {
		sm.Sharpe = sharpe
	}
	if dd, err := numerics.MaxDrawdown(cumulativeCurve(series)); err == nil {
		sm.MaxDrawdown = dd
	}
	if stats, err := numerics.ComputeWinStats(series); err == nil {
		sm.WinRate = stats.WinRate
	}
	for _, a := range m.allocations {
		if a.StrategyId == sid {
			sm.Active = a.Active
		}
	}
	m.strategyMeta[sid] = sm
}

// cumulativeCurve turns a return series into a running equity curve
// starting at 1.0, suitable for numerics.MaxDrawdown.
func cumulativeCurve(returns []float64) []float64 {
	curve := make([]float64, len(returns)+1)
	curve[0] = 1.0
	for i, r := range returns {
		curve[i+1] = curve[i] * (1 + r)
	}
	return curve
}

func (m *Manager) updatePortfolioTelemetry() {
	if m.metrics == nil {
		return
	}
	m.metrics.PortfolioValue.Set(m.state.TotalEquity().InexactFloat64())
	m.metrics.Cash.Set(m.state.Cash().InexactFloat64())
	m.metrics.DailyPnL.Set(m.state.DailyPnL().InexactFloat64())
	m.metrics.CurrentDrawdown.Set(m.state.CurrentDrawdownPct())
	m.metrics.ActivePositions.Set(float64(m.state.OpenPositions()))
	m.metrics.TotalRiskExposure.Set(m.state.TotalExposure().InexactFloat64())
	m.metrics.Leverage.Set(m.state.Leverage())
}

// roundReportPrecision rounds an AllocationReport's per-strategy deltas
// to six decimal places for stable diffing, per the report sink's
// exact-format requirement.
func roundReportPrecision(report *types.AllocationReport) {
	if report == nil {
		return
	}
	round := func(f float64) float64 {
		return decimal.NewFromFloat(f).Round(6).InexactFloat64()
	}
	for i := range report.Deltas {
		report.Deltas[i].OldWeight = round(report.Deltas[i].OldWeight)
		report.Deltas[i].NewWeight = round(report.Deltas[i].NewWeight)
		report.Deltas[i].Delta = round(report.Deltas[i].Delta)
		report.Deltas[i].DeltaPct = round(report.Deltas[i].DeltaPct)
	}
	report.TotalChange = round(report.TotalChange)
}
