// Package ledger implements the append-only per-strategy return series
// (C3). It is only ever touched from the orchestrator's single writer
// goroutine, so it needs no internal locking of its own; the guarantee
// that record and recent observe program order comes from that
// single-caller discipline, documented in the concurrency model.
package ledger

import "github.com/atlas-desktop/prm/pkg/types"

// Ledger holds a return series per strategy with O(1) append and O(L)
// lookback.
type Ledger struct {
	series map[types.StrategyId][]float64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{series: make(map[types.StrategyId][]float64)}
}

// RecordReturn appends a period return to a strategy's series.
func (l *Ledger) RecordReturn(sid types.StrategyId, r float64) {
	l.series[sid] = append(l.series[sid], r)
}

// Recent returns a view over the last min(lookback, len) elements of a
// strategy's series, oldest first. The caller must not mutate the
// returned slice; it aliases the ledger's backing array.
func (l *Ledger) Recent(sid types.StrategyId, lookback int) []float64 {
	full := l.series[sid]
	if lookback <= 0 || lookback >= len(full) {
		return full
	}
	return full[len(full)-lookback:]
}

// Len returns the total number of recorded returns for a strategy.
func (l *Ledger) Len(sid types.StrategyId) int {
	return len(l.series[sid])
}

// StrategyIds returns every strategy with at least one recorded return,
// in no particular order; callers that need determinism must sort it.
func (l *Ledger) StrategyIds() []types.StrategyId {
	ids := make([]types.StrategyId, 0, len(l.series))
	for sid := range l.series {
		ids = append(ids, sid)
	}
	return ids
}
