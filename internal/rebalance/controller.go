// Package rebalance implements the rebalance controller (C7): decides
// whether the current allocation has drifted far enough from target to
// warrant a commit, and blends toward the target at a configured
// adaptation speed. Grounded on the teacher orchestrator's tick-driven
// lifecycle shape, generalized into the spec's explicit state machine.
package rebalance

import (
	"time"

	"github.com/atlas-desktop/prm/internal/allocator"
	"github.com/atlas-desktop/prm/pkg/types"
	"github.com/atlas-desktop/prm/pkg/utils"
)

// State names the controller's position in its per-tick state machine.
// The controller is always observed in IDLE between ticks; the other
// states exist only for the duration of a single Tick call.
type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateDecide     State = "decide"
	StateCommit     State = "commit"
	StateSkip       State = "skip"
)

// Controller holds the hysteresis parameters and the last-known state
// machine position, which is always IDLE once Tick returns.
type Controller struct {
	Threshold       float64
	AdaptationSpeed float64

	state State
}

// New constructs a Controller with the given hysteresis threshold θ and
// adaptation speed α.
func New(threshold, adaptationSpeed float64) *Controller {
	return &Controller{Threshold: threshold, AdaptationSpeed: adaptationSpeed, state: StateIdle}
}

// State returns the controller's current state machine position.
func (c *Controller) State() State { return c.state }

// ShouldRebalance reports whether any strategy's target weight differs
// from its current weight by more than the threshold.
func ShouldRebalance(cur, tgt allocator.Weights, threshold float64) bool {
	for sid, t := range tgt {
		c := cur[sid]
		diff := t - c
		if diff < 0 {
			diff = -diff
		}
		if diff > threshold {
			return true
		}
	}
	return false
}

// Blend computes (1-α)*cur + α*tgt elementwise over the union of both
// weight maps.
func Blend(cur, tgt allocator.Weights, alpha float64) allocator.Weights {
	out := make(allocator.Weights, len(tgt))
	seen := make(map[types.StrategyId]bool)
	for sid, t := range tgt {
		c := cur[sid]
		out[sid] = (1-alpha)*c + alpha*t
		seen[sid] = true
	}
	for sid, c := range cur {
		if !seen[sid] {
			out[sid] = (1 - alpha) * c
		}
	}
	return out
}

// Tick runs one pass of the state machine: EVALUATING (the caller
// already computed tgt) -> DECIDE -> COMMIT|SKIP -> IDLE. It returns the
// blended weights and, on a commit, an AllocationReport describing the
// per-strategy deltas.
func (c *Controller) Tick(cur, tgt allocator.Weights, method types.AllocationMethod, now time.Time) (allocator.Weights, *types.AllocationReport) {
	c.state = StateEvaluating
	c.state = StateDecide

	if !ShouldRebalance(cur, tgt, c.Threshold) {
		c.state = StateSkip
		c.state = StateIdle
		return cur, nil
	}

	blended := Blend(cur, tgt, c.AdaptationSpeed)
	report := buildReport(cur, blended, method, now)
	c.state = StateCommit
	c.state = StateIdle
	return blended, report
}

func buildReport(old, new allocator.Weights, method types.AllocationMethod, now time.Time) *types.AllocationReport {
	ids := make([]types.StrategyId, 0, len(new))
	seen := make(map[types.StrategyId]bool)
	for sid := range old {
		if !seen[sid] {
			ids = append(ids, sid)
			seen[sid] = true
		}
	}
	for sid := range new {
		if !seen[sid] {
			ids = append(ids, sid)
			seen[sid] = true
		}
	}

	deltas := make([]types.AllocationDelta, 0, len(ids))
	var totalChange float64
	for _, sid := range ids {
		o := old[sid]
		n := new[sid]
		delta := n - o
		var deltaPct float64
		if o != 0 {
			deltaPct = delta / o
		}
		deltas = append(deltas, types.AllocationDelta{
			StrategyId: sid,
			OldWeight:  o,
			NewWeight:  n,
			Delta:      delta,
			DeltaPct:   deltaPct,
		})
		if delta < 0 {
			totalChange -= delta
		} else {
			totalChange += delta
		}
	}

	return &types.AllocationReport{
		ID:          utils.GenerateID("rbl"),
		Timestamp:   now,
		Method:      method,
		Rebalanced:  true,
		TotalChange: totalChange,
		Deltas:      deltas,
	}
}
