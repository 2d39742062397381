package sim

import "sync"

// EnergyTracker accumulates per-vehicle electric energy use in kJ from
// the consumption readings TraCI reports each step. Readings can reset
// when a vehicle's device restarts, so negative deltas count as zero.
type EnergyTracker struct {
	mu         sync.Mutex
	cumulative map[string]float64
	previous   map[string]float64
}

func NewEnergyTracker() *EnergyTracker {
	return &EnergyTracker{
		cumulative: make(map[string]float64),
		previous:   make(map[string]float64),
	}
}

// Reset clears all accumulated state for a fresh run
func (t *EnergyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumulative = make(map[string]float64)
	t.previous = make(map[string]float64)
}

// Observe folds one consumption reading into the running totals
func (t *EnergyTracker) Observe(vehID string, current float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delta := current - t.previous[vehID]
	if delta < 0 {
		delta = 0
	}
	t.cumulative[vehID] += delta
	t.previous[vehID] = current
}

// Snapshot returns a copy of the cumulative totals, safe to hand to the
// HTTP layer while the run keeps going
func (t *EnergyTracker) Snapshot() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.cumulative))
	for id, v := range t.cumulative {
		out[id] = v
	}
	return out
}
