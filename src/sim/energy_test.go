package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnergyTrackerAccumulatesDeltas(t *testing.T) {
	tr := NewEnergyTracker()

	tr.Observe("taxi_0", 10)
	tr.Observe("taxi_0", 25)
	tr.Observe("taxi_0", 30)

	snap := tr.Snapshot()
	assert.InDelta(t, 30.0, snap["taxi_0"], 1e-9)
}

func TestEnergyTrackerClampsNegativeDeltas(t *testing.T) {
	tr := NewEnergyTracker()

	tr.Observe("taxi_0", 100)
	// Device reset: reading drops back below the previous value
	tr.Observe("taxi_0", 20)
	tr.Observe("taxi_0", 50)

	snap := tr.Snapshot()
	assert.InDelta(t, 130.0, snap["taxi_0"], 1e-9)
}

func TestEnergyTrackerTracksVehiclesIndependently(t *testing.T) {
	tr := NewEnergyTracker()

	tr.Observe("taxi_0", 5)
	tr.Observe("taxi_1", 7)
	tr.Observe("taxi_0", 6)

	snap := tr.Snapshot()
	assert.InDelta(t, 6.0, snap["taxi_0"], 1e-9)
	assert.InDelta(t, 7.0, snap["taxi_1"], 1e-9)
}

func TestEnergyTrackerReset(t *testing.T) {
	tr := NewEnergyTracker()
	tr.Observe("taxi_0", 42)
	tr.Reset()

	require.Empty(t, tr.Snapshot())

	// After a reset the first reading is again treated as the baseline
	tr.Observe("taxi_0", 10)
	assert.InDelta(t, 10.0, tr.Snapshot()["taxi_0"], 1e-9)
}

func TestEnergyTrackerSnapshotIsACopy(t *testing.T) {
	tr := NewEnergyTracker()
	tr.Observe("taxi_0", 1)

	snap := tr.Snapshot()
	snap["taxi_0"] = 999

	assert.InDelta(t, 1.0, tr.Snapshot()["taxi_0"], 1e-9)
}
