package sumo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWGS84CentralMeridian(t *testing.T) {
	z := UTMZone{Zone: 15}

	// On the central meridian the false easting cancels out exactly
	lon, lat := z.ToWGS84(falseE, 3290000)
	assert.InDelta(t, -93.0, lon, 1e-6)
	assert.Greater(t, lat, 29.0)
	assert.Less(t, lat, 30.5)
}

func TestToWGS84Equator(t *testing.T) {
	z := UTMZone{Zone: 15}

	_, lat := z.ToWGS84(falseE, 0)
	assert.InDelta(t, 0.0, lat, 1e-6)
}

func TestToWGS84HoustonRange(t *testing.T) {
	z := UTMZone{Zone: 15}

	// Downtown Houston sits around easting 270 km, northing 3290 km
	lon, lat := z.ToWGS84(270000, 3290000)
	assert.Greater(t, lon, -95.8)
	assert.Less(t, lon, -95.0)
	assert.Greater(t, lat, 29.4)
	assert.Less(t, lat, 30.1)
}

func TestToWGS84Monotonic(t *testing.T) {
	z := UTMZone{Zone: 15}

	lonWest, _ := z.ToWGS84(269000, 3290000)
	lonEast, _ := z.ToWGS84(271000, 3290000)
	assert.Less(t, lonWest, lonEast)

	_, latSouth := z.ToWGS84(270000, 3289000)
	_, latNorth := z.ToWGS84(270000, 3291000)
	assert.Less(t, latSouth, latNorth)
}

func TestToWGS84SouthernHemisphere(t *testing.T) {
	north := UTMZone{Zone: 15}
	south := UTMZone{Zone: 15, South: true}

	// The same grid coordinates land below the equator once the false
	// northing is removed
	_, latN := north.ToWGS84(falseE, 3290000)
	_, latS := south.ToWGS84(falseE, 3290000)
	require.Greater(t, latN, 0.0)
	assert.Less(t, latS, 0.0)
}
