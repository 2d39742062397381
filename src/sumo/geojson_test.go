package sumo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportGeoJSON(t *testing.T) {
	net, err := ParseNetwork([]byte(sampleNet))
	require.NoError(t, err)

	raw, err := net.ExportGeoJSON(UTMZone{Zone: 15})
	require.NoError(t, err)

	var fc FeatureCollection
	require.NoError(t, json.Unmarshal(raw, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	// The internal edge's lane is excluded
	require.Len(t, fc.Features, 3)

	f := fc.Features[0]
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "edge1", f.Properties.ID)
	assert.Equal(t, "edge1_0", f.Properties.LaneID)
	assert.Equal(t, "13.89", f.Properties.Speed)
	assert.Equal(t, "pedestrian", f.Properties.Disallow)
	assert.Equal(t, "LineString", f.Geometry.Type)
	require.Len(t, f.Geometry.Coordinates, 2)

	// The net offset places the sample squarely in Houston
	for _, c := range f.Geometry.Coordinates {
		assert.Greater(t, c[0], -95.8)
		assert.Less(t, c[0], -95.0)
		assert.Greater(t, c[1], 29.4)
		assert.Less(t, c[1], 30.1)
	}
}

func TestExportGeoJSONEmptyFeatures(t *testing.T) {
	net := &Network{
		Edges: []Edge{{ID: "edge1", Lanes: []Lane{{ID: "edge1_0"}}}},
	}

	raw, err := net.ExportGeoJSON(UTMZone{Zone: 15})
	require.NoError(t, err)

	// A lane without shape points contributes no feature, and the
	// features array still marshals as [] rather than null
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(raw))
}
