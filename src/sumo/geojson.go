package sumo

import (
	"encoding/json"
	"strconv"
)

// GeoJSON output types for the frontend map layer. One LineString per
// lane.

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   Geometry          `json:"geometry"`
}

type FeatureProperties struct {
	ID       string `json:"id"`
	LaneID   string `json:"lane_id"`
	Speed    string `json:"speed"`
	Allow    string `json:"allow"`
	Disallow string `json:"disallow"`
}

type Geometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// ExportGeoJSON renders the network's lane geometry as a WGS84
// FeatureCollection. Internal edges are skipped; network coordinates
// are shifted back by the net offset before the UTM inverse projection.
func (n *Network) ExportGeoJSON(zone UTMZone) ([]byte, error) {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}

	for _, edge := range n.Edges {
		if edge.Function == "internal" {
			continue
		}
		for _, lane := range edge.Lanes {
			if len(lane.Shape) == 0 {
				continue
			}
			coords := make([][2]float64, 0, len(lane.Shape))
			for _, pt := range lane.Shape {
				lon, lat := zone.ToWGS84(
					pt.X-n.Location.NetOffsetX,
					pt.Y-n.Location.NetOffsetY,
				)
				coords = append(coords, [2]float64{lon, lat})
			}
			fc.Features = append(fc.Features, Feature{
				Type: "Feature",
				Properties: FeatureProperties{
					ID:       edge.ID,
					LaneID:   lane.ID,
					Speed:    strconv.FormatFloat(lane.Speed, 'f', -1, 64),
					Allow:    lane.Allow,
					Disallow: lane.Disallow,
				},
				Geometry: Geometry{
					Type:        "LineString",
					Coordinates: coords,
				},
			})
		}
	}

	return json.Marshal(fc)
}
