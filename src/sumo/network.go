package sumo

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Network is the parsed form of a SUMO .net.xml file, reduced to what
// the backend needs: edges and lanes for placement, junctions and lane
// shapes for the map export.
type Network struct {
	Location  Location
	Edges     []Edge
	Junctions []Junction

	lanes      map[string]*Lane
	validEdges []string
}

type Location struct {
	NetOffsetX float64
	NetOffsetY float64
	Projection string
}

type Edge struct {
	ID       string
	Function string
	Lanes    []Lane
}

type Lane struct {
	ID       string
	EdgeID   string
	Index    int
	Speed    float64
	Length   float64
	Allow    string
	Disallow string
	Shape    []Point
}

type Junction struct {
	ID string
	X  float64
	Y  float64
}

type Point struct {
	X float64
	Y float64
}

// xml decoding targets

type xmlNet struct {
	Location  xmlLocation   `xml:"location"`
	Edges     []xmlEdge     `xml:"edge"`
	Junctions []xmlJunction `xml:"junction"`
}

type xmlLocation struct {
	NetOffset     string `xml:"netOffset,attr"`
	ProjParameter string `xml:"projParameter,attr"`
}

type xmlEdge struct {
	ID       string    `xml:"id,attr"`
	Function string    `xml:"function,attr"`
	Lanes    []xmlLane `xml:"lane"`
}

type xmlLane struct {
	ID       string `xml:"id,attr"`
	Index    int    `xml:"index,attr"`
	Speed    string `xml:"speed,attr"`
	Length   string `xml:"length,attr"`
	Allow    string `xml:"allow,attr"`
	Disallow string `xml:"disallow,attr"`
	Shape    string `xml:"shape,attr"`
}

type xmlJunction struct {
	ID string `xml:"id,attr"`
	X  string `xml:"x,attr"`
	Y  string `xml:"y,attr"`
}

// LoadNetwork reads and parses a .net.xml file
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading network file %s: %w", path, err)
	}
	return ParseNetwork(data)
}

// ParseNetwork parses .net.xml content
func ParseNetwork(data []byte) (*Network, error) {
	var raw xmlNet
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing network XML: %w", err)
	}

	net := &Network{
		lanes: make(map[string]*Lane),
	}

	if raw.Location.NetOffset != "" {
		parts := strings.Split(raw.Location.NetOffset, ",")
		if len(parts) == 2 {
			net.Location.NetOffsetX, _ = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			net.Location.NetOffsetY, _ = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		}
	}
	net.Location.Projection = raw.Location.ProjParameter

	for _, je := range raw.Junctions {
		x, _ := strconv.ParseFloat(je.X, 64)
		y, _ := strconv.ParseFloat(je.Y, 64)
		net.Junctions = append(net.Junctions, Junction{ID: je.ID, X: x, Y: y})
	}

	for _, xe := range raw.Edges {
		edge := Edge{ID: xe.ID, Function: xe.Function}
		for _, xl := range xe.Lanes {
			lane := Lane{
				ID:       xl.ID,
				EdgeID:   xe.ID,
				Index:    xl.Index,
				Allow:    xl.Allow,
				Disallow: xl.Disallow,
			}
			lane.Speed, _ = strconv.ParseFloat(xl.Speed, 64)
			lane.Length, _ = strconv.ParseFloat(xl.Length, 64)
			shape, err := parseShape(xl.Shape)
			if err != nil {
				return nil, fmt.Errorf("lane %s: %w", xl.ID, err)
			}
			lane.Shape = shape
			edge.Lanes = append(edge.Lanes, lane)
		}
		net.Edges = append(net.Edges, edge)
	}

	// Index lanes and collect drivable edges once
	for i := range net.Edges {
		e := &net.Edges[i]
		for j := range e.Lanes {
			net.lanes[e.Lanes[j].ID] = &e.Lanes[j]
		}
		if e.Function != "internal" && len(e.Lanes) > 0 {
			net.validEdges = append(net.validEdges, e.ID)
		}
	}

	if len(net.validEdges) == 0 {
		return nil, fmt.Errorf("network contains no drivable edges")
	}

	return net, nil
}

// parseShape parses a "x,y x,y ..." lane shape attribute
func parseShape(s string) ([]Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var pts []Point
	for _, pair := range strings.Fields(s) {
		xy := strings.Split(pair, ",")
		if len(xy) < 2 {
			return nil, fmt.Errorf("malformed shape point %q", pair)
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed shape point %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed shape point %q: %w", pair, err)
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	return pts, nil
}

// ValidEdges returns the IDs of non-internal edges with at least one
// lane, the only edges riders and taxis may be placed on
func (n *Network) ValidEdges() []string {
	return n.validEdges
}

// Lane looks up a lane by ID
func (n *Network) Lane(id string) (*Lane, bool) {
	l, ok := n.lanes[id]
	return l, ok
}

// AllLanes returns every lane of every non-internal edge
func (n *Network) AllLanes() []*Lane {
	var lanes []*Lane
	for i := range n.Edges {
		if n.Edges[i].Function == "internal" {
			continue
		}
		for j := range n.Edges[i].Lanes {
			lanes = append(lanes, &n.Edges[i].Lanes[j])
		}
	}
	return lanes
}
