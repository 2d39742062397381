package scenario

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/Jingwu-01/Robotaxi-backend/src/helpers"
	"github.com/Jingwu-01/Robotaxi-backend/src/sumo"

	"go.uber.org/zap"
)

// Charger is a roadside charging point pinned to a position on a lane
type Charger struct {
	ID       string
	LaneID   string
	Position float64
}

// placementRetryCap bounds the random search so a network with fewer
// lanes than requested chargers fails instead of spinning
const placementRetryCap = 1000

// PlaceChargers picks random charger locations, at most one per lane
func PlaceChargers(net *sumo.Network, numChargers int, rng *rand.Rand) ([]Charger, error) {
	lanes := net.AllLanes()
	chargers := make([]Charger, 0, numChargers)
	used := make(map[string]bool)
	retries := 0

	for len(chargers) < numChargers {
		if retries > placementRetryCap {
			return nil, fmt.Errorf("unable to find enough valid lanes for %d chargers", numChargers)
		}
		lane := lanes[rng.Intn(len(lanes))]
		if !used[lane.ID] {
			used[lane.ID] = true
			chargers = append(chargers, Charger{
				ID:       fmt.Sprintf("charger_%d", len(chargers)),
				LaneID:   lane.ID,
				Position: rng.Float64() * lane.Length,
			})
		}
		retries++
	}
	return chargers, nil
}

// ParseChargerCoordsFile reads "lane_id, position" lines
func ParseChargerCoordsFile(path string) ([]Charger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening charger coords file %s: %w", path, err)
	}
	defer f.Close()

	var chargers []Charger
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed charger line %q", line)
		}
		pos, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed charger position in %q: %w", line, err)
		}
		chargers = append(chargers, Charger{
			ID:       fmt.Sprintf("charger_%d", len(chargers)),
			LaneID:   helpers.StripQuotes(parts[0]),
			Position: pos,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading charger coords file: %w", err)
	}
	return chargers, nil
}

// ValidateChargers checks every charger against the network: the lane
// must exist and the position must fall within its length. One invalid
// entry rejects the whole set.
func ValidateChargers(net *sumo.Network, chargers []Charger, logger *zap.SugaredLogger) ([]Charger, error) {
	validated := make([]Charger, 0, len(chargers))
	for _, ch := range chargers {
		lane, ok := net.Lane(ch.LaneID)
		if !ok || ch.Position < 0 || ch.Position > lane.Length {
			logger.Warnf("Invalid charger location: lane_id=%s, position=%f", ch.LaneID, ch.Position)
			continue
		}
		validated = append(validated, ch)
	}
	if len(validated) != len(chargers) {
		return nil, fmt.Errorf("some charger locations were invalid")
	}
	return validated, nil
}

// RenderDetectorsXML renders chargers as induction loop detectors so
// they show up in the simulation output
func RenderDetectorsXML(chargers []Charger) []byte {
	var b strings.Builder
	b.WriteString("<additional>\n")
	for _, ch := range chargers {
		fmt.Fprintf(&b, "    <inductionLoop id=\"%s\" lane=\"%s\" pos=\"%.2f\" freq=\"10\" file=\"detector_output.xml\"/>\n",
			ch.ID, ch.LaneID, ch.Position)
	}
	b.WriteString("</additional>\n")
	return []byte(b.String())
}

// WriteDetectorsFile writes the charger detector file for a run
func WriteDetectorsFile(path string, chargers []Charger, logger *zap.SugaredLogger) error {
	if err := helpers.WriteFileAtomic(path, RenderDetectorsXML(chargers)); err != nil {
		return fmt.Errorf("error writing detectors file: %w", err)
	}
	logger.Info("Detectors file updated with chargers.")
	return nil
}
