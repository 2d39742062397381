package scenario

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/Jingwu-01/Robotaxi-backend/src/helpers"
	"github.com/Jingwu-01/Robotaxi-backend/src/sumo"

	"go.uber.org/zap"
)

// Ride is one rider's taxi request: board at the pickup edge, leave at
// the dropoff edge
type Ride struct {
	PersonID    string
	PickupEdge  string
	DropoffEdge string
}

// PlanRides draws pickup and dropoff edges for the requested number of
// riders. Pickup and dropoff are always distinct edges.
func PlanRides(net *sumo.Network, numPeople int, rng *rand.Rand) []Ride {
	validEdges := net.ValidEdges()
	rides := make([]Ride, 0, numPeople)
	for i := 0; i < numPeople; i++ {
		pickup := validEdges[rng.Intn(len(validEdges))]
		dropoff := validEdges[rng.Intn(len(validEdges))]
		for dropoff == pickup {
			dropoff = validEdges[rng.Intn(len(validEdges))]
		}
		rides = append(rides, Ride{
			PersonID:    fmt.Sprintf("person_%d", i),
			PickupEdge:  pickup,
			DropoffEdge: dropoff,
		})
	}
	return rides
}

// RenderPersonsXML renders rides as a SUMO additional file, one person
// with a taxi ride stage each
func RenderPersonsXML(rides []Ride) []byte {
	var b strings.Builder
	b.WriteString("<additional>\n")
	for _, r := range rides {
		fmt.Fprintf(&b, `
    <person id="%s" depart="0.00">
        <ride from="%s" to="%s" lines="taxi"/>
    </person>
        `, r.PersonID, r.PickupEdge, r.DropoffEdge)
	}
	b.WriteString("\n</additional>\n")
	return []byte(b.String())
}

// WritePersonsFile writes the persons additional file for a run
func WritePersonsFile(path string, rides []Ride, logger *zap.SugaredLogger) error {
	for _, r := range rides {
		logger.Infof("Person %s added with ride from %s to %s", r.PersonID, r.PickupEdge, r.DropoffEdge)
	}
	if err := helpers.WriteFileAtomic(path, RenderPersonsXML(rides)); err != nil {
		return fmt.Errorf("error writing persons file: %w", err)
	}
	logger.Infof("Persons written to '%s'", path)
	return nil
}
