package sim

import (
	"errors"

	"github.com/Jingwu-01/Robotaxi-backend/src/traci"

	"go.uber.org/zap"
)

// dispatcher tracks which taxi serves which reservation across steps.
// A taxi whose dispatch was rejected (typically no route to the pickup
// edge) is marked invalid and never tried again.
type dispatcher struct {
	assignments map[string]traci.Reservation // taxi ID -> reservation
	invalid     map[string]bool
	served      int
	logger      *zap.SugaredLogger
}

func newDispatcher(logger *zap.SugaredLogger) *dispatcher {
	return &dispatcher{
		assignments: make(map[string]traci.Reservation),
		invalid:     make(map[string]bool),
		logger:      logger,
	}
}

// assign matches free taxis to reservations nobody serves yet
func (d *dispatcher) assign(c TraCI, taxiIDs []string) error {
	reservations, err := c.TaxiReservations(0)
	if err != nil {
		return err
	}

	assignedRes := make(map[string]bool, len(d.assignments))
	for _, res := range d.assignments {
		assignedRes[res.ID] = true
	}

	for _, res := range reservations {
		if assignedRes[res.ID] {
			continue
		}
		for _, taxiID := range taxiIDs {
			if _, busy := d.assignments[taxiID]; busy || d.invalid[taxiID] {
				continue
			}
			if err := c.DispatchTaxi(taxiID, []string{res.ID}); err != nil {
				var terr *traci.Error
				if errors.As(err, &terr) {
					d.logger.Infof("Skipping %s due to route error: %v", taxiID, terr)
					d.invalid[taxiID] = true
					break
				}
				return err
			}
			d.assignments[taxiID] = res
			assignedRes[res.ID] = true
			d.logger.Infof("Dispatched %s to reservation %s", taxiID, res.ID)
			break
		}
	}
	return nil
}

// monitor logs ride progress and retires assignments whose rider has
// left the simulation (dropped off)
func (d *dispatcher) monitor(c TraCI) error {
	if len(d.assignments) == 0 {
		return nil
	}
	personIDs, err := c.PersonIDs()
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(personIDs))
	for _, id := range personIDs {
		present[id] = true
	}

	for taxiID, res := range d.assignments {
		if len(res.Persons) == 0 {
			delete(d.assignments, taxiID)
			continue
		}
		personID := res.Persons[0]
		if !present[personID] {
			d.logger.Infof("Person %s has been dropped off by taxi %s.", personID, taxiID)
			delete(d.assignments, taxiID)
			d.served++
			continue
		}
		vehicle, err := c.PersonVehicle(personID)
		if err != nil {
			d.logger.Debugf("Error checking vehicle of person %s: %v", personID, err)
			continue
		}
		if vehicle == taxiID {
			d.logger.Infof("Person %s is inside taxi %s.", personID, taxiID)
		} else {
			d.logger.Infof("Person %s is waiting for taxi %s.", personID, taxiID)
		}
	}
	return nil
}

// invalidCount reports how many taxis were sidelined by route errors
func (d *dispatcher) invalidCount() int {
	return len(d.invalid)
}
