package sim

import (
	"fmt"
	"strconv"

	"github.com/Jingwu-01/Robotaxi-backend/src/traci"
)

// fakeTraCI is an in-memory stand-in for a TraCI session. Tests preload
// its state and inspect the mutations the code under test performs.
type fakeTraCI struct {
	simTime      float64
	steps        int
	routes       []string
	vehicles     []string
	persons      []string
	personInVeh  map[string]string
	params       map[string]string // "vehID|key" -> value
	consumption  map[string]float64
	reservations []traci.Reservation
	laneOf       map[string]string
	lanePosOf    map[string]float64

	dispatched   map[string][]string // vehID -> reservation IDs
	failDispatch map[string]bool     // vehIDs whose dispatch is rejected
	removed      []string
}

func newFakeTraCI() *fakeTraCI {
	return &fakeTraCI{
		personInVeh:  make(map[string]string),
		params:       make(map[string]string),
		consumption:  make(map[string]float64),
		laneOf:       make(map[string]string),
		lanePosOf:    make(map[string]float64),
		dispatched:   make(map[string][]string),
		failDispatch: make(map[string]bool),
	}
}

func paramKey(vehID, key string) string { return vehID + "|" + key }

func (f *fakeTraCI) SimulationStep() error {
	f.steps++
	return nil
}

func (f *fakeTraCI) SimulationTime() (float64, error) { return f.simTime, nil }

func (f *fakeTraCI) AddRoute(routeID string, edges []string) error {
	f.routes = append(f.routes, routeID)
	return nil
}

func (f *fakeTraCI) RouteIDs() ([]string, error) { return f.routes, nil }

func (f *fakeTraCI) AddVehicle(vehID, routeID, typeID string) error {
	f.vehicles = append(f.vehicles, vehID)
	return nil
}

func (f *fakeTraCI) RemoveVehicle(vehID string) error {
	f.removed = append(f.removed, vehID)
	return nil
}

func (f *fakeTraCI) VehicleIDs() ([]string, error) { return f.vehicles, nil }

func (f *fakeTraCI) LaneID(vehID string) (string, error) {
	lane, ok := f.laneOf[vehID]
	if !ok {
		return "", &traci.Error{Command: 0xa4, Result: 0xFF, Description: "unknown vehicle"}
	}
	return lane, nil
}

func (f *fakeTraCI) LanePosition(vehID string) (float64, error) {
	return f.lanePosOf[vehID], nil
}

func (f *fakeTraCI) ElectricityConsumption(vehID string) (float64, error) {
	v, ok := f.consumption[vehID]
	if !ok {
		return 0, &traci.Error{Command: 0xa4, Result: 0xFF, Description: "no battery device"}
	}
	return v, nil
}

func (f *fakeTraCI) VehicleParameter(vehID, key string) (string, error) {
	v, ok := f.params[paramKey(vehID, key)]
	if !ok {
		return "", &traci.Error{Command: 0xa4, Result: 0xFF, Description: "unknown parameter"}
	}
	return v, nil
}

func (f *fakeTraCI) SetVehicleParameter(vehID, key, value string) error {
	f.params[paramKey(vehID, key)] = value
	return nil
}

func (f *fakeTraCI) DispatchTaxi(vehID string, reservationIDs []string) error {
	if f.failDispatch[vehID] {
		return &traci.Error{Command: 0xc4, Result: 0xFF, Description: "no route to pickup"}
	}
	f.dispatched[vehID] = reservationIDs
	return nil
}

func (f *fakeTraCI) PersonIDs() ([]string, error) { return f.persons, nil }

func (f *fakeTraCI) PersonVehicle(personID string) (string, error) {
	return f.personInVeh[personID], nil
}

func (f *fakeTraCI) AddPerson(personID, edgeID string, pos, depart float64) error {
	f.persons = append(f.persons, personID)
	return nil
}

func (f *fakeTraCI) AppendDrivingStage(personID, toEdge, lines string) error { return nil }

func (f *fakeTraCI) TaxiReservations(stateFilter int32) ([]traci.Reservation, error) {
	return f.reservations, nil
}

// setBattery is a test convenience for priming battery state
func (f *fakeTraCI) setBattery(vehID string, actual, max float64) {
	f.params[paramKey(vehID, batteryActualParam)] = strconv.FormatFloat(actual, 'f', -1, 64)
	f.params[paramKey(vehID, batteryMaxParam)] = strconv.FormatFloat(max, 'f', -1, 64)
}

// battery reads the actual capacity back out
func (f *fakeTraCI) battery(vehID string) (float64, error) {
	raw, ok := f.params[paramKey(vehID, batteryActualParam)]
	if !ok {
		return 0, fmt.Errorf("no battery for %s", vehID)
	}
	return strconv.ParseFloat(raw, 64)
}

var _ TraCI = (*fakeTraCI)(nil)
