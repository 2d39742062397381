package sim

import "github.com/Jingwu-01/Robotaxi-backend/src/traci"

// TraCI is the slice of the TraCI client the runner drives. The runner
// is the only goroutine that ever holds one; tests substitute a fake.
type TraCI interface {
	SimulationStep() error
	SimulationTime() (float64, error)

	AddRoute(routeID string, edges []string) error
	RouteIDs() ([]string, error)

	AddVehicle(vehID, routeID, typeID string) error
	RemoveVehicle(vehID string) error
	VehicleIDs() ([]string, error)
	LaneID(vehID string) (string, error)
	LanePosition(vehID string) (float64, error)
	ElectricityConsumption(vehID string) (float64, error)
	VehicleParameter(vehID, key string) (string, error)
	SetVehicleParameter(vehID, key, value string) error
	DispatchTaxi(vehID string, reservationIDs []string) error

	PersonIDs() ([]string, error)
	PersonVehicle(personID string) (string, error)
	AddPerson(personID, edgeID string, pos, depart float64) error
	AppendDrivingStage(personID, toEdge, lines string) error
	TaxiReservations(stateFilter int32) ([]traci.Reservation, error)
}

var _ TraCI = (*traci.Conn)(nil)
