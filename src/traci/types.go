package traci

// Reservation is a pending taxi ride request reported by SUMO
type Reservation struct {
	ID              string
	Persons         []string
	Group           string
	FromEdge        string
	ToEdge          string
	DepartPos       float64
	ArrivalPos      float64
	Depart          float64
	ReservationTime float64
}

// Version describes the TraCI API level and the SUMO build behind it
type Version struct {
	APIVersion int32
	Server     string
}
