package sim

import "fmt"

// Parameters are the five knobs the frontend controls. Field names
// match the JSON contract of the API.
type Parameters struct {
	NumCars     int     `json:"num_cars"`
	NumChargers int     `json:"num_chargers"`
	NumPeople   int     `json:"num_people"`
	TimeStep    float64 `json:"time_step"`
	SimLength   float64 `json:"sim_length"`
}

// Validate applies the same rules as the HTTP layer: at least one taxi
// and one rider, chargers may be zero, durations strictly positive.
func (p Parameters) Validate() error {
	if p.NumCars < 1 {
		return fmt.Errorf("Invalid value for num_cars")
	}
	if p.NumChargers < 0 {
		return fmt.Errorf("Invalid value for num_chargers")
	}
	if p.NumPeople < 1 {
		return fmt.Errorf("Invalid value for num_people")
	}
	if p.TimeStep <= 0 {
		return fmt.Errorf("Invalid value for time_step")
	}
	if p.SimLength <= 0 {
		return fmt.Errorf("Invalid value for sim_length")
	}
	return nil
}
