package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/Jingwu-01/Robotaxi-backend/src/sim"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/start_simulation", s.handleStartSimulation)
	mux.HandleFunc("POST /api/stop_simulation", s.handleStopSimulation)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/vehicles", s.handleVehicles)
	mux.HandleFunc("POST /api/add_vehicle", s.handleAddVehicle)
	mux.HandleFunc("POST /api/add_person", s.handleAddPerson)
	mux.HandleFunc("POST /api/add_charger", s.handleAddCharger)
	mux.HandleFunc("POST /api/change_parameters", s.handleChangeParameters)
	mux.HandleFunc("GET /api/network", s.handleNetwork)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)

	return s.withCORS(s.withAuth(s.withLogging(mux)))
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// decodeBody reads the request body into a generic map. An absent or
// unreadable body is reported to the caller as "no input data".
func decodeBody(r *http.Request) (map[string]any, bool) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		return nil, false
	}
	return data, true
}

// intField requires the value to be present, numeric and integral
func intField(data map[string]any, key string) (int, bool) {
	v, ok := data[key].(float64)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// numField accepts any numeric value
func numField(data map[string]any, key string) (float64, bool) {
	v, ok := data[key].(float64)
	return v, ok
}

// parseParameters validates field by field, returning the first
// offending field's error message
func parseParameters(data map[string]any) (sim.Parameters, error) {
	var p sim.Parameters
	var ok bool

	if p.NumCars, ok = intField(data, "num_cars"); !ok || p.NumCars < 1 {
		return p, fmt.Errorf("Invalid value for num_cars")
	}
	if p.NumChargers, ok = intField(data, "num_chargers"); !ok || p.NumChargers < 0 {
		return p, fmt.Errorf("Invalid value for num_chargers")
	}
	if p.NumPeople, ok = intField(data, "num_people"); !ok || p.NumPeople < 1 {
		return p, fmt.Errorf("Invalid value for num_people")
	}
	if p.TimeStep, ok = numField(data, "time_step"); !ok || p.TimeStep <= 0 {
		return p, fmt.Errorf("Invalid value for time_step")
	}
	if p.SimLength, ok = numField(data, "sim_length"); !ok || p.SimLength <= 0 {
		return p, fmt.Errorf("Invalid value for sim_length")
	}
	return p, p.Validate()
}

// handleStartSimulation starts the SUMO simulation with provided
// parameters. The starting flag stays held from the running check to
// the runner assignment so concurrent starts cannot both launch SUMO.
func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.starting || (s.runner != nil && s.runner.Running()) {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "Simulation already running"})
		return
	}
	s.starting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	data, ok := decodeBody(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("No input data provided"))
		return
	}

	params, err := parseParameters(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	runner := sim.NewRunner(s.runnerCfg, s.network, params, s.logger)

	s.mu.Lock()
	s.params = params
	s.runner = runner
	s.mu.Unlock()

	runner.Start()
	s.logger.Infow("Simulation started", "runID", runner.RunID(), "params", params)

	writeJSON(w, http.StatusOK, map[string]string{"status": "Simulation started"})
}

// handleStopSimulation stops the ongoing SUMO simulation
func (s *Server) handleStopSimulation(w http.ResponseWriter, r *http.Request) {
	runner := s.activeRunner()
	if runner == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "No simulation running"})
		return
	}
	runner.Stop()
	runner.Join()
	writeJSON(w, http.StatusOK, map[string]string{"status": "Simulation stopped"})
}

// handleStatus retrieves the current status of the simulation
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runner := s.activeRunner()
	if runner == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "Simulation not running"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "Simulation running",
		"current_time": runner.SimTime(),
	})
}

type vehicleEnergy struct {
	EnergyConsumptionKJ float64 `json:"energy_consumption_kJ"`
}

// handleVehicles fetches energy consumption of all active vehicles
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	runner := s.activeRunner()
	if runner == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Simulation not running"))
		return
	}
	snapshot := runner.EnergySnapshot()
	vehicles := make(map[string]vehicleEnergy, len(snapshot))
	for id, energy := range snapshot {
		vehicles[id] = vehicleEnergy{EnergyConsumptionKJ: math.Round(energy*100) / 100}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles})
}

// handleAddVehicle queues a new vehicle for a randomly selected
// existing route
func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	runner := s.activeRunner()
	if runner == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Simulation not running"))
		return
	}
	vehicleID := s.nextVehicleID()
	if err := runner.AddVehicleOnRandomRoute(vehicleID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     fmt.Sprintf("Vehicle %s queued for insertion", vehicleID),
		"vehicle_id": vehicleID,
	})
}

// handleAddPerson adds riders to the running simulation
func (s *Server) handleAddPerson(w http.ResponseWriter, r *http.Request) {
	runner := s.activeRunner()
	if runner == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Simulation not running"))
		return
	}
	count := 1
	if data, ok := decodeBody(r); ok {
		if n, ok := intField(data, "num_people"); ok && n > 0 {
			count = n
		}
	}
	if err := runner.AddPeople(count); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Adding %d people to the simulation.", count),
	})
}

// handleAddCharger adds chargers to the running simulation
func (s *Server) handleAddCharger(w http.ResponseWriter, r *http.Request) {
	runner := s.activeRunner()
	if runner == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Simulation not running"))
		return
	}
	count := 1
	if data, ok := decodeBody(r); ok {
		if n, ok := intField(data, "num_chargers"); ok && n > 0 {
			count = n
		}
	}
	if err := runner.AddChargers(count); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Adding %d chargers to the simulation.", count),
	})
}

// handleChangeParameters updates simulation parameters. A running
// simulation reconciles its fleet against the new num_cars; the rest
// applies to the next run.
func (s *Server) handleChangeParameters(w http.ResponseWriter, r *http.Request) {
	data, ok := decodeBody(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("No input data provided"))
		return
	}

	params, err := parseParameters(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	s.mu.Lock()
	s.params = params
	runner := s.runner
	s.mu.Unlock()

	if runner != nil && runner.Running() {
		runner.SetParams(params)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "Parameters changed successfully",
		"num_cars":     params.NumCars,
		"num_chargers": params.NumChargers,
		"num_people":   params.NumPeople,
		"time_step":    params.TimeStep,
		"sim_length":   params.SimLength,
	})
}

// handleNetwork serves the road network as GeoJSON for the map layer
func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(s.networkJSON)
}

// handleListRuns lists the IDs of persisted run records
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListRunIDs()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": ids})
}

// handleGetRun returns one persisted run record
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.LoadRunRecord(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("Run not found"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
