package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Jingwu-01/Robotaxi-backend/src/helpers"
	"github.com/Jingwu-01/Robotaxi-backend/src/scenario"
	"github.com/Jingwu-01/Robotaxi-backend/src/sumo"
	"github.com/Jingwu-01/Robotaxi-backend/src/traci"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

// Config wires a runner to its SUMO installation and its consumers
type Config struct {
	SumoBinary string
	SumoConfig string
	UseGUI     bool
	TraCIHost  string
	TraCIPort  int

	// OnComplete receives the run summary after the simulation has
	// fully shut down. May be nil.
	OnComplete func(RunSummary)
}

// RunSummary is everything worth keeping once a run has ended
type RunSummary struct {
	RunID        string
	Params       Parameters
	StartedAt    time.Time
	EndedAt      time.Time
	FinalSimTime float64
	Steps        int
	Energy       map[string]float64
	RidersServed int
	InvalidTaxis int
}

type commandKind int

const (
	cmdAddTaxis commandKind = iota
	cmdAddPeople
	cmdAddChargers
	cmdAddVehicle
)

type command struct {
	kind  commandKind
	count int
	vehID string
}

// Runner drives one simulation run on its own goroutine. The HTTP layer
// talks to it only through the command queue and the snapshot getters;
// the TraCI connection never leaves the run loop.
type Runner struct {
	cfg    Config
	net    *sumo.Network
	logger *zap.SugaredLogger

	runID    string
	energy   *EnergyTracker
	commands chan command
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
	rng      *rand.Rand

	mu      sync.Mutex
	params  Parameters
	running bool
	simTime float64
}

// NewRunner prepares a runner for a single run. Parameters must already
// be validated.
func NewRunner(cfg Config, net *sumo.Network, params Parameters, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		cfg:      cfg,
		net:      net,
		logger:   logger,
		runID:    helpers.GenerateUUID(),
		energy:   NewEnergyTracker(),
		commands: make(chan command, 64),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		params:   params,
	}
}

// RunID identifies this run in logs and the results store
func (r *Runner) RunID() string {
	return r.runID
}

// Start launches the run loop
func (r *Runner) Start() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	go r.run()
}

// Stop requests the run loop to wind down after the current step
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Join blocks until the run loop has fully exited
func (r *Runner) Join() {
	<-r.doneCh
}

// Running reports whether the run loop is still alive
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SimTime is the last simulation time the loop observed, in seconds
func (r *Runner) SimTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.simTime
}

// EnergySnapshot copies the cumulative per-vehicle energy totals
func (r *Runner) EnergySnapshot() map[string]float64 {
	return r.energy.Snapshot()
}

// Params returns the current parameter set
func (r *Runner) Params() Parameters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// SetParams swaps the live parameter set. The fleet reconcile in the
// run loop picks the new num_cars up on the next step.
func (r *Runner) SetParams(p Parameters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = p
}

// AddTaxis queues additional taxis for the next step
func (r *Runner) AddTaxis(n int) error {
	return r.enqueue(command{kind: cmdAddTaxis, count: n})
}

// AddPeople queues additional riders for the next step
func (r *Runner) AddPeople(n int) error {
	return r.enqueue(command{kind: cmdAddPeople, count: n})
}

// AddChargers queues additional chargers for the next step
func (r *Runner) AddChargers(n int) error {
	return r.enqueue(command{kind: cmdAddChargers, count: n})
}

// AddVehicleOnRandomRoute queues insertion of one vehicle with the
// given ID on a randomly selected existing route
func (r *Runner) AddVehicleOnRandomRoute(vehID string) error {
	return r.enqueue(command{kind: cmdAddVehicle, count: 1, vehID: vehID})
}

func (r *Runner) enqueue(cmd command) error {
	if !r.Running() {
		return fmt.Errorf("simulation is not running")
	}
	select {
	case r.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

func (r *Runner) setSimTime(t float64) {
	r.mu.Lock()
	r.simTime = t
	r.mu.Unlock()
}

// run is the whole lifecycle of one simulation: scenario files, SUMO
// launch, step loop, shutdown, summary.
func (r *Runner) run() {
	defer close(r.doneCh)

	startedAt := time.Now()
	params := r.Params()
	cfgDir := filepath.Dir(r.cfg.SumoConfig)

	disp := newDispatcher(r.logger)
	steps := 0

	defer func() {
		r.mu.Lock()
		r.running = false
		finalTime := r.simTime
		r.mu.Unlock()

		summary := RunSummary{
			RunID:        r.runID,
			Params:       params,
			StartedAt:    startedAt,
			EndedAt:      time.Now(),
			FinalSimTime: finalTime,
			Steps:        steps,
			Energy:       r.energy.Snapshot(),
			RidersServed: disp.served,
			InvalidTaxis: disp.invalidCount(),
		}
		r.logSummary(summary)
		if r.cfg.OnComplete != nil {
			r.cfg.OnComplete(summary)
		}
		r.logger.Info("Simulation ended.")
	}()

	r.logger.Infof("Starting simulation with parameters: %+v", params)

	// Charger placement happens before launch so the detector file is
	// on disk when SUMO reads its additional files
	var chargers []scenario.Charger
	chargerSeq := 0
	if params.NumChargers > 0 {
		placed, err := scenario.PlaceChargers(r.net, params.NumChargers, r.rng)
		if err != nil {
			r.logger.Errorw("Charger placement failed", "error", err)
			return
		}
		chargers, err = scenario.ValidateChargers(r.net, placed, r.logger)
		if err != nil {
			r.logger.Errorw("Charger validation failed", "error", err)
			return
		}
		if err := scenario.WriteDetectorsFile(filepath.Join(cfgDir, "detectors.add.xml"), chargers, r.logger); err != nil {
			r.logger.Errorw("Writing detectors file failed", "error", err)
			return
		}
		chargerSeq = len(chargers)
	} else {
		r.logger.Info("No chargers to set up.")
	}

	rides := scenario.PlanRides(r.net, params.NumPeople, r.rng)
	if err := scenario.WritePersonsFile(filepath.Join(cfgDir, "persons.add.xml"), rides, r.logger); err != nil {
		r.logger.Errorw("Writing persons file failed", "error", err)
		return
	}
	personSeq := len(rides)

	additional := []string{}
	if helpers.FileExists(filepath.Join(cfgDir, "vehicle_type.add.xml"), *r.logger) {
		additional = append(additional, "vehicle_type.add.xml")
	}
	additional = append(additional, "persons.add.xml")
	if len(chargers) > 0 {
		additional = append(additional, "detectors.add.xml")
	}

	proc, err := sumo.Launch(sumo.LaunchOptions{
		Binary:          r.cfg.SumoBinary,
		GUI:             r.cfg.UseGUI,
		Config:          r.cfg.SumoConfig,
		StepLength:      params.TimeStep,
		AdditionalFiles: additional,
		Host:            r.cfg.TraCIHost,
		Port:            r.cfg.TraCIPort,
	}, r.logger)
	if err != nil {
		r.logger.Errorw("SUMO launch failed", "error", err)
		return
	}
	defer func() {
		if err := proc.Stop(); err != nil {
			r.logger.Warnw("Error stopping SUMO", "error", err)
		}
	}()

	c := proc.Conn

	taxiIDs, taxiSeq := r.spawnTaxis(c, nil, 0, params.NumCars)

	r.logger.Info("Starting simulation...")

loop:
	for {
		select {
		case <-r.stopCh:
			break loop
		default:
		}

		if r.SimTime() >= r.Params().SimLength {
			break loop
		}

		if err := c.SimulationStep(); err != nil {
			r.logger.Errorw("TraCI encountered an error", "error", err)
			break loop
		}
		steps++

		if t, err := c.SimulationTime(); err == nil {
			r.setSimTime(t)
		}

		// Runtime additions queued by the API since the last step
	drain:
		for {
			select {
			case cmd := <-r.commands:
				switch cmd.kind {
				case cmdAddTaxis:
					taxiIDs, taxiSeq = r.spawnTaxis(c, taxiIDs, taxiSeq, cmd.count)
				case cmdAddPeople:
					personSeq = r.addPeople(c, personSeq, cmd.count)
				case cmdAddChargers:
					chargers, chargerSeq = r.addChargers(chargers, chargerSeq, cmd.count)
				case cmdAddVehicle:
					r.addVehicleOnRoute(c, cmd.vehID)
				}
			default:
				break drain
			}
		}

		// Keep the fleet in line with the live num_cars parameter
		want := r.Params().NumCars
		if len(taxiIDs) < want {
			added := want - len(taxiIDs)
			taxiIDs, taxiSeq = r.spawnTaxis(c, taxiIDs, taxiSeq, added)
			r.logger.Infof("Added %d taxis to match the updated num_cars.", added)
		} else if len(taxiIDs) > want {
			for len(taxiIDs) > want {
				taxiID := taxiIDs[len(taxiIDs)-1]
				taxiIDs = taxiIDs[:len(taxiIDs)-1]
				if err := c.RemoveVehicle(taxiID); err != nil {
					r.logger.Warnf("Error removing taxi %s: %v", taxiID, err)
					continue
				}
				r.logger.Infof("Removed taxi %s to match the updated num_cars.", taxiID)
			}
		}

		if err := disp.assign(c, taxiIDs); err != nil {
			r.logger.Errorw("TraCI encountered an error", "error", err)
			break loop
		}
		if err := disp.monitor(c); err != nil {
			r.logger.Errorw("TraCI encountered an error", "error", err)
			break loop
		}

		applyCharging(c, taxiIDs, chargers, r.logger)
		applyBatteryDrain(c, taxiIDs, r.logger)

		r.observeEnergy(c)

		// Pace the loop so the GUI stays responsive
		time.Sleep(10 * time.Millisecond)
	}
}

// spawnTaxis inserts n taxis on random valid edges, each on its own
// single-edge route with a fresh battery
func (r *Runner) spawnTaxis(c TraCI, taxiIDs []string, seq, n int) ([]string, int) {
	validEdges := r.net.ValidEdges()
	for i := 0; i < n; i++ {
		taxiID := fmt.Sprintf("taxi_%d", seq)
		startEdge := validEdges[r.rng.Intn(len(validEdges))]
		routeID := fmt.Sprintf("route_%s", taxiID)

		if err := c.AddRoute(routeID, []string{startEdge}); err != nil {
			r.logger.Warnf("Error adding route for taxi %s: %v", taxiID, err)
			continue
		}
		if err := c.AddVehicle(taxiID, routeID, "taxi"); err != nil {
			r.logger.Warnf("Error spawning taxi %s: %v", taxiID, err)
			continue
		}
		if err := c.SetVehicleParameter(taxiID, batteryActualParam, initialBatteryCapacity); err != nil {
			r.logger.Debugf("Error priming battery of taxi %s: %v", taxiID, err)
		}
		r.logger.Infof("Spawned taxi %s at edge %s", taxiID, startEdge)
		taxiIDs = append(taxiIDs, taxiID)
		seq++
	}
	return taxiIDs, seq
}

// addPeople inserts riders at runtime with a depart one step in the
// future so SUMO accepts the insertion
func (r *Runner) addPeople(c TraCI, seq, n int) int {
	validEdges := r.net.ValidEdges()
	depart := r.SimTime() + r.Params().TimeStep
	for i := 0; i < n; i++ {
		personID := fmt.Sprintf("person_%d", seq)
		pickup := validEdges[r.rng.Intn(len(validEdges))]
		dropoff := validEdges[r.rng.Intn(len(validEdges))]
		for dropoff == pickup {
			dropoff = validEdges[r.rng.Intn(len(validEdges))]
		}
		if err := c.AddPerson(personID, pickup, 0, depart); err != nil {
			r.logger.Warnf("Error adding person %s: %v", personID, err)
			continue
		}
		if err := c.AppendDrivingStage(personID, dropoff, "taxi"); err != nil {
			r.logger.Warnf("Error adding ride stage for person %s: %v", personID, err)
			continue
		}
		r.logger.Infof("Added person %s dynamically with ride from %s to %s", personID, pickup, dropoff)
		seq++
	}
	return seq
}

// addChargers activates chargers at random lane positions at runtime.
// Runtime chargers exist only in the charging model; SUMO has already
// read its detector file.
func (r *Runner) addChargers(chargers []scenario.Charger, seq, n int) ([]scenario.Charger, int) {
	lanes := r.net.AllLanes()
	for i := 0; i < n; i++ {
		lane := lanes[r.rng.Intn(len(lanes))]
		ch := scenario.Charger{
			ID:       fmt.Sprintf("charger_%d", seq),
			LaneID:   lane.ID,
			Position: r.rng.Float64() * lane.Length,
		}
		chargers = append(chargers, ch)
		seq++
		r.logger.Infof("Activated charger %s at lane %s, position %f", ch.ID, ch.LaneID, ch.Position)
	}
	return chargers, seq
}

// addVehicleOnRoute inserts one vehicle on a random existing route
func (r *Runner) addVehicleOnRoute(c TraCI, vehID string) {
	routes, err := c.RouteIDs()
	if err != nil {
		r.logger.Warnf("Error listing routes for vehicle %s: %v", vehID, err)
		return
	}
	if len(routes) == 0 {
		r.logger.Warnf("No routes available in the simulation, dropping vehicle %s", vehID)
		return
	}
	routeID := routes[r.rng.Intn(len(routes))]
	if err := c.AddVehicle(vehID, routeID, "taxi"); err != nil {
		r.logger.Warnf("Error adding vehicle %s to route %s: %v", vehID, routeID, err)
		return
	}
	r.logger.Infof("Vehicle %s added to route %s", vehID, routeID)
}

// observeEnergy folds the current consumption of every active vehicle
// into the cumulative totals. Vehicles without a battery device are
// skipped.
func (r *Runner) observeEnergy(c TraCI) {
	vehIDs, err := c.VehicleIDs()
	if err != nil {
		r.logger.Debugf("Error listing vehicles for energy accounting: %v", err)
		return
	}
	for _, vehID := range vehIDs {
		consumption, err := c.ElectricityConsumption(vehID)
		if err != nil {
			var terr *traci.Error
			if errors.As(err, &terr) {
				continue // non-electric vehicle
			}
			r.logger.Debugf("Error reading consumption of %s: %v", vehID, err)
			continue
		}
		r.energy.Observe(vehID, consumption)
	}
}

// logSummary prints the per-vehicle energy table for the run
func (r *Runner) logSummary(s RunSummary) {
	ids := make([]string, 0, len(s.Energy))
	for id := range s.Energy {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Vehicle", "Energy (kJ)"})
	for _, id := range ids {
		table.Append([]string{id, fmt.Sprintf("%.2f", s.Energy[id])})
	}
	table.SetFooter([]string{"Riders served", fmt.Sprintf("%d", s.RidersServed)})
	table.Render()

	r.logger.Infow("Run finished",
		"runID", s.RunID,
		"steps", s.Steps,
		"simTime", s.FinalSimTime,
		"ridersServed", s.RidersServed,
		"invalidTaxis", s.InvalidTaxis)
}
