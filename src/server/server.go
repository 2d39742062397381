package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Jingwu-01/Robotaxi-backend/src/auth"
	"github.com/Jingwu-01/Robotaxi-backend/src/results"
	"github.com/Jingwu-01/Robotaxi-backend/src/settings"
	"github.com/Jingwu-01/Robotaxi-backend/src/sim"
	"github.com/Jingwu-01/Robotaxi-backend/src/sumo"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Server is the HTTP control surface of the backend. It owns the road
// network model, the results store and, while a simulation is active,
// the runner driving SUMO.
type Server struct {
	Host        string
	Port        int
	AuthEnabled bool

	logger     *zap.SugaredLogger
	httpServer *http.Server
	listener   net.Listener

	network     *sumo.Network
	networkJSON []byte
	store       results.RunStore
	users       *auth.UserStore
	runnerCfg   sim.Config

	mu             sync.Mutex
	runner         *sim.Runner
	starting       bool
	params         sim.Parameters
	vehicleCounter int
}

// InitServer initializes the backend server
func InitServer(config *settings.Arguments) (*Server, error) {
	var logger *zap.Logger
	var err error

	if config.Debug {
		// Development configuration with more verbose output
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		logger, err = z.Build()
	} else {
		// Production configuration
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sugar := logger.Sugar()
	zap.ReplaceGlobals(logger)

	network, err := sumo.LoadNetwork(config.NetworkFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load network file: %w", err)
	}
	sugar.Infof("Loaded network with %d edges and %d junctions",
		len(network.Edges), len(network.Junctions))

	// The frontend map never changes during a run, render it once.
	// The Houston network ships in UTM zone 15N.
	networkJSON, err := network.ExportGeoJSON(sumo.UTMZone{Zone: 15})
	if err != nil {
		return nil, fmt.Errorf("failed to render network GeoJSON: %w", err)
	}

	store, err := results.NewResultsStore(config.DataDir, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create results store: %w", err)
	}

	var users *auth.UserStore
	if config.AuthEnabled {
		users, err = auth.NewUserStore(
			filepath.Join(config.DataDir, "credentials.dat"),
			os.Getenv("ROBOTAXI_CREDENTIALS_KEY"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
	}

	server := &Server{
		Host:        config.Host,
		Port:        config.Port,
		AuthEnabled: config.AuthEnabled,
		logger:      sugar,
		network:     network,
		networkJSON: networkJSON,
		store:       store,
		users:       users,
		runnerCfg: sim.Config{
			SumoBinary: config.SumoBinary,
			SumoConfig: config.SumoConfig,
			UseGUI:     config.UseGUI,
			TraCIHost:  config.TraCIHost,
			TraCIPort:  config.TraCIPort,
		},
		params: sim.Parameters{
			NumCars:     3,
			NumChargers: 3,
			NumPeople:   3,
			TimeStep:    1.0,
			SimLength:   1000,
		},
	}
	server.runnerCfg.OnComplete = server.onRunComplete

	return server, nil
}

// AddUser registers an API user, persisting the credential store
func (s *Server) AddUser(username, password string) error {
	if s.users == nil {
		return fmt.Errorf("authentication is not enabled")
	}
	if err := s.users.AddUser(username, password); err != nil {
		return err
	}
	return s.users.Save()
}

// Start begins serving the API
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error starting server on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	s.logger.Infof("Robotaxi backend listening on %s", addr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("HTTP server stopped", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and any active simulation
func (s *Server) Stop() error {
	var errs error

	s.mu.Lock()
	runner := s.runner
	s.mu.Unlock()

	if runner != nil && runner.Running() {
		s.logger.Info("Stopping active simulation...")
		runner.Stop()
		runner.Join()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
		}
	}

	if s.users != nil {
		if err := s.users.Save(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error saving credential store: %w", err))
		}
	}

	s.logger.Info("Server shutdown complete")
	s.logger.Sync()

	return errs
}

// onRunComplete persists the summary of every finished run
func (s *Server) onRunComplete(summary sim.RunSummary) {
	if err := s.store.SaveRunRecord(summary); err != nil {
		s.logger.Errorw("Failed to persist run record", "runID", summary.RunID, "error", err)
	}
}

// activeRunner returns the runner if a simulation is currently running
func (s *Server) activeRunner() *sim.Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runner != nil && s.runner.Running() {
		return s.runner
	}
	return nil
}

// nextVehicleID generates a unique vehicle ID
func (s *Server) nextVehicleID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("veh%d", s.vehicleCounter)
	s.vehicleCounter++
	return id
}
