package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Jingwu-01/Robotaxi-backend/src/helpers"
	"github.com/Jingwu-01/Robotaxi-backend/src/sim"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Record is the persisted form of a finished run
type Record struct {
	RunID        string             `bson:"run_id" json:"run_id"`
	Params       recordParams       `bson:"params" json:"params"`
	StartedAt    time.Time          `bson:"started_at" json:"started_at"`
	EndedAt      time.Time          `bson:"ended_at" json:"ended_at"`
	FinalSimTime float64            `bson:"final_sim_time" json:"final_sim_time"`
	Steps        int                `bson:"steps" json:"steps"`
	Energy       map[string]float64 `bson:"energy_kj" json:"energy_kj"`
	RidersServed int                `bson:"riders_served" json:"riders_served"`
	InvalidTaxis int                `bson:"invalid_taxis" json:"invalid_taxis"`
}

type recordParams struct {
	NumCars     int     `bson:"num_cars" json:"num_cars"`
	NumChargers int     `bson:"num_chargers" json:"num_chargers"`
	NumPeople   int     `bson:"num_people" json:"num_people"`
	TimeStep    float64 `bson:"time_step" json:"time_step"`
	SimLength   float64 `bson:"sim_length" json:"sim_length"`
}

// RunStore is the persistence interface the server consumes
type RunStore interface {
	SaveRunRecord(summary sim.RunSummary) error
	LoadRunRecord(runID string) (*Record, error)
	ListRunIDs() ([]string, error)
}

// ResultsStorageEngine keeps one BSON file per finished run in the data
// directory
type ResultsStorageEngine struct {
	DataDirectory string
	logger        *zap.SugaredLogger
}

// NewResultsStore creates the store and its directory
func NewResultsStore(dataDir string, logger *zap.SugaredLogger) (*ResultsStorageEngine, error) {
	store := &ResultsStorageEngine{
		DataDirectory: filepath.Join(dataDir, "runs"),
		logger:        logger,
	}
	if err := os.MkdirAll(store.DataDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory %s: %w", store.DataDirectory, err)
	}
	return store, nil
}

func (s *ResultsStorageEngine) recordPath(runID string) string {
	return filepath.Join(s.DataDirectory, runID+".run")
}

// SaveRunRecord writes a run summary as a BSON document
func (s *ResultsStorageEngine) SaveRunRecord(summary sim.RunSummary) error {
	rec := Record{
		RunID: summary.RunID,
		Params: recordParams{
			NumCars:     summary.Params.NumCars,
			NumChargers: summary.Params.NumChargers,
			NumPeople:   summary.Params.NumPeople,
			TimeStep:    summary.Params.TimeStep,
			SimLength:   summary.Params.SimLength,
		},
		StartedAt:    summary.StartedAt,
		EndedAt:      summary.EndedAt,
		FinalSimTime: summary.FinalSimTime,
		Steps:        summary.Steps,
		Energy:       summary.Energy,
		RidersServed: summary.RidersServed,
		InvalidTaxis: summary.InvalidTaxis,
	}

	data, err := bson.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error encoding run record %s: %w", summary.RunID, err)
	}

	path := s.recordPath(summary.RunID)
	if err := helpers.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("error writing run record %s: %w", summary.RunID, err)
	}
	s.logger.Infof("Run record written to %s", path)
	return nil
}

// LoadRunRecord memory maps a run record file and decodes it
func (s *ResultsStorageEngine) LoadRunRecord(runID string) (*Record, error) {
	file, err := helpers.OpenDataFile(s.DataDirectory, runID+".run")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("error getting run record stats for %s: %w", runID, err)
	}
	fileSize := int(stat.Size())
	if fileSize == 0 {
		return nil, fmt.Errorf("run record %s is empty", runID)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, fileSize, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to memory map run record %s: %w", runID, err)
	}
	defer unix.Munmap(data)

	var rec Record
	if err := bson.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("error decoding run record %s: %w", runID, err)
	}
	return &rec, nil
}

// ListRunIDs lists the IDs of all persisted runs
func (s *ResultsStorageEngine) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(s.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("error listing run records: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".run") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".run"))
	}
	return ids, nil
}
