package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Jingwu-01/Robotaxi-backend/src/auth"
	"github.com/Jingwu-01/Robotaxi-backend/src/results"
	"github.com/Jingwu-01/Robotaxi-backend/src/sim"
	"github.com/Jingwu-01/Robotaxi-backend/src/sumo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testNet = `<net>
    <location netOffset="-270000.00,-3290000.00" projParameter="+proj=utm +zone=15"/>
    <edge id="edge1">
        <lane id="edge1_0" index="0" speed="13.89" length="100.00" shape="0.00,0.00 100.00,0.00"/>
    </edge>
    <edge id="edge2">
        <lane id="edge2_0" index="0" speed="8.33" length="50.00" shape="100.00,0.00 100.00,50.00"/>
    </edge>
</net>`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	network, err := sumo.ParseNetwork([]byte(testNet))
	require.NoError(t, err)

	networkJSON, err := network.ExportGeoJSON(sumo.UTMZone{Zone: 15})
	require.NoError(t, err)

	store, err := results.NewResultsStore(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)

	s := &Server{
		Host:        "127.0.0.1",
		Port:        0,
		logger:      zap.NewNop().Sugar(),
		network:     network,
		networkJSON: networkJSON,
		store:       store,
		params: sim.Parameters{
			NumCars:     3,
			NumChargers: 3,
			NumPeople:   3,
			TimeStep:    1.0,
			SimLength:   1000,
		},
	}
	s.runnerCfg.OnComplete = s.onRunComplete
	return s
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusWhileIdle(t *testing.T) {
	h := newTestServer(t).routes()

	rec := doRequest(t, h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Simulation not running", decodeResponse(t, rec)["status"])
}

func TestStopWithoutSimulation(t *testing.T) {
	h := newTestServer(t).routes()

	rec := doRequest(t, h, http.MethodPost, "/api/stop_simulation", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No simulation running", decodeResponse(t, rec)["status"])
}

func TestVehiclesWithoutSimulation(t *testing.T) {
	h := newTestServer(t).routes()

	rec := doRequest(t, h, http.MethodGet, "/api/vehicles", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Simulation not running", decodeResponse(t, rec)["error"])
}

func TestRuntimeAdditionsWithoutSimulation(t *testing.T) {
	h := newTestServer(t).routes()

	for _, path := range []string{"/api/add_vehicle", "/api/add_person", "/api/add_charger"} {
		rec := doRequest(t, h, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Simulation not running", decodeResponse(t, rec)["error"], path)
	}
}

func TestStartSimulationWithoutBody(t *testing.T) {
	h := newTestServer(t).routes()

	rec := doRequest(t, h, http.MethodPost, "/api/start_simulation", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No input data provided", decodeResponse(t, rec)["error"])
}

func TestStartSimulationValidation(t *testing.T) {
	h := newTestServer(t).routes()

	valid := map[string]any{
		"num_cars": 3, "num_chargers": 3, "num_people": 3,
		"time_step": 1.0, "sim_length": 1000,
	}

	cases := []struct {
		name   string
		mutate func(map[string]any)
		errMsg string
	}{
		{"missing num_cars", func(m map[string]any) { delete(m, "num_cars") }, "Invalid value for num_cars"},
		{"zero num_cars", func(m map[string]any) { m["num_cars"] = 0 }, "Invalid value for num_cars"},
		{"fractional num_cars", func(m map[string]any) { m["num_cars"] = 2.5 }, "Invalid value for num_cars"},
		{"string num_cars", func(m map[string]any) { m["num_cars"] = "3" }, "Invalid value for num_cars"},
		{"negative num_chargers", func(m map[string]any) { m["num_chargers"] = -1 }, "Invalid value for num_chargers"},
		{"zero num_people", func(m map[string]any) { m["num_people"] = 0 }, "Invalid value for num_people"},
		{"zero time_step", func(m map[string]any) { m["time_step"] = 0 }, "Invalid value for time_step"},
		{"missing sim_length", func(m map[string]any) { delete(m, "sim_length") }, "Invalid value for sim_length"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := make(map[string]any, len(valid))
			for k, v := range valid {
				body[k] = v
			}
			tc.mutate(body)

			rec := doRequest(t, h, http.MethodPost, "/api/start_simulation", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.errMsg, decodeResponse(t, rec)["error"])
		})
	}
}

func TestStartSimulationRejectsConcurrentStart(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	// Another start is mid-flight: between its running check and its
	// runner assignment
	s.mu.Lock()
	s.starting = true
	s.mu.Unlock()

	body := map[string]any{
		"num_cars": 3, "num_chargers": 3, "num_people": 3,
		"time_step": 1.0, "sim_length": 1000,
	}
	rec := doRequest(t, h, http.MethodPost, "/api/start_simulation", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Simulation already running", decodeResponse(t, rec)["status"])
}

func TestChangeParameters(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	body := map[string]any{
		"num_cars": 5, "num_chargers": 0, "num_people": 8,
		"time_step": 0.5, "sim_length": 200,
	}
	rec := doRequest(t, h, http.MethodPost, "/api/change_parameters", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeResponse(t, rec)
	assert.Equal(t, "Parameters changed successfully", got["status"])
	assert.EqualValues(t, 5, got["num_cars"])
	assert.EqualValues(t, 0, got["num_chargers"])
	assert.EqualValues(t, 8, got["num_people"])
	assert.EqualValues(t, 0.5, got["time_step"])
	assert.EqualValues(t, 200, got["sim_length"])

	// The new values become the defaults for the next run
	s.mu.Lock()
	assert.Equal(t, 5, s.params.NumCars)
	s.mu.Unlock()
}

func TestChangeParametersRejectsInvalid(t *testing.T) {
	h := newTestServer(t).routes()

	body := map[string]any{
		"num_cars": 5, "num_chargers": 0, "num_people": 8,
		"time_step": -1, "sim_length": 200,
	}
	rec := doRequest(t, h, http.MethodPost, "/api/change_parameters", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid value for time_step", decodeResponse(t, rec)["error"])
}

func TestNetworkGeoJSON(t *testing.T) {
	h := newTestServer(t).routes()

	rec := doRequest(t, h, http.MethodGet, "/api/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var fc sumo.FeatureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 2)
}

func TestRunRecords(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := doRequest(t, h, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeResponse(t, rec)["runs"])

	// A finished run lands in the store through the completion callback
	s.onRunComplete(sim.RunSummary{
		RunID:        "run-1",
		Params:       s.params,
		Steps:        42,
		Energy:       map[string]float64{"taxi_0": 3.5},
		RidersServed: 2,
	})

	rec = doRequest(t, h, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"run-1"}, decodeResponse(t, rec)["runs"])

	rec = doRequest(t, h, http.MethodGet, "/api/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeResponse(t, rec)
	assert.Equal(t, "run-1", got["run_id"])
	assert.EqualValues(t, 42, got["steps"])
	assert.EqualValues(t, 2, got["riders_served"])

	rec = doRequest(t, h, http.MethodGet, "/api/runs/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Run not found", decodeResponse(t, rec)["error"])
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t).routes()

	rec := doRequest(t, h, http.MethodOptions, "/api/status", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t).routes()

	rec := doRequest(t, h, http.MethodGet, "/api/start_simulation", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t)
	s.AuthEnabled = true

	users, err := auth.NewUserStore(filepath.Join(t.TempDir(), "credentials.dat"), "test-key")
	require.NoError(t, err)
	require.NoError(t, users.AddUser("admin", "admin123"))
	s.users = users

	h := s.routes()

	t.Run("missing credentials", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/status", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("wrong credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		req.SetBasicAuth("admin", "wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		req.SetBasicAuth("admin", "admin123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
