// v2
// internal/httpapi/server_test.go
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"it.uniroma2.dicii/homesim/internal/profile"
	"it.uniroma2.dicii/homesim/internal/replay"
	"it.uniroma2.dicii/homesim/internal/sim"
	"it.uniroma2.dicii/homesim/internal/telemetry"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

func newTestServer(t *testing.T) (*httptest.Server, *sim.Runtime) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := timeseries.NewStore(t.TempDir(), log)
	loggers := telemetry.NewRegistry(store, nil, nil, log)
	t.Cleanup(loggers.StopAll)

	profiles := profile.NewEngine(profile.DefaultRegistry(), store, log)
	replays := replay.NewEngine(store, nil, log)
	clock := sim.NewClock(8 * time.Hour)
	runtime := sim.NewRuntime(clock, profiles, replays, nil, 0, log)

	srv := NewServer(store, loggers, runtime, time.Minute, log)
	ts := httptest.NewServer(NewRouter(srv, io.Discard))
	t.Cleanup(ts.Close)
	return ts, runtime
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	code, body := doJSON(t, http.MethodGet, ts.URL+"/health", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", code, body)
	}
}

func TestSensorStateOverAPI(t *testing.T) {
	ts, rt := newTestServer(t)
	s, err := sim.NewSensor("door-switch", sim.KindSwitch)
	if err != nil {
		t.Fatalf("build sensor: %v", err)
	}
	if err := rt.AddSensor(s); err != nil {
		t.Fatalf("add sensor: %v", err)
	}

	code, _ := doJSON(t, http.MethodPost, ts.URL+"/sensors/door-switch/state", `{"state": 1}`)
	if code != http.StatusOK {
		t.Fatalf("set state returned %d", code)
	}

	code, body := doJSON(t, http.MethodGet, ts.URL+"/sensors", "")
	if code != http.StatusOK {
		t.Fatalf("list returned %d", code)
	}
	sensors, _ := body["sensors"].([]any)
	if len(sensors) != 1 {
		t.Fatalf("expected one sensor, got %v", body)
	}
	first, _ := sensors[0].(map[string]any)
	if first["state"] != 1.0 {
		t.Fatalf("state not applied: %v", first)
	}

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/sensors/missing/state", `{"state": 1}`)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown sensor must be rejected, got %d", code)
	}
}

func TestDeviceStateAndPredictionOverAPI(t *testing.T) {
	ts, rt := newTestServer(t)
	if err := rt.AddDevice("fridge", profile.ArchetypeFridge); err != nil {
		t.Fatalf("add device: %v", err)
	}

	code, _ := doJSON(t, http.MethodPost, ts.URL+"/devices/fridge/state", `{"on": true}`)
	if code != http.StatusOK {
		t.Fatalf("turn on returned %d", code)
	}

	code, body := doJSON(t, http.MethodGet, ts.URL+"/devices/fridge/prediction?horizonMin=30&stepMin=5", "")
	if code != http.StatusOK {
		t.Fatalf("prediction returned %d: %v", code, body)
	}
	samples, _ := body["samples"].([]any)
	if len(samples) == 0 {
		t.Fatalf("expected prediction samples, got %v", body)
	}

	code, _ = doJSON(t, http.MethodGet, ts.URL+"/devices/toaster/prediction", "")
	if code != http.StatusNotFound {
		t.Fatalf("unknown device prediction must 404, got %d", code)
	}
}

func TestClockControlOverAPI(t *testing.T) {
	ts, rt := newTestServer(t)

	code, _ := doJSON(t, http.MethodPost, ts.URL+"/clock/advance", `{"minutes": 15}`)
	if code != http.StatusOK {
		t.Fatalf("advance returned %d", code)
	}
	if rt.Clock().Minutes() != 15 {
		t.Fatalf("clock not advanced, minutes=%d", rt.Clock().Minutes())
	}

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/clock/advance", `{"minutes": 0}`)
	if code != http.StatusBadRequest {
		t.Fatalf("non-positive advance must be rejected, got %d", code)
	}

	code, body := doJSON(t, http.MethodPost, ts.URL+"/clock/start", "")
	if code != http.StatusOK || body["running"] != true {
		t.Fatalf("clock start failed: %d %v", code, body)
	}
	code, body = doJSON(t, http.MethodPost, ts.URL+"/clock/pause", "")
	if code != http.StatusOK || body["running"] != false {
		t.Fatalf("clock pause failed: %d %v", code, body)
	}
}

func TestEnvLoggerLifecycleOverAPI(t *testing.T) {
	ts, _ := newTestServer(t)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/loggers/env", `{"label":"kitchen","gpio":4,"intervalMs":3600000}`)
	if code != http.StatusCreated {
		t.Fatalf("start env logger returned %d: %v", code, body)
	}
	if body["entity"] != "kitchen" {
		t.Fatalf("unexpected handle: %v", body)
	}

	code, status := doJSON(t, http.MethodGet, ts.URL+"/status", "")
	if code != http.StatusOK {
		t.Fatalf("status returned %d", code)
	}
	loggers, _ := status["loggers"].([]any)
	if len(loggers) != 1 {
		t.Fatalf("expected one registered logger, got %v", status)
	}

	code, _ = doJSON(t, http.MethodDelete, ts.URL+"/loggers/kitchen", "")
	if code != http.StatusOK {
		t.Fatalf("stop returned %d", code)
	}
	code, _ = doJSON(t, http.MethodDelete, ts.URL+"/loggers/kitchen", "")
	if code != http.StatusNotFound {
		t.Fatalf("stopping a stopped logger must 404, got %d", code)
	}
}

func TestSeriesEndpointValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	code, _ := doJSON(t, http.MethodGet, ts.URL+"/series/power", "")
	if code != http.StatusBadRequest {
		t.Fatalf("missing query must be rejected, got %d", code)
	}

	code, body := doJSON(t, http.MethodGet, ts.URL+"/series/env?label=nowhere", "")
	if code != http.StatusOK {
		t.Fatalf("empty series must still be 200, got %d", code)
	}
	samples, _ := body["samples"].([]any)
	if len(samples) != 0 {
		t.Fatalf("expected no samples, got %v", samples)
	}
}
