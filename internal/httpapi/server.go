// v3
// internal/httpapi/server.go
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"it.uniroma2.dicii/homesim/internal/sim"
	"it.uniroma2.dicii/homesim/internal/telemetry"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// Server exposes the simulator's control plane: telemetry logger
// lifecycle, recorded series, virtual sensor and device state, and the
// simulation clock.
type Server struct {
	store       *timeseries.Store
	loggers     *telemetry.Registry
	runtime     *sim.Runtime
	defaultPoll time.Duration
	log         *slog.Logger
}

// NewServer wires the control-plane handlers.
func NewServer(store *timeseries.Store, loggers *telemetry.Registry, runtime *sim.Runtime, defaultPoll time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:       store,
		loggers:     loggers,
		runtime:     runtime,
		defaultPoll: defaultPoll,
		log:         logger.With(slog.String("component", "httpapi")),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type loggerView struct {
	ID          string `json:"id"`
	Entity      string `json:"entity"`
	Target      string `json:"target"`
	IntervalMS  int64  `json:"intervalMs"`
	Destination string `json:"destination"`
}

func loggerViews(hs []telemetry.Handle) []loggerView {
	out := make([]loggerView, 0, len(hs))
	for _, h := range hs {
		out = append(out, loggerView{
			ID:          h.ID.String(),
			Entity:      h.Entity,
			Target:      h.Target,
			IntervalMS:  h.Interval.Milliseconds(),
			Destination: h.Destination,
		})
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	clock := s.runtime.Clock()
	writeJSON(w, http.StatusOK, map[string]any{
		"simTime":    clock.Now().Format("2006-01-02 15:04"),
		"simMinutes": clock.Minutes(),
		"running":    clock.Running(),
		"sensors":    len(s.runtime.Sensors()),
		"devices":    len(s.runtime.Devices()),
		"loggers":    loggerViews(s.loggers.Handles()),
	})
}

func (s *Server) handleStartPowerLogger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device     string `json:"device"`
		Addr       string `json:"addr"`
		IntervalMS int64  `json:"intervalMs"`
		DeviceID   string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Addr) == "" {
		writeError(w, http.StatusBadRequest, "addr is required")
		return
	}
	interval := s.defaultPoll
	if req.IntervalMS > 0 {
		interval = time.Duration(req.IntervalMS) * time.Millisecond
	}
	h, err := s.loggers.StartPower(req.Device, req.Addr, interval, telemetry.PowerLoggerOptions{DeviceID: req.DeviceID})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, loggerViews([]telemetry.Handle{h})[0])
}

func (s *Server) handleStartEnvLogger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label      string `json:"label"`
		GPIO       *int   `json:"gpio"`
		IntervalMS int64  `json:"intervalMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.GPIO == nil {
		writeError(w, http.StatusBadRequest, "gpio is required")
		return
	}
	interval := s.defaultPoll
	if req.IntervalMS > 0 {
		interval = time.Duration(req.IntervalMS) * time.Millisecond
	}
	h, err := s.loggers.StartEnv(req.Label, *req.GPIO, interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, loggerViews([]telemetry.Handle{h})[0])
}

func (s *Server) handleStopLogger(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, running := s.loggers.Running(name); !running {
		writeError(w, http.StatusNotFound, "no logger running for "+name)
		return
	}
	s.loggers.Stop(name)
	writeJSON(w, http.StatusOK, map[string]string{"stopped": name})
}

type sampleView struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

func seriesView(series timeseries.Series) []sampleView {
	out := make([]sampleView, 0, series.Len())
	for _, sm := range series.Samples {
		out = append(out, sampleView{Timestamp: sm.Timestamp.Format(time.RFC3339), Value: sm.Value})
	}
	return out
}

func (s *Server) handlePowerSeries(w http.ResponseWriter, r *http.Request) {
	device := r.URL.Query().Get("device")
	ip := r.URL.Query().Get("ip")
	var series timeseries.Series
	switch {
	case device != "":
		series = s.store.LoadPowerByDeviceID(device)
	case ip != "":
		series = s.store.LoadPowerByIP(ip)
	default:
		writeError(w, http.StatusBadRequest, "device or ip query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": seriesView(series)})
}

func (s *Server) handleEnvSeries(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	gpio := r.URL.Query().Get("gpio")
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "temperature"
	}
	var series timeseries.Series
	switch {
	case metric == "humidity":
		if label == "" {
			writeError(w, http.StatusBadRequest, "humidity series requires a label")
			return
		}
		series = s.store.LoadHumidityByLabel(label)
	case label != "":
		series = s.store.LoadTempByLabel(label)
	case gpio != "":
		n, err := atoi(gpio)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid gpio")
			return
		}
		series = s.store.LoadTempByGPIO(n)
	default:
		writeError(w, http.StatusBadRequest, "label or gpio query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": seriesView(series)})
}

type sensorView struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	State     float64 `json:"state"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Step      float64 `json:"step"`
	Direction float64 `json:"direction,omitempty"`
	Device    string  `json:"device,omitempty"`
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors := s.runtime.Sensors()
	out := make([]sensorView, 0, len(sensors))
	for _, sn := range sensors {
		out = append(out, sensorView{
			Name:      sn.Name,
			Kind:      string(sn.Kind),
			State:     sn.State,
			Min:       sn.Min,
			Max:       sn.Max,
			Step:      sn.Step,
			Direction: sn.Direction,
			Device:    sn.Device,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": out})
}

func (s *Server) handleSetSensorState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req struct {
		State *float64 `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.State == nil {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	if err := s.runtime.SetSensorState(name, *req.State); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "state": *req.State})
}

func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	window := 20
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := atoi(v)
		if err != nil || n < 2 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = n
	}
	state, err := s.runtime.RoomState(name, window)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensor": name, "roomState": string(state)})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.runtime.Devices()
	out := make([]map[string]any, 0, len(devices))
	for _, d := range devices {
		out = append(out, map[string]any{
			"name":      d.Name,
			"archetype": string(d.Archetype),
			"on":        d.On,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out})
}

func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req struct {
		On *bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.On == nil {
		writeError(w, http.StatusBadRequest, "on is required")
		return
	}
	if err := s.runtime.SetDeviceState(name, *req.On); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "on": *req.On})
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	horizonMin, stepMin := 60, 1
	if v := r.URL.Query().Get("horizonMin"); v != "" {
		n, err := atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid horizonMin")
			return
		}
		horizonMin = n
	}
	if v := r.URL.Query().Get("stepMin"); v != "" {
		n, err := atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid stepMin")
			return
		}
		stepMin = n
	}

	samples, err := s.runtime.PredictDevice(name, time.Duration(horizonMin)*time.Minute, time.Duration(stepMin)*time.Minute)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	out := make([]sampleView, 0, len(samples))
	for _, ps := range samples {
		out = append(out, sampleView{Timestamp: ps.Timestamp.Format(time.RFC3339), Value: ps.Watts})
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": name, "samples": out})
}

func (s *Server) handleClockStart(w http.ResponseWriter, r *http.Request) {
	s.runtime.Clock().Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

func (s *Server) handleClockPause(w http.ResponseWriter, r *http.Request) {
	s.runtime.Clock().Pause()
	writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

func (s *Server) handleClockAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be a positive integer")
		return
	}
	s.runtime.Advance(req.Minutes)
	writeJSON(w, http.StatusOK, map[string]any{
		"advancedMinutes": req.Minutes,
		"simTime":         s.runtime.Clock().Now().Format("2006-01-02 15:04"),
	})
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
