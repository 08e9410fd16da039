// v2
// internal/httpapi/router.go
package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"it.uniroma2.dicii/homesim/internal/metrics"
)

// NewRouter builds the control-plane router. accessLog receives one line
// per request in Apache common log format.
func NewRouter(s *Server, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	r.HandleFunc("/loggers/power", s.handleStartPowerLogger).Methods("POST")
	r.HandleFunc("/loggers/env", s.handleStartEnvLogger).Methods("POST")
	r.HandleFunc("/loggers/{name}", s.handleStopLogger).Methods("DELETE")

	r.HandleFunc("/series/power", s.handlePowerSeries).Methods("GET")
	r.HandleFunc("/series/env", s.handleEnvSeries).Methods("GET")

	r.HandleFunc("/sensors", s.handleListSensors).Methods("GET")
	r.HandleFunc("/sensors/{name}/state", s.handleSetSensorState).Methods("POST")
	r.HandleFunc("/sensors/{name}/room-state", s.handleRoomState).Methods("GET")

	r.HandleFunc("/devices", s.handleListDevices).Methods("GET")
	r.HandleFunc("/devices/{name}/state", s.handleSetDeviceState).Methods("POST")
	r.HandleFunc("/devices/{name}/prediction", s.handlePrediction).Methods("GET")

	r.HandleFunc("/clock/start", s.handleClockStart).Methods("POST")
	r.HandleFunc("/clock/pause", s.handleClockPause).Methods("POST")
	r.HandleFunc("/clock/advance", s.handleClockAdvance).Methods("POST")

	return handlers.LoggingHandler(accessLog, r)
}
