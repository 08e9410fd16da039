// v3
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"log/slog"

	"it.uniroma2.dicii/homesim/internal/bus"
	"it.uniroma2.dicii/homesim/internal/config"
	"it.uniroma2.dicii/homesim/internal/httpapi"
	"it.uniroma2.dicii/homesim/internal/logging"
	"it.uniroma2.dicii/homesim/internal/profile"
	"it.uniroma2.dicii/homesim/internal/replay"
	"it.uniroma2.dicii/homesim/internal/sim"
	"it.uniroma2.dicii/homesim/internal/telemetry"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// Application wires configuration, logging, the telemetry and simulation
// engines, and the HTTP control plane into one runnable unit with graceful
// shutdown.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	logFile  *os.File
	server   *http.Server
	loggers  *telemetry.Registry
	runtime  *sim.Runtime
	mirror   *bus.Publisher
	readings sim.ReadingPublisher
}

// New prepares a fully wired simulator instance from the supplied
// configuration. Kafka mirroring and MQTT publishing are enabled only when
// their endpoints are configured; the DHT driver defaults to absent so
// hosts without probe hardware still run (environment pollers then record
// blank reads).
func New(cfg config.Config, dht telemetry.DHTReader) (*Application, error) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	logger, logFile := logging.Init(cfg.LogFilePath)

	store := timeseries.NewStore(cfg.DataDir, logger)

	var mirror *bus.Publisher
	var sink telemetry.SampleSink
	if len(cfg.KafkaBrokers) > 0 {
		mirror = bus.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sink = mirror
		logger.Info("sample mirroring enabled",
			slog.String("brokers", strings.Join(cfg.KafkaBrokers, ",")),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	loggers := telemetry.NewRegistry(store, dht, sink, logger)

	registry := profile.DefaultRegistry()
	if err := registry.LoadOverrides(cfg.ProfilesPath); err != nil {
		closeAll(mirror, logFile)
		return nil, fmt.Errorf("profile overrides: %w", err)
	}
	profiles := profile.NewEngine(registry, store, logger)

	bindings, err := replay.LoadBindings(cfg.SensorMapPath)
	if err != nil {
		closeAll(mirror, logFile)
		return nil, fmt.Errorf("sensor bindings: %w", err)
	}
	replays := replay.NewEngine(store, bindings, logger)

	var readings sim.ReadingPublisher
	if cfg.MQTTBroker != "" {
		pub, err := sim.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTTopic, logger)
		if err != nil {
			closeAll(mirror, logFile)
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		readings = pub
		logger.Info("reading publishing enabled",
			slog.String("broker", cfg.MQTTBroker),
			slog.String("topic", cfg.MQTTTopic),
		)
	}

	clock := sim.NewClock(cfg.SimStart)
	runtime := sim.NewRuntime(clock, profiles, replays, readings, cfg.HeatingFactor, logger)

	apiServer := httpapi.NewServer(store, loggers, runtime, cfg.PollInterval, logger)
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           httpapi.NewRouter(apiServer, os.Stdout),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}

	return &Application{
		cfg:      cfg,
		logger:   logger,
		logFile:  logFile,
		server:   server,
		loggers:  loggers,
		runtime:  runtime,
		mirror:   mirror,
		readings: readings,
	}, nil
}

// Logger exposes the configured slog logger so callers (such as main)
// can emit structured logs after initialization.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Runtime exposes the simulation runtime so callers can pre-register
// sensors and devices before Run.
func (a *Application) Runtime() *sim.Runtime {
	return a.runtime
}

// Loggers exposes the telemetry registry so callers can pre-start pollers
// before Run.
func (a *Application) Loggers() *telemetry.Registry {
	return a.loggers
}

// Run blocks until the context is cancelled or the HTTP server terminates
// unexpectedly, then shuts everything down in order: HTTP server, poll
// loops, simulation loop.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("address", a.cfg.ListenAddress))
		err := a.server.ListenAndServe()
		httpCh <- err
	}()

	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		a.runtime.Run(ctx)
	}()

	var httpErr error
	select {
	case err := <-httpCh:
		httpCh = nil
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", slog.Any("err", err))
			httpErr = err
		}
		cancel()
	case <-ctx.Done():
		a.logger.Info("shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("server shutdown failed", slog.Any("err", err))
		if httpErr == nil {
			httpErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	shutdownCancel()
	if httpCh != nil {
		if err := <-httpCh; err != nil && !errors.Is(err, http.ErrServerClosed) && httpErr == nil {
			httpErr = err
		}
	}

	a.loggers.StopAll()

	select {
	case <-simDone:
	case <-time.After(a.cfg.ShutdownTimeout):
		a.logger.Warn("simulation loop did not stop within timeout")
	}

	if httpErr != nil {
		return httpErr
	}
	a.logger.Info("shutdown complete")
	return nil
}

// Close flushes and closes resources owned by the application instance.
func (a *Application) Close() error {
	if a.readings != nil {
		a.readings.Close()
		a.readings = nil
	}
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			return err
		}
		a.mirror = nil
	}
	if a.logFile == nil {
		return nil
	}
	if err := a.logFile.Close(); err != nil {
		return err
	}
	a.logFile = nil
	return nil
}

func closeAll(mirror *bus.Publisher, logFile *os.File) {
	if mirror != nil {
		_ = mirror.Close()
	}
	if logFile != nil {
		_ = logFile.Close()
	}
}
