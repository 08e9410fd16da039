// v3
// internal/telemetry/registry.go
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"it.uniroma2.dicii/homesim/internal/metrics"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// Handle identifies one running background poller.
type Handle struct {
	ID          uuid.UUID
	Entity      string
	Target      string
	Interval    time.Duration
	Destination string
}

// SampleSink receives a copy of every appended row. Used to mirror samples
// onto a message bus; a nil sink disables mirroring.
type SampleSink interface {
	PublishSample(ctx context.Context, domain, entity string, row []string, ts time.Time)
}

// pollFunc performs one poll attempt and appends the resulting row. It
// returns an error only for logging; a failed poll never stops the loop.
type pollFunc func(ctx context.Context, now time.Time) error

type runner struct {
	handle Handle
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns every background poller in the process, keyed by entity
// name. At most one live poller exists per name: starting a second request
// for a running name returns the existing handle untouched.
type Registry struct {
	store       *timeseries.Store
	shelly      *ShellyClient
	dht         DHTReader
	sink        SampleSink
	log         *slog.Logger
	stopTimeout time.Duration

	mu      sync.Mutex
	runners map[string]*runner
}

// NewRegistry wires a logger registry over the given store. dht may be nil
// on hosts without sensor hardware (environment pollers then record blank
// reads); sink may be nil.
func NewRegistry(store *timeseries.Store, dht DHTReader, sink SampleSink, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:       store,
		shelly:      NewShellyClient(2 * time.Second),
		dht:         dht,
		sink:        sink,
		log:         logger.With(slog.String("component", "telemetry")),
		stopTimeout: 3 * time.Second,
		runners:     make(map[string]*runner),
	}
}

// Running returns the handle registered under entity, if any.
func (r *Registry) Running(entity string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runners[entity]
	if !ok {
		return Handle{}, false
	}
	return run.handle, true
}

// Handles lists every registered poller.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.runners))
	for _, run := range r.runners {
		out = append(out, run.handle)
	}
	return out
}

// start registers and launches a poll loop unless entity already has one,
// in which case the running handle is returned unchanged.
func (r *Registry) start(entity, target, destination string, interval time.Duration, poll pollFunc) Handle {
	r.mu.Lock()
	if run, ok := r.runners[entity]; ok {
		r.mu.Unlock()
		r.log.Info("logger already running", "entity", entity)
		return run.handle
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &runner{
		handle: Handle{
			ID:          uuid.New(),
			Entity:      entity,
			Target:      target,
			Interval:    interval,
			Destination: destination,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.runners[entity] = run
	r.mu.Unlock()

	metrics.LoggerStarted()
	go r.loop(ctx, run, poll)
	r.log.Info("logger started", "entity", entity, "target", target, "interval", interval.String())
	return run.handle
}

// loop polls once per interval until cancelled. The wait is interruptible,
// so Stop returns promptly instead of sitting out a full interval. Poll
// failures are logged and absorbed; the loop only exits on cancellation.
func (r *Registry) loop(ctx context.Context, run *runner, poll pollFunc) {
	defer close(run.done)
	defer metrics.LoggerStopped()

	t := time.NewTicker(run.handle.Interval)
	defer t.Stop()

	for {
		if err := poll(ctx, time.Now()); err != nil && ctx.Err() == nil {
			r.log.Warn("poll failed", "entity", run.handle.Entity, "err", err)
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			r.log.Info("logger stopped", "entity", run.handle.Entity)
			return
		}
	}
}

// Stop cancels the poller registered under entity and waits up to the stop
// timeout for its loop to exit. The registry entry is removed either way; a
// loop that fails to terminate is left behind as a harmless daemon. No-op
// when the entity is not running.
func (r *Registry) Stop(entity string) {
	r.mu.Lock()
	run, ok := r.runners[entity]
	if ok {
		delete(r.runners, entity)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	run.cancel()
	select {
	case <-run.done:
	case <-time.After(r.stopTimeout):
		r.log.Warn("logger did not stop within timeout", "entity", entity)
	}
}

// StopAll stops every registered poller. Called at process shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	entities := make([]string, 0, len(r.runners))
	for name := range r.runners {
		entities = append(entities, name)
	}
	r.mu.Unlock()

	for _, name := range entities {
		r.Stop(name)
	}
}
