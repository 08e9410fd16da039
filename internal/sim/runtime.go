// v4
// internal/sim/runtime.go
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"it.uniroma2.dicii/homesim/internal/profile"
	"it.uniroma2.dicii/homesim/internal/replay"
)

// Runtime owns the simulated building: the clock, every virtual sensor and
// device, and the engines feeding them. All per-tick registries the
// simulation needs live here as explicit state instead of package globals.
type Runtime struct {
	clock    *Clock
	profiles *profile.Engine
	replays  *replay.Engine
	pub      ReadingPublisher
	log      *slog.Logger

	tickInterval  time.Duration
	heatingFactor float64

	mu      sync.Mutex
	sensors map[string]*Sensor
	devices map[string]*Device
}

// NewRuntime wires a runtime over the given engines. pub may be nil; the
// heating factor drives the no-history temperature fallback (positive
// heats, otherwise the room cools).
func NewRuntime(clock *Clock, profiles *profile.Engine, replays *replay.Engine, pub ReadingPublisher, heatingFactor float64, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		clock:         clock,
		profiles:      profiles,
		replays:       replays,
		pub:           pub,
		log:           logger.With(slog.String("component", "sim")),
		tickInterval:  time.Second,
		heatingFactor: heatingFactor,
		sensors:       make(map[string]*Sensor),
		devices:       make(map[string]*Device),
	}
}

// Clock exposes the simulation clock for start/pause/advance controls.
func (r *Runtime) Clock() *Clock { return r.clock }

// AddSensor registers a sensor. Smart meters must name an associated
// device; a temperature sensor with recorded history starts at its first
// recorded value, clamped to the sensor's range.
func (r *Runtime) AddSensor(s *Sensor) error {
	if s == nil {
		return fmt.Errorf("nil sensor")
	}
	if s.Kind == KindSmartMeter && s.Device == "" {
		return fmt.Errorf("smart meter %q needs an associated device", s.Name)
	}
	if s.Kind == KindTemperature {
		if v, ok := r.replays.Value(s.Name, replay.KindTemperature, 0); ok {
			s.State = v
			s.clampState()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sensors[s.Name]; exists {
		return fmt.Errorf("sensor %q already exists", s.Name)
	}
	r.sensors[s.Name] = s
	r.log.Info("sensor added", "name", s.Name, "kind", string(s.Kind))
	return nil
}

// AddDevice registers a device, initially off.
func (r *Runtime) AddDevice(name string, archetype profile.Archetype) error {
	if name == "" {
		return fmt.Errorf("device needs a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[name]; exists {
		return fmt.Errorf("device %q already exists", name)
	}
	r.devices[name] = &Device{Name: name, Archetype: archetype}
	r.log.Info("device added", "name", name, "archetype", string(archetype))
	return nil
}

// SetSensorState sets the state of an externally togglable sensor (PIR,
// switch, weight). Raising a PIR lowers every other PIR: at most one zone
// reports presence at a time.
func (r *Runtime) SetSensorState(name string, state float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sensors[name]
	if !ok {
		return fmt.Errorf("unknown sensor %q", name)
	}
	if !s.Settable() {
		return fmt.Errorf("%s sensor %q is driven by the simulation", s.Kind, name)
	}

	s.State = state
	s.clampState()
	if s.Kind == KindPIR && s.State > 0 {
		for _, other := range r.sensors {
			if other.Kind == KindPIR && other.Name != name {
				other.State = 0
			}
		}
	}
	return nil
}

// SetDeviceState turns a device on or off. Turning on opens an active
// consumption cycle at the current simulated time; turning off closes it.
func (r *Runtime) SetDeviceState(name string, on bool) error {
	r.mu.Lock()
	d, ok := r.devices[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown device %q", name)
	}
	d.On = on
	archetype := d.Archetype
	r.mu.Unlock()

	if on {
		r.profiles.OpenCycle(name, archetype, r.clock.Now())
	} else {
		r.profiles.CloseCycle(name)
	}
	r.log.Info("device state changed", "name", name, "on", on)
	return nil
}

// Run ticks the simulation until the context is cancelled. Each real tick
// interval advances the clock by one simulated minute when it is running.
func (r *Runtime) Run(ctx context.Context) {
	t := time.NewTicker(r.tickInterval)
	defer t.Stop()
	r.log.Info("simulation loop started", "tick", r.tickInterval.String())
	for {
		select {
		case <-t.C:
			if r.clock.Tick() {
				r.step(1)
			}
		case <-ctx.Done():
			r.log.Info("simulation loop stopped")
			return
		}
	}
}

// Advance jumps the simulation forward by n simulated minutes, applying
// the per-minute update once per minute so sensors trace the same path a
// real wait would have produced.
func (r *Runtime) Advance(n int) {
	for i := 0; i < n; i++ {
		r.clock.Advance(1)
		r.step(1)
	}
}

// step applies one update of deltaMinutes simulated minutes to every
// sensor.
func (r *Runtime) step(deltaMinutes int) {
	now := r.clock.Now()

	r.mu.Lock()
	for _, s := range r.sensors {
		switch s.Kind {
		case KindTemperature:
			r.stepTemperature(s, deltaMinutes)
		case KindSmartMeter:
			r.stepSmartMeter(s, now)
		}
	}
	readings := make([]SensorReading, 0, len(r.sensors))
	if r.pub != nil {
		for _, s := range r.sensors {
			readings = append(readings, SensorReading{
				Sensor:    s.Name,
				Kind:      string(s.Kind),
				Timestamp: now,
				Value:     s.State,
			})
		}
	}
	r.mu.Unlock()

	for _, reading := range readings {
		r.pub.PublishReading(reading)
	}
}

// stepTemperature advances one temperature sensor. With recorded history
// the replay engine drives the value and the sensor's min/max do not apply;
// without history the value walks by the sensor step under the heating
// factor, clamped to its range and snapped to the half-degree grid.
func (r *Runtime) stepTemperature(s *Sensor, deltaMinutes int) {
	s.simMinutes += float64(deltaMinutes)

	if v, ok := r.replays.Value(s.Name, replay.KindTemperature, s.simMinutes); ok {
		s.State = math.Round(v*100) / 100
		return
	}

	if r.heatingFactor > 0 {
		s.State += s.Step * float64(deltaMinutes) * r.heatingFactor
	} else {
		s.State -= s.Step * float64(deltaMinutes)
	}
	s.clampState()
	s.State = math.Round(s.State*2) / 2
}

// stepSmartMeter refreshes a meter from its associated device's draw. A
// non-repeating profile running past its end reports termination once; the
// device is forced off so the next tick reads zero.
func (r *Runtime) stepSmartMeter(s *Sensor, now time.Time) {
	d, ok := r.devices[s.Device]
	if !ok || !d.On {
		s.State = 0
		return
	}
	watts, terminated := r.profiles.Consumption(d.Name, d.Archetype, now, d.On)
	if terminated {
		d.On = false
		r.log.Info("cycle complete, device forced off", "device", d.Name)
	}
	s.State = watts
}

// PredictDevice produces the forward consumption series of a device from
// the current simulated instant over the given horizon.
func (r *Runtime) PredictDevice(name string, horizon, step time.Duration) ([]profile.PredictedSample, error) {
	r.mu.Lock()
	d, ok := r.devices[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("unknown device %q", name)
	}
	archetype, on := d.Archetype, d.On
	r.mu.Unlock()
	return r.profiles.PredictConsumption(name, archetype, r.clock.Now(), on, horizon, step), nil
}

// RoomState classifies the recent trend of a temperature sensor's recorded
// series.
func (r *Runtime) RoomState(sensor string, windowMinutes int) (replay.RoomState, error) {
	r.mu.Lock()
	s, ok := r.sensors[sensor]
	r.mu.Unlock()
	if !ok {
		return replay.RoomUnknown, fmt.Errorf("unknown sensor %q", sensor)
	}
	if s.Kind != KindTemperature {
		return replay.RoomUnknown, fmt.Errorf("sensor %q is not a temperature sensor", sensor)
	}
	return r.replays.InferRoomState(sensor, windowMinutes), nil
}

// Sensors returns a stable-ordered snapshot of every sensor.
func (r *Runtime) Sensors() []Sensor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Devices returns a stable-ordered snapshot of every device.
func (r *Runtime) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
