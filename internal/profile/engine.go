// v3
// internal/profile/engine.go
package profile

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// PowerHistory is the slice of the time-series store the engine needs: the
// recorded power series for a canonical device id. *timeseries.Store
// satisfies it.
type PowerHistory interface {
	LoadPowerByDeviceID(deviceID string) timeseries.Series
}

// Cycle tracks one device that is on and mid-profile. It exists from the
// off-to-on transition until the device turns off or a non-repeating
// profile runs past its last key.
type Cycle struct {
	Device    string
	Start     time.Time
	Archetype Archetype
}

// Engine maps (device, archetype, instant, on/off) to an instantaneous
// power draw. It owns the active-cycle registry and the memoized computer
// sub-profile choices; both live for the process lifetime. Safe for
// concurrent use, though callers are expected to drive it from the
// simulation tick.
type Engine struct {
	registry *Registry
	history  PowerHistory
	log      *slog.Logger

	// csvAliases maps a simulation device name to the device id recorded in
	// the power logs, for devices whose log id differs from their name.
	csvAliases map[string]string

	mu       sync.Mutex
	cycles   map[string]Cycle
	pcChoice map[string]string // device name -> computer profile name ("" = none found)
}

// NewEngine wires a consumption engine over the given registry and power
// history. history may be nil when no real metering data exists; computer
// devices then keep the generic Computer template.
func NewEngine(registry *Registry, history PowerHistory, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:   registry,
		history:    history,
		log:        logger.With(slog.String("component", "profile_engine")),
		csvAliases: map[string]string{"pc": "sm_pc", "sm_pc": "sm_pc"},
		cycles:     make(map[string]Cycle),
		pcChoice:   make(map[string]string),
	}
}

// SetCSVAlias declares that device's rows in the power logs are keyed by
// deviceID rather than by the device name itself.
func (e *Engine) SetCSVAlias(device, deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.csvAliases[device] = deviceID
}

// OpenCycle records the off-to-on transition of a device. Opening a cycle
// for a device that already has one is a no-op so repeated "on" events do
// not restart the profile.
func (e *Engine) OpenCycle(device string, archetype Archetype, start time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.cycles[device]; exists {
		return
	}
	e.cycles[device] = Cycle{Device: device, Start: start, Archetype: archetype}
	e.log.Info("cycle opened", "device", device, "archetype", archetype)
}

// CloseCycle drops the active cycle of a device, if any. Called on the
// on-to-off transition.
func (e *Engine) CloseCycle(device string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.cycles[device]; exists {
		delete(e.cycles, device)
		e.log.Info("cycle closed", "device", device)
	}
}

// ActiveCycle returns the cycle for device and whether one exists.
func (e *Engine) ActiveCycle(device string) (Cycle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cycles[device]
	return c, ok
}

// Consumption returns the instantaneous draw of device at now.
//
// A device that is off draws 0. An unknown archetype draws 0. With an
// active cycle the draw follows the profile's step function at the elapsed
// minutes; without one the first keyed point holds. When a non-repeating
// profile runs past its last key the cycle is destroyed and terminated is
// reported true exactly once, letting the caller force the device off.
func (e *Engine) Consumption(device string, archetype Archetype, now time.Time, on bool) (watts float64, terminated bool) {
	if !on {
		return 0, false
	}

	prof, ok := e.profileFor(device, archetype)
	if !ok {
		return 0, false
	}

	cycle, hasCycle := e.ActiveCycle(device)
	if !hasCycle {
		if len(prof.Curve) == 0 {
			return prof.Standby, false
		}
		return prof.Curve[0].Watts, false
	}

	elapsed := now.Sub(cycle.Start).Minutes()
	if !prof.Repeat && elapsed > prof.Duration() {
		e.CloseCycle(device)
		return 0, true
	}
	return StepValue(prof, elapsed), false
}

// Interpolated returns the draw at now using linear interpolation instead
// of the step function, for consumers that want smooth curves. Termination
// handling is identical to Consumption.
func (e *Engine) Interpolated(device string, archetype Archetype, now time.Time, on bool) (watts float64, terminated bool) {
	if !on {
		return 0, false
	}
	prof, ok := e.profileFor(device, archetype)
	if !ok {
		return 0, false
	}
	cycle, hasCycle := e.ActiveCycle(device)
	if !hasCycle {
		return InterpValue(prof, 0), false
	}
	elapsed := now.Sub(cycle.Start).Minutes()
	if !prof.Repeat && elapsed > prof.Duration() {
		e.CloseCycle(device)
		return 0, true
	}
	if prof.Repeat && prof.Duration() > 0 {
		elapsed = math.Mod(elapsed, prof.Duration())
	}
	return InterpValue(prof, elapsed), false
}

func (e *Engine) profileFor(device string, archetype Archetype) (Profile, bool) {
	if archetype == ArchetypeComputer {
		if name := e.computerProfileFor(device); name != "" {
			if prof, ok := e.registry.Computers[name]; ok {
				return prof, true
			}
		}
	}
	prof, ok := e.registry.ByArchetype[archetype]
	return prof, ok
}

// computerProfileFor picks the computer sub-profile whose target mean is
// nearest the device's measured mean power. The decision is memoized per
// device for the process lifetime, including the "no history" outcome.
func (e *Engine) computerProfileFor(device string) string {
	e.mu.Lock()
	if name, done := e.pcChoice[device]; done {
		e.mu.Unlock()
		return name
	}
	e.mu.Unlock()

	chosen := ""
	if e.history != nil {
		csvID := device
		e.mu.Lock()
		if alias, ok := e.csvAliases[device]; ok {
			csvID = alias
		}
		e.mu.Unlock()

		series := e.history.LoadPowerByDeviceID(csvID)
		if !series.Empty() {
			mean := series.Mean()
			bestDelta := math.Inf(1)
			for name, prof := range e.registry.Computers {
				target := prof.TargetMean
				if target == 0 {
					target = prof.Standby
				}
				delta := math.Abs(target - mean)
				if delta < bestDelta || (delta == bestDelta && name < chosen) {
					bestDelta = delta
					chosen = name
				}
			}
			e.log.Info("computer profile selected", "device", device, "meanW", mean, "profile", chosen)
		} else {
			e.log.Info("no metered history for computer device", "device", device)
		}
	}

	e.mu.Lock()
	e.pcChoice[device] = chosen
	e.mu.Unlock()
	return chosen
}
