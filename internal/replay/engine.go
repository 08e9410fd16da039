// v3
// internal/replay/engine.go
package replay

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"it.uniroma2.dicii/homesim/internal/profile"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// History is the read side of the time-series store the engine consumes.
// *timeseries.Store satisfies it.
type History interface {
	LoadTempByLabel(label string) timeseries.Series
	LoadTempByGPIO(gpio int) timeseries.Series
	LoadPowerByDeviceID(deviceID string) timeseries.Series
	LoadPowerByIP(ip string) timeseries.Series
}

// Kind selects which recorded history backs a sensor and the safety range
// predicted values are clamped into.
type Kind struct {
	Name string
	Min  float64
	Max  float64
}

var (
	KindTemperature = Kind{Name: "temperature", Min: 15, Max: 40}
	KindSmartMeter  = Kind{Name: "power", Min: 0, Max: 5000}
)

// Tuning constants for intraday pattern prediction: the time-of-day match
// tolerance, how many calendar days back contribute, and the per-day weight
// halving.
const (
	patternToleranceMin = 30.0
	patternMaxDays      = 7
	patternDecay        = 0.5
	slopeDamping        = 0.95
	minutesPerDay       = 1440.0
)

type history struct {
	times  []float64 // minutes relative to the first sample
	values []float64
	wall   []time.Time // absolute sample timestamps, for intraday matching
}

// Engine resolves the value a virtual sensor should show at a simulated
// instant, replaying recorded history inside the horizon and predicting
// from intraday patterns beyond it. The per-sensor history is loaded once
// and cached for the process lifetime, so tick-path calls never touch the
// disk after the first.
type Engine struct {
	store    History
	bindings map[string]Binding
	log      *slog.Logger

	mu    sync.Mutex
	cache map[string]*history // nil entry caches "no recorded history"
}

// NewEngine wires a replay engine over a store and the sensor-binding map.
// bindings may be nil.
func NewEngine(store History, bindings map[string]Binding, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if bindings == nil {
		bindings = map[string]Binding{}
	}
	return &Engine{
		store:    store,
		bindings: bindings,
		log:      logger.With(slog.String("component", "replay_engine")),
		cache:    make(map[string]*history),
	}
}

// HasHistory reports whether any recorded series exists for the sensor,
// loading and caching it on first use.
func (e *Engine) HasHistory(sensor string, kind Kind) bool {
	return e.load(sensor, kind) != nil
}

// Value returns the value sensor should show at simMinutes simulated
// minutes since simulation start. ok is false only when the sensor has no
// recorded history at all; the caller then applies its own no-history
// fallback. A call never panics and never returns NaN.
func (e *Engine) Value(sensor string, kind Kind, simMinutes float64) (value float64, ok bool) {
	h := e.load(sensor, kind)
	if h == nil {
		return 0, false
	}

	first := h.times[0]
	last := h.times[len(h.times)-1]

	switch {
	case simMinutes <= first:
		// No extrapolation backward.
		return h.values[0], true
	case simMinutes <= last:
		return profile.InterpSeries(h.times, h.values, simMinutes), true
	default:
		return e.predictBeyond(sensor, kind, h, simMinutes), true
	}
}

// load resolves and caches the matched series for a sensor: by label first,
// then via the sensor's GPIO or IP binding. An unusable series is cached as
// nil so the disk is not rescanned every tick.
func (e *Engine) load(sensor string, kind Kind) *history {
	e.mu.Lock()
	h, cached := e.cache[sensor]
	e.mu.Unlock()
	if cached {
		return h
	}

	series := e.lookup(sensor, kind)
	if series.Empty() {
		e.log.Info("no recorded history", "sensor", sensor, "kind", kind.Name)
		e.mu.Lock()
		e.cache[sensor] = nil
		e.mu.Unlock()
		return nil
	}

	times, values := series.RelativeMinutes()
	wall := make([]time.Time, series.Len())
	for i, sm := range series.Samples {
		wall[i] = sm.Timestamp
	}
	h = &history{times: times, values: values, wall: wall}

	e.log.Info("history loaded",
		"sensor", sensor, "kind", kind.Name,
		"samples", series.Len(),
		"from", series.First().Timestamp, "to", series.Last().Timestamp,
	)

	e.mu.Lock()
	e.cache[sensor] = h
	e.mu.Unlock()
	return h
}

func (e *Engine) lookup(sensor string, kind Kind) timeseries.Series {
	if kind.Name == KindSmartMeter.Name {
		if s := e.store.LoadPowerByDeviceID(sensor); !s.Empty() {
			return s
		}
		if b, ok := e.bindings[sensor]; ok && b.IP != "" {
			return e.store.LoadPowerByIP(b.IP)
		}
		return timeseries.Series{}
	}

	if s := e.store.LoadTempByLabel(sensor); !s.Empty() {
		return s
	}
	if b, ok := e.bindings[sensor]; ok && b.By == BindByDHT {
		return e.store.LoadTempByGPIO(b.GPIO)
	}
	return timeseries.Series{}
}

// predictBeyond produces a value past the recorded horizon. It matches the
// target instant's time-of-day against the whole history within a +/-30
// minute circular window, averages matches per calendar day, and combines
// the most recent days with exponentially decreasing weight. With no
// matching day it falls back to damping the last observed slope.
func (e *Engine) predictBeyond(sensor string, kind Kind, h *history, simMinutes float64) float64 {
	target := h.wall[0].Add(time.Duration(simMinutes * float64(time.Minute)))
	targetMoD := minuteOfDay(target)
	targetDay := target.Format("2006-01-02")

	type dayAcc struct {
		sum   float64
		count int
	}
	days := map[string]*dayAcc{}
	var dayKeys []string
	for i, ts := range h.wall {
		// Only prior days count as pattern: the target's own calendar day
		// would otherwise always match its own tail.
		if ts.Format("2006-01-02") == targetDay {
			continue
		}
		if circularDiff(minuteOfDay(ts), targetMoD) > patternToleranceMin {
			continue
		}
		key := ts.Format("2006-01-02")
		acc, ok := days[key]
		if !ok {
			acc = &dayAcc{}
			days[key] = acc
			dayKeys = append(dayKeys, key)
		}
		acc.sum += h.values[i]
		acc.count++
	}

	if len(dayKeys) > 0 {
		// Most recent day first, weight halving per day further back.
		sort.Sort(sort.Reverse(sort.StringSlice(dayKeys)))
		if len(dayKeys) > patternMaxDays {
			dayKeys = dayKeys[:patternMaxDays]
		}
		var weighted, total float64
		weight := 1.0
		for _, key := range dayKeys {
			acc := days[key]
			weighted += weight * (acc.sum / float64(acc.count))
			total += weight
			weight *= patternDecay
		}
		return clamp(weighted/total, kind.Min, kind.Max)
	}

	// No historical day covers this time-of-day: damp the last slope.
	last := h.values[len(h.values)-1]
	slope := lastSlope(h.times, h.values)
	steps := simMinutes - h.times[len(h.times)-1]
	predicted := last + slope*math.Pow(slopeDamping, steps)
	e.log.Info("damped extrapolation", "sensor", sensor, "slope", slope, "steps", steps)
	return clamp(predicted, kind.Min, kind.Max)
}

// lastSlope returns the slope of the most recent two samples in value units
// per minute, 0 when undefined.
func lastSlope(times, values []float64) float64 {
	n := len(times)
	if n < 2 {
		return 0
	}
	dt := times[n-1] - times[n-2]
	if dt <= 0 {
		return 0
	}
	return (values[n-1] - values[n-2]) / dt
}

func minuteOfDay(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
}

// circularDiff is the distance between two minute-of-day positions on the
// 24h circle, so 23:50 and 00:05 are 15 minutes apart.
func circularDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > minutesPerDay/2 {
		d = minutesPerDay - d
	}
	return d
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
