// v2
// internal/telemetry/env.go
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"it.uniroma2.dicii/homesim/internal/metrics"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// DHTReader is the hardware-driver port for DHT22-style probes. The driver
// is a collaborator owned outside this core; tests and hardware-less hosts
// plug in fakes.
type DHTReader interface {
	Read(gpio int) (tempC, humPct float64, err error)
}

// DHTReaderFunc adapts a function to the DHTReader interface.
type DHTReaderFunc func(gpio int) (float64, float64, error)

func (f DHTReaderFunc) Read(gpio int) (float64, float64, error) {
	return f(gpio)
}

// StartEnv launches a background poller reading a local temperature and
// humidity probe on the given GPIO pin, writing one environment row per
// interval. A failed read still writes the row, with explicit blank fields
// rather than a gap. Starting an already-running label is a no-op returning
// the live handle.
func (r *Registry) StartEnv(label string, gpio int, interval time.Duration) (Handle, error) {
	if label == "" {
		return Handle{}, fmt.Errorf("environment logger needs a sensor label")
	}
	if gpio < 0 {
		return Handle{}, fmt.Errorf("invalid GPIO %d for sensor %q", gpio, label)
	}
	if interval <= 0 {
		interval = time.Minute
	}

	dest := timeseries.EnvLogPath(r.store.Dir(), label)
	if err := r.store.EnsureLog(dest, timeseries.EnvHeader); err != nil {
		return Handle{}, fmt.Errorf("prepare environment log: %w", err)
	}

	poll := r.envPoll(label, gpio, dest)
	return r.start(label, strconv.Itoa(gpio), dest, interval, poll), nil
}

func (r *Registry) envPoll(label string, gpio int, dest string) pollFunc {
	return func(ctx context.Context, now time.Time) error {
		tempField, humField := "", ""
		began := time.Now()
		if r.dht != nil {
			t, h, err := r.dht.Read(gpio)
			if err != nil {
				metrics.ObservePollError("env")
				r.log.Warn("sensor read failed", "label", label, "gpio", gpio, "err", err)
			} else {
				tempField = strconv.FormatFloat(t, 'f', -1, 64)
				humField = strconv.FormatFloat(h, 'f', -1, 64)
			}
		} else {
			metrics.ObservePollError("env")
		}
		metrics.ObservePollDuration("env", time.Since(began))

		row := []string{
			timeseries.FormatEnvTime(now),
			label,
			strconv.Itoa(gpio),
			tempField,
			humField,
		}
		if err := r.store.Append(dest, row); err != nil {
			return fmt.Errorf("append environment row: %w", err)
		}
		metrics.ObserveSampleAppended("env")
		if r.sink != nil {
			r.sink.PublishSample(ctx, "env", label, row, now)
		}
		return nil
	}
}
