// v2
// internal/telemetry/power.go
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"it.uniroma2.dicii/homesim/internal/metrics"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// PowerLoggerOptions tunes one power poller. Zero values take defaults.
type PowerLoggerOptions struct {
	// DeviceID overrides the id derived from the device name.
	DeviceID string
	// IDRules overrides the default substring derivation rules.
	IDRules []timeseries.IDRule
	// Destination overrides the per-device log path.
	Destination string
}

// StartPower launches a background poller against a smart-plug address,
// writing one power row per interval. An empty device name is resolved by
// asking the plug itself. Starting an already-running device is a no-op
// returning the live handle.
func (r *Registry) StartPower(device, addr string, interval time.Duration, opts PowerLoggerOptions) (Handle, error) {
	if addr == "" {
		return Handle{}, fmt.Errorf("power logger needs a target address")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if device == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		device = r.shelly.DeviceName(ctx, addr)
		cancel()
	}

	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = timeseries.DeriveDeviceID(device, opts.IDRules)
	}
	dest := opts.Destination
	if dest == "" {
		dest = timeseries.PowerLogPath(r.store.Dir(), device)
	}

	if err := r.store.EnsureLog(dest, timeseries.PowerHeader); err != nil {
		return Handle{}, fmt.Errorf("prepare power log: %w", err)
	}

	poll := r.powerPoll(device, deviceID, addr, dest)
	return r.start(device, addr, dest, interval, poll), nil
}

func (r *Registry) powerPoll(device, deviceID, addr, dest string) pollFunc {
	return func(ctx context.Context, now time.Time) error {
		began := time.Now()
		reading, err := r.shelly.Read(ctx, addr)
		metrics.ObservePollDuration("power", time.Since(began))
		if err != nil {
			metrics.ObservePollError("power")
			return fmt.Errorf("poll %s: %w", addr, err)
		}

		reading = deriveVoltage(reading)
		row := []string{
			timeseries.FormatPowerTime(now),
			device,
			deviceID,
			addr,
			fmtNum(reading.Power),
			fmtNum(reading.Voltage),
			fmtNum(reading.Current),
		}
		if err := r.store.Append(dest, row); err != nil {
			metrics.ObservePollError("power")
			return fmt.Errorf("append power row: %w", err)
		}
		metrics.ObserveSampleAppended("power")
		if r.sink != nil {
			r.sink.PublishSample(ctx, "power", device, row, now)
		}
		return nil
	}
}

func fmtNum(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
