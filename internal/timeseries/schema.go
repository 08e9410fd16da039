// v1
// internal/timeseries/schema.go
package timeseries

import (
	"path/filepath"
	"strings"
	"time"
)

// Row layouts written by the telemetry loggers. The column order is a wire
// contract shared with external chart tooling, do not reorder.
var (
	EnvHeader   = []string{"timestamp_iso", "label", "gpio", "temp_C", "hum_%"}
	PowerHeader = []string{"timestamp_iso", "device", "device_id", "ip", "power_W", "voltage_V", "current_A"}
)

// Timestamp layouts per domain. Power rows carry milliseconds because the
// meters can be polled sub-minute.
const (
	EnvTimeLayout   = "2006-01-02 15:04:05"
	PowerTimeLayout = "2006-01-02 15:04:05.000"
)

// EnvGlob and PowerGlob match every log file of the respective domain
// inside a logs directory.
const (
	EnvGlob   = "dht_*.csv"
	PowerGlob = "smartmeter_*.csv"
)

// CanonID lowercases an identifier and strips everything that is not a
// letter or digit, so "Smart-Meter_PC", "smartmeter pc" and "SMARTMETERPC"
// all canonicalize to the same key.
func CanonID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeName makes an entity name safe for use in a file name. Keeps
// alphanumerics and "-._", replaces everything else with a dash.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// EnvLogPath returns the per-label environment log file under dir.
func EnvLogPath(dir, label string) string {
	if label == "" {
		label = "sensor"
	}
	return filepath.Join(dir, "dht_"+SanitizeName(label)+".csv")
}

// PowerLogPath returns the per-device power log file under dir.
func PowerLogPath(dir, device string) string {
	if device == "" {
		device = "device"
	}
	return filepath.Join(dir, "smartmeter_"+SanitizeName(device)+".csv")
}

// IDRule maps a case-insensitive substring of a device name to a canonical
// device id. Rules are evaluated in order, first match wins.
type IDRule struct {
	Substring string
	ID        string
}

// DefaultIDRules is the built-in rule set used when no custom rules are
// configured.
var DefaultIDRules = []IDRule{
	{"pc", "PC"},
	{"laptop", "PC"},
	{"notebook", "PC"},
	{"wash", "WASHER"},
	{"lavatrice", "WASHER"},
	{"dryer", "DRYER"},
	{"forno", "OVEN"},
	{"oven", "OVEN"},
}

// DeriveDeviceID resolves a device name to its canonical id via the first
// matching rule, or "UNKNOWN" when nothing matches. A nil rule list falls
// back to DefaultIDRules.
func DeriveDeviceID(deviceName string, rules []IDRule) string {
	if rules == nil {
		rules = DefaultIDRules
	}
	low := strings.ToLower(deviceName)
	for _, r := range rules {
		if strings.Contains(low, strings.ToLower(r.Substring)) {
			return r.ID
		}
	}
	return "UNKNOWN"
}

// FormatEnvTime and FormatPowerTime render timestamps in the on-disk layout
// of the respective schema.
func FormatEnvTime(t time.Time) string {
	return t.Format(EnvTimeLayout)
}

func FormatPowerTime(t time.Time) string {
	return t.Format(PowerTimeLayout)
}

// ParseRowTime accepts either schema's timestamp plus the minute-precision
// variant written by older builds.
func ParseRowTime(s string) (time.Time, bool) {
	for _, layout := range []string{PowerTimeLayout, EnvTimeLayout, "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
