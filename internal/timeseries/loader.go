// v2
// internal/timeseries/loader.go
package timeseries

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RowPredicate decides whether one parsed CSV row belongs to the series
// being assembled.
type RowPredicate func(row map[string]string) bool

// Resampling mode for LoadMatching. Power series take the plain per-minute
// median; sparse environment series additionally forward-fill the gaps
// between populated minutes.
type Resampling int

const (
	ResampleMedian Resampling = iota
	ResampleMedianFFill
)

// LoadMatching scans every file under the store directory matching glob,
// keeps rows accepted by pred, coerces valueColumn to a float, drops rows
// that fail to parse, sorts by timestamp, deduplicates timestamps keeping
// the last occurrence, and resamples onto a 1-minute grid. Missing files
// and unreadable rows are skipped, an empty result is an empty series.
func (s *Store) LoadMatching(glob string, pred RowPredicate, valueColumn, sourceKey string, mode Resampling) Series {
	paths, err := filepath.Glob(filepath.Join(s.dir, glob))
	if err != nil {
		s.log.Warn("bad glob pattern", "glob", glob, "err", err)
		return Series{}
	}

	var raw []Sample
	for _, path := range paths {
		rows, err := s.readRows(path)
		if err != nil {
			s.log.Warn("skipping unreadable log", "path", path, "err", err)
			continue
		}
		for _, row := range rows {
			if pred != nil && !pred(row) {
				continue
			}
			ts, ok := ParseRowTime(strings.TrimSpace(row["timestamp_iso"]))
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[valueColumn]), 64)
			if err != nil {
				continue
			}
			raw = append(raw, Sample{Timestamp: ts, Value: v, SourceKey: sourceKey})
		}
	}
	if len(raw) == 0 {
		return Series{}
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Timestamp.Before(raw[j].Timestamp) })

	// Last write wins on duplicate timestamps.
	dedup := raw[:0]
	for _, sm := range raw {
		if len(dedup) > 0 && dedup[len(dedup)-1].Timestamp.Equal(sm.Timestamp) {
			dedup[len(dedup)-1] = sm
			continue
		}
		dedup = append(dedup, sm)
	}

	return resample(dedup, mode)
}

// resample buckets samples onto minute boundaries, aggregating each bucket
// with the median. With ResampleMedianFFill the grid is continuous from the
// first to the last populated minute and empty minutes repeat the previous
// value; otherwise only populated minutes are emitted.
func resample(samples []Sample, mode Resampling) Series {
	if len(samples) == 0 {
		return Series{}
	}

	type bucket struct {
		minute time.Time
		values []float64
	}
	var buckets []bucket
	for _, sm := range samples {
		minute := sm.Timestamp.Truncate(time.Minute)
		if len(buckets) > 0 && buckets[len(buckets)-1].minute.Equal(minute) {
			b := &buckets[len(buckets)-1]
			b.values = append(b.values, sm.Value)
			continue
		}
		buckets = append(buckets, bucket{minute: minute, values: []float64{sm.Value}})
	}

	key := samples[0].SourceKey
	out := Series{Samples: make([]Sample, 0, len(buckets))}

	if mode == ResampleMedianFFill {
		idx := 0
		last := median(buckets[0].values)
		end := buckets[len(buckets)-1].minute
		for minute := buckets[0].minute; !minute.After(end); minute = minute.Add(time.Minute) {
			if idx < len(buckets) && buckets[idx].minute.Equal(minute) {
				last = median(buckets[idx].values)
				idx++
			}
			out.Samples = append(out.Samples, Sample{Timestamp: minute, Value: last, SourceKey: key})
		}
		return out
	}

	for _, b := range buckets {
		out.Samples = append(out.Samples, Sample{Timestamp: b.minute, Value: median(b.values), SourceKey: key})
	}
	return out
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// LoadPowerByDeviceID merges every power log whose rows canonicalize to the
// wanted device id.
func (s *Store) LoadPowerByDeviceID(deviceID string) Series {
	want := CanonID(deviceID)
	pred := func(row map[string]string) bool {
		return CanonID(row["device_id"]) == want
	}
	return s.LoadMatching(PowerGlob, pred, "power_W", deviceID, ResampleMedian)
}

// LoadPowerByIP merges every power log whose rows carry the wanted source
// address.
func (s *Store) LoadPowerByIP(ip string) Series {
	pred := func(row map[string]string) bool {
		return strings.TrimSpace(row["ip"]) == ip
	}
	return s.LoadMatching(PowerGlob, pred, "power_W", ip, ResampleMedian)
}

// LoadTempByLabel loads the temperature series recorded under one sensor
// label. The label also selects the file, so only that file is scanned.
func (s *Store) LoadTempByLabel(label string) Series {
	glob := "dht_" + SanitizeName(label) + ".csv"
	return s.LoadMatching(glob, nil, "temp_C", label, ResampleMedianFFill)
}

// LoadTempByGPIO merges every environment log, keeping rows recorded from
// the wanted GPIO pin. Used as fallback when a sensor's label does not
// match any file directly.
func (s *Store) LoadTempByGPIO(gpio int) Series {
	pred := func(row map[string]string) bool {
		g, err := strconv.Atoi(strings.TrimSpace(row["gpio"]))
		return err == nil && g == gpio
	}
	return s.LoadMatching(EnvGlob, pred, "temp_C", strconv.Itoa(gpio), ResampleMedianFFill)
}

// LoadHumidityByLabel mirrors LoadTempByLabel for the humidity column.
func (s *Store) LoadHumidityByLabel(label string) Series {
	glob := "dht_" + SanitizeName(label) + ".csv"
	return s.LoadMatching(glob, nil, "hum_%", label, ResampleMedianFFill)
}
