// v1
// internal/timeseries/series.go
package timeseries

import "time"

// Sample is one timestamped scalar read from a log file. SourceKey keeps the
// logical identifier the row matched on (device id, IP, GPIO, or label) so
// callers can tell rows apart when several sources share one file.
type Sample struct {
	Timestamp time.Time
	Value     float64
	SourceKey string
}

// Series is an ordered run of samples. The loaders always return series
// sorted by timestamp with at most one sample per timestamp.
type Series struct {
	Samples []Sample
}

// Empty reports whether the series holds no samples. Loaders return an empty
// series, never an error, when nothing matched.
func (s Series) Empty() bool {
	return len(s.Samples) == 0
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Samples)
}

// First returns the earliest sample. Callers must check Empty first.
func (s Series) First() Sample {
	return s.Samples[0]
}

// Last returns the latest sample. Callers must check Empty first.
func (s Series) Last() Sample {
	return s.Samples[len(s.Samples)-1]
}

// RelativeMinutes flattens the series into minutes-from-first-sample plus the
// matching values, the shape the replay engine works in.
func (s Series) RelativeMinutes() (times []float64, values []float64) {
	if s.Empty() {
		return nil, nil
	}
	t0 := s.Samples[0].Timestamp
	times = make([]float64, len(s.Samples))
	values = make([]float64, len(s.Samples))
	for i, sm := range s.Samples {
		times[i] = sm.Timestamp.Sub(t0).Minutes()
		values[i] = sm.Value
	}
	return times, values
}

// Mean returns the arithmetic mean of the values, or 0 for an empty series.
func (s Series) Mean() float64 {
	if s.Empty() {
		return 0
	}
	var sum float64
	for _, sm := range s.Samples {
		sum += sm.Value
	}
	return sum / float64(len(s.Samples))
}
