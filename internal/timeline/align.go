// v1
// internal/timeline/align.go
package timeline

import (
	"time"

	"it.uniroma2.dicii/homesim/internal/timeseries"
)

// RebaseToDay reassigns every sample's date to referenceDay while keeping
// each sample's time-of-day. A wall-clock rollover (time-of-day decreasing
// between consecutive samples) advances the assigned date by one day, so a
// recording that crosses midnight stays monotonic. The input series is not
// mutated.
func RebaseToDay(s timeseries.Series, referenceDay time.Time) timeseries.Series {
	if s.Empty() {
		return timeseries.Series{}
	}

	out := timeseries.Series{Samples: make([]timeseries.Sample, len(s.Samples))}
	day := time.Date(referenceDay.Year(), referenceDay.Month(), referenceDay.Day(), 0, 0, 0, 0, referenceDay.Location())

	prev := s.Samples[0].Timestamp
	out.Samples[0] = rebased(s.Samples[0], day)
	for i, sm := range s.Samples[1:] {
		if timeOfDayBefore(sm.Timestamp, prev) {
			day = day.AddDate(0, 0, 1)
		}
		out.Samples[i+1] = rebased(sm, day)
		prev = sm.Timestamp
	}
	return out
}

func rebased(sm timeseries.Sample, day time.Time) timeseries.Sample {
	t := sm.Timestamp
	sm.Timestamp = time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), day.Location())
	return sm
}

func timeOfDayBefore(a, b time.Time) bool {
	am := a.Hour()*3600 + a.Minute()*60 + a.Second()
	bm := b.Hour()*3600 + b.Minute()*60 + b.Second()
	if am != bm {
		return am < bm
	}
	return a.Nanosecond() < b.Nanosecond()
}

// AlignStart shifts the simulated series so its first sample coincides with
// the real series' first sample. Display-only: a copy is returned, stored
// data is never touched. An empty input on either side returns the
// simulated series unchanged.
func AlignStart(simulated, real timeseries.Series) timeseries.Series {
	if simulated.Empty() || real.Empty() {
		return simulated
	}
	shift := real.First().Timestamp.Sub(simulated.First().Timestamp)
	out := timeseries.Series{Samples: make([]timeseries.Sample, len(simulated.Samples))}
	for i, sm := range simulated.Samples {
		sm.Timestamp = sm.Timestamp.Add(shift)
		out.Samples[i] = sm
	}
	return out
}
