// v1
// internal/profile/lookup.go
package profile

import "math"

// StepValue evaluates the curve as a right-continuous step function: the
// value at the greatest key <= elapsed minutes. Repeating profiles wrap
// elapsed modulo the last key first. Before the first key the first value
// holds; an empty curve yields the standby draw.
func StepValue(p Profile, elapsed float64) float64 {
	if len(p.Curve) == 0 {
		return p.Standby
	}
	duration := p.Duration()
	t := elapsed
	if p.Repeat && duration > 0 {
		t = math.Mod(elapsed, duration)
		if t < 0 {
			t += duration
		}
	}
	if t < p.Curve[0].Minute {
		return p.Curve[0].Watts
	}
	last := p.Curve[0].Watts
	for _, pt := range p.Curve {
		if t < pt.Minute {
			return last
		}
		last = pt.Watts
	}
	return p.Curve[len(p.Curve)-1].Watts
}

// InterpValue evaluates the curve with linear interpolation between the
// bracketing keys, clamped to the first and last values outside the curve's
// domain. The replay engine uses this for smooth series; on/off devices use
// StepValue instead.
func InterpValue(p Profile, elapsed float64) float64 {
	if len(p.Curve) == 0 {
		return p.Standby
	}
	return InterpSeries(curveTimes(p), curveValues(p), elapsed)
}

// InterpSeries linearly interpolates values over times at position t,
// clamping to the boundary values outside [times[0], times[-1]]. times must
// be sorted ascending and both slices equally long and non-empty.
func InterpSeries(times, values []float64, t float64) float64 {
	if t <= times[0] {
		return values[0]
	}
	last := len(times) - 1
	if t >= times[last] {
		return values[last]
	}
	for i := 0; i < last; i++ {
		t1, t2 := times[i], times[i+1]
		if t1 <= t && t <= t2 {
			if t2 == t1 {
				return values[i]
			}
			factor := (t - t1) / (t2 - t1)
			return values[i] + (values[i+1]-values[i])*factor
		}
	}
	return values[last]
}

func curveTimes(p Profile) []float64 {
	out := make([]float64, len(p.Curve))
	for i, pt := range p.Curve {
		out[i] = pt.Minute
	}
	return out
}

func curveValues(p Profile) []float64 {
	out := make([]float64, len(p.Curve))
	for i, pt := range p.Curve {
		out[i] = pt.Watts
	}
	return out
}
