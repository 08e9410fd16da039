// v1
// internal/profile/predict.go
package profile

import "time"

// PredictedSample is one point of a forward consumption prediction.
type PredictedSample struct {
	Timestamp time.Time
	Watts     float64
}

// PredictConsumption simulates device draw forward from start, sampling
// every step over the horizon. The output is deterministic: it evaluates
// the same profile walk the live tick would, which makes it usable both for
// chart previews and for generating datasets. Cycle termination is not
// applied while predicting; the profile is read as-is.
func (e *Engine) PredictConsumption(device string, archetype Archetype, start time.Time, on bool, horizon, step time.Duration) []PredictedSample {
	if horizon <= 0 || step <= 0 {
		return nil
	}

	steps := int(horizon / step)
	if steps < 1 {
		steps = 1
	}

	prof, haveProf := e.profileFor(device, archetype)
	cycle, hasCycle := e.ActiveCycle(device)

	out := make([]PredictedSample, 0, steps+1)
	for i := 0; i <= steps; i++ {
		ts := start.Add(time.Duration(i) * step)
		var w float64
		switch {
		case !on || !haveProf:
			w = 0
		case hasCycle:
			w = StepValue(prof, ts.Sub(cycle.Start).Minutes())
		case len(prof.Curve) > 0:
			w = prof.Curve[0].Watts
		default:
			w = prof.Standby
		}
		out = append(out, PredictedSample{Timestamp: ts, Watts: w})
	}
	return out
}

// PredictSmartMeter is the smart-meter alias: a meter's prediction is the
// prediction of its associated device.
func (e *Engine) PredictSmartMeter(associatedDevice string, archetype Archetype, start time.Time, on bool, horizon, step time.Duration) []PredictedSample {
	return e.PredictConsumption(associatedDevice, archetype, start, on, horizon, step)
}
