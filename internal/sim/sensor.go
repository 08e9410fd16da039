// v3
// internal/sim/sensor.go
package sim

import (
	"fmt"

	"it.uniroma2.dicii/homesim/internal/profile"
)

// SensorKind discriminates the virtual sensor variants. Each variant
// carries only the fields its kind needs, instead of one wide record with
// mostly-unused slots.
type SensorKind string

const (
	KindPIR         SensorKind = "PIR"
	KindTemperature SensorKind = "Temperature"
	KindSwitch      SensorKind = "Switch"
	KindSmartMeter  SensorKind = "SmartMeter"
	KindWeight      SensorKind = "Weight"
)

// Sensor is one virtual sensor in the simulated building.
type Sensor struct {
	Name string
	Kind SensorKind

	Min   float64
	Max   float64
	Step  float64
	State float64

	// Direction is the facing angle in degrees. PIR only.
	Direction float64
	// Device names the appliance whose consumption this meter reports.
	// Smart meters only.
	Device string

	// simMinutes is this sensor's private simulated-minute counter used
	// to index replayed history. Temperature only.
	simMinutes float64
}

// NewSensor builds a sensor of the given kind with that kind's default
// range, step, and initial state.
func NewSensor(name string, kind SensorKind) (*Sensor, error) {
	if name == "" {
		return nil, fmt.Errorf("sensor needs a name")
	}
	s := &Sensor{Name: name, Kind: kind}
	switch kind {
	case KindPIR:
		s.Min, s.Max, s.Step = 0, 1, 1
	case KindTemperature:
		s.Min, s.Max, s.Step, s.State = 18, 35, 0.5, 18
	case KindSwitch:
		s.Min, s.Max, s.Step = 0, 1, 1
	case KindSmartMeter:
		s.Min, s.Max, s.Step = 0, 5000, 10
	case KindWeight:
		s.Min, s.Max, s.Step = 0, 1, 1
	default:
		return nil, fmt.Errorf("unknown sensor kind %q", kind)
	}
	return s, nil
}

// Settable reports whether the sensor state may be set from outside the
// tick loop. Temperature and smart-meter states are owned by the runtime.
func (s *Sensor) Settable() bool {
	switch s.Kind {
	case KindPIR, KindSwitch, KindWeight:
		return true
	}
	return false
}

func (s *Sensor) clampState() {
	if s.State < s.Min {
		s.State = s.Min
	}
	if s.State > s.Max {
		s.State = s.Max
	}
}

// Device is one virtual appliance. Archetype names its consumption profile.
type Device struct {
	Name      string
	Archetype profile.Archetype
	On        bool
}
