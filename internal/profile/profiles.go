// v2
// internal/profile/profiles.go
package profile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Archetype names a device category with its own power-draw template.
type Archetype string

const (
	ArchetypeFridge         Archetype = "Fridge"
	ArchetypeWashingMachine Archetype = "Washing_Machine"
	ArchetypeOven           Archetype = "Oven"
	ArchetypeComputer       Archetype = "Computer"
	ArchetypeDishwasher     Archetype = "Dishwasher"
	ArchetypeCoffeeMachine  Archetype = "Coffee_Machine"
)

// CurvePoint is one keyed point of a piecewise power curve: the draw in
// watts starting at Minute minutes into the cycle.
type CurvePoint struct {
	Minute float64
	Watts  float64
}

// Profile is the power-draw template of one archetype. Curve points are
// kept sorted by minute; Repeat makes the curve wrap modulo its last key
// instead of terminating the cycle. TargetMean is only meaningful for
// computer sub-profiles, where it drives nearest-mean selection.
type Profile struct {
	Name       string
	Standby    float64
	Curve      []CurvePoint
	Repeat     bool
	TargetMean float64
}

// Duration returns the minute key of the last curve point, 0 for an empty
// curve.
func (p Profile) Duration() float64 {
	if len(p.Curve) == 0 {
		return 0
	}
	return p.Curve[len(p.Curve)-1].Minute
}

func mkCurve(points map[float64]float64) []CurvePoint {
	out := make([]CurvePoint, 0, len(points))
	for m, w := range points {
		out = append(out, CurvePoint{Minute: m, Watts: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minute < out[j].Minute })
	return out
}

// Registry maps archetypes to profiles, with the computer sub-profiles kept
// separately because they are chosen per device rather than per archetype.
type Registry struct {
	ByArchetype map[Archetype]Profile
	Computers   map[string]Profile
}

// DefaultRegistry returns the built-in archetype templates. The curve
// constants come from metering sessions against real appliances.
func DefaultRegistry() *Registry {
	r := &Registry{
		ByArchetype: map[Archetype]Profile{
			ArchetypeFridge: {
				Name: string(ArchetypeFridge), Standby: 23, Repeat: true,
				Curve: mkCurve(map[float64]float64{
					0: 74.7, 16: 70.6, 33: 70.6, 49: 99.7, 65: 99.7, 81: 99.7,
					98: 74.8, 114: 24.0, 130: 24.0, 146: 90.1, 163: 90.1, 179: 82.9,
				}),
			},
			ArchetypeWashingMachine: {
				Name: string(ArchetypeWashingMachine), Standby: 0,
				Curve: mkCurve(map[float64]float64{
					0: 3.0, 13: 687.6, 26: 2094.3, 39: 102.9, 52: 100.3, 65: 108.3, 78: 138.7, 91: 255.0,
				}),
			},
			ArchetypeOven: {
				Name: string(ArchetypeOven), Standby: 0,
				Curve: mkCurve(map[float64]float64{0: 942.8, 3: 995.3, 6: 916.6, 9: 947.7}),
			},
			ArchetypeComputer: {
				Name: string(ArchetypeComputer), Standby: 103.5,
				Curve: mkCurve(map[float64]float64{
					0: 90.4, 13: 90.9, 26: 52.1, 65: 73.5, 78: 106.5, 101: 111.5, 114: 108.7,
					127: 103.2, 150: 100.9, 173: 102.7, 196: 103.8, 205: 105.3, 218: 104.6,
					231: 103.1, 245: 103.5,
				}),
			},
			ArchetypeDishwasher: {
				Name: string(ArchetypeDishwasher), Standby: 0,
				Curve: mkCurve(map[float64]float64{
					0: 67.1, 13: 1716.1, 26: 151.2, 39: 66.5, 52: 1966.7, 65: 7.8, 78: 4.6,
				}),
			},
			ArchetypeCoffeeMachine: {
				Name: string(ArchetypeCoffeeMachine), Standby: 0,
				Curve: mkCurve(map[float64]float64{0: 1200.0, 1: 700.0, 2: 200.0}),
			},
		},
		Computers: map[string]Profile{
			"PC_low": {
				Name: "PC_low", Standby: 35.0, TargetMean: 40.0,
				Curve: mkCurve(map[float64]float64{
					0: 30.0, 15: 35.0, 30: 40.0, 45: 38.0, 60: 42.0, 75: 39.0, 90: 41.0, 105: 40.0,
				}),
			},
			"PC_medium": {
				Name: "PC_medium", Standby: 60.0, TargetMean: 70.0,
				Curve: mkCurve(map[float64]float64{
					0: 55.0, 15: 65.0, 30: 75.0, 45: 68.0, 60: 72.0, 75: 70.0, 90: 69.0, 105: 71.0,
				}),
			},
			"PC_high": {
				Name: "PC_high", Standby: 103.5, TargetMean: 100.0,
				Curve: mkCurve(map[float64]float64{
					0: 90.4, 13: 90.9, 26: 52.1, 65: 73.5, 78: 106.5, 101: 111.5, 114: 108.7,
					127: 103.2, 150: 100.9, 173: 102.7, 196: 103.8, 205: 105.3, 218: 104.6,
					231: 103.1, 245: 103.5,
				}),
			},
		},
	}
	return r
}

type yamlProfile struct {
	Standby    float64             `yaml:"standby"`
	Repeat     bool                `yaml:"repeat"`
	TargetMean float64             `yaml:"target_mean"`
	Curve      map[float64]float64 `yaml:"curve"`
}

type yamlProfileFile struct {
	Archetypes map[string]yamlProfile `yaml:"archetypes"`
	Computers  map[string]yamlProfile `yaml:"computers"`
}

// LoadOverrides merges archetype and computer templates from a YAML file
// into the registry, replacing entries with the same name. A missing file
// is not an error so deployments without custom curves need no config.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read profiles file: %w", err)
	}
	var file yamlProfileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse profiles file: %w", err)
	}
	for name, yp := range file.Archetypes {
		if len(yp.Curve) == 0 {
			return fmt.Errorf("archetype %q has an empty curve", name)
		}
		r.ByArchetype[Archetype(name)] = Profile{
			Name: name, Standby: yp.Standby, Repeat: yp.Repeat,
			TargetMean: yp.TargetMean, Curve: mkCurve(yp.Curve),
		}
	}
	for name, yp := range file.Computers {
		if len(yp.Curve) == 0 {
			return fmt.Errorf("computer profile %q has an empty curve", name)
		}
		r.Computers[name] = Profile{
			Name: name, Standby: yp.Standby, Repeat: yp.Repeat,
			TargetMean: yp.TargetMean, Curve: mkCurve(yp.Curve),
		}
	}
	return nil
}
