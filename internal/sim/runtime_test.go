// v3
// internal/sim/runtime_test.go
package sim

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"it.uniroma2.dicii/homesim/internal/profile"
	"it.uniroma2.dicii/homesim/internal/replay"
	"it.uniroma2.dicii/homesim/internal/timeseries"
)

type fakeHistory struct {
	temps map[string]timeseries.Series
}

func (f fakeHistory) LoadTempByLabel(label string) timeseries.Series {
	return f.temps[label]
}
func (f fakeHistory) LoadTempByGPIO(int) timeseries.Series        { return timeseries.Series{} }
func (f fakeHistory) LoadPowerByDeviceID(string) timeseries.Series { return timeseries.Series{} }
func (f fakeHistory) LoadPowerByIP(string) timeseries.Series       { return timeseries.Series{} }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T, temps map[string]timeseries.Series, heatingFactor float64) *Runtime {
	t.Helper()
	log := quietLogger()
	hist := fakeHistory{temps: temps}
	profiles := profile.NewEngine(profile.DefaultRegistry(), hist, log)
	replays := replay.NewEngine(hist, nil, log)
	clock := NewClock(8 * time.Hour)
	return NewRuntime(clock, profiles, replays, nil, heatingFactor, log)
}

func mustAddSensor(t *testing.T, rt *Runtime, s *Sensor, err error) *Sensor {
	t.Helper()
	if err != nil {
		t.Fatalf("build sensor: %v", err)
	}
	if err := rt.AddSensor(s); err != nil {
		t.Fatalf("add sensor %s: %v", s.Name, err)
	}
	return s
}

func tempSeries(base time.Time, minuteVals map[int]float64) timeseries.Series {
	var s timeseries.Series
	minutes := make([]int, 0, len(minuteVals))
	for m := range minuteVals {
		minutes = append(minutes, m)
	}
	for i := 0; i < len(minutes); i++ {
		for j := i + 1; j < len(minutes); j++ {
			if minutes[j] < minutes[i] {
				minutes[i], minutes[j] = minutes[j], minutes[i]
			}
		}
	}
	for _, m := range minutes {
		s.Samples = append(s.Samples, timeseries.Sample{
			Timestamp: base.Add(time.Duration(m) * time.Minute),
			Value:     minuteVals[m],
		})
	}
	return s
}

func TestPIRExclusivity(t *testing.T) {
	rt := newTestRuntime(t, nil, 0)
	for _, name := range []string{"hall-pir", "kitchen-pir", "garage-pir"} {
		s, err := NewSensor(name, KindPIR)
		mustAddSensor(t, rt, s, err)
	}

	if err := rt.SetSensorState("hall-pir", 1); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if err := rt.SetSensorState("kitchen-pir", 1); err != nil {
		t.Fatalf("set state: %v", err)
	}

	var raised []string
	for _, s := range rt.Sensors() {
		if s.State > 0 {
			raised = append(raised, s.Name)
		}
	}
	if len(raised) != 1 || raised[0] != "kitchen-pir" {
		t.Fatalf("expected only kitchen-pir raised, got %v", raised)
	}
}

func TestTemperatureDrivenBySimulationRejectsExternalSet(t *testing.T) {
	rt := newTestRuntime(t, nil, 0)
	s, err := NewSensor("room", KindTemperature)
	mustAddSensor(t, rt, s, err)
	if err := rt.SetSensorState("room", 30); err == nil {
		t.Fatalf("temperature state must not be settable from outside")
	}
}

func TestTemperatureNoHistoryHeatsClampsAndSnaps(t *testing.T) {
	rt := newTestRuntime(t, nil, 1.4)
	s, err := NewSensor("attic", KindTemperature)
	mustAddSensor(t, rt, s, err)

	rt.Advance(1)
	// 18 + 0.5*1.4 = 18.7, snapped to the half-degree grid.
	if got := rt.Sensors()[0].State; got != 18.5 {
		t.Fatalf("after one minute got %v, want 18.5", got)
	}

	rt.Advance(200)
	if got := rt.Sensors()[0].State; got != s.Max {
		t.Fatalf("heating must clamp at max %v, got %v", s.Max, got)
	}
}

func TestTemperatureNoHistoryCoolsWithoutHeating(t *testing.T) {
	rt := newTestRuntime(t, nil, 0)
	s, err := NewSensor("cellar", KindTemperature)
	mustAddSensor(t, rt, s, err)

	rt.Advance(3)
	// Starts at the minimum, so cooling stays clamped there.
	if got := rt.Sensors()[0].State; got != s.Min {
		t.Fatalf("cooling must clamp at min %v, got %v", s.Min, got)
	}
}

func TestTemperatureReplayOverridesPhysicsAndRange(t *testing.T) {
	base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	temps := map[string]timeseries.Series{
		"kitchen": tempSeries(base, map[int]float64{0: 36.0, 10: 38.0}),
	}
	rt := newTestRuntime(t, temps, 0)
	s, err := NewSensor("kitchen", KindTemperature)
	mustAddSensor(t, rt, s, err)

	// Initial state snaps to the first recorded value clamped to range.
	if got := rt.Sensors()[0].State; got != 35.0 {
		t.Fatalf("initial state got %v, want clamped 35.0", got)
	}

	rt.Advance(5)
	// Replay interpolates 36→38 at minute 5. The sensor max (35) does not
	// clamp replayed values.
	if got := rt.Sensors()[0].State; got != 37.0 {
		t.Fatalf("replayed state got %v, want 37.0", got)
	}
}

func TestSmartMeterFollowsDeviceCycle(t *testing.T) {
	rt := newTestRuntime(t, nil, 0)
	if err := rt.AddDevice("fridge-1", profile.ArchetypeFridge); err != nil {
		t.Fatalf("add device: %v", err)
	}
	s, err := NewSensor("meter-1", KindSmartMeter)
	if err != nil {
		t.Fatalf("build sensor: %v", err)
	}
	s.Device = "fridge-1"
	if err := rt.AddSensor(s); err != nil {
		t.Fatalf("add sensor: %v", err)
	}

	rt.Advance(1)
	if got := rt.Sensors()[0].State; got != 0 {
		t.Fatalf("meter of an off device must read 0, got %v", got)
	}

	if err := rt.SetDeviceState("fridge-1", true); err != nil {
		t.Fatalf("turn on: %v", err)
	}
	rt.Advance(1)
	if got := rt.Sensors()[0].State; got <= 0 {
		t.Fatalf("meter of a running fridge must read positive watts, got %v", got)
	}

	if err := rt.SetDeviceState("fridge-1", false); err != nil {
		t.Fatalf("turn off: %v", err)
	}
	rt.Advance(1)
	if got := rt.Sensors()[0].State; got != 0 {
		t.Fatalf("meter must drop to 0 after the device turns off, got %v", got)
	}
}

func TestSmartMeterWithoutDeviceIsRejected(t *testing.T) {
	rt := newTestRuntime(t, nil, 0)
	s, err := NewSensor("orphan-meter", KindSmartMeter)
	if err != nil {
		t.Fatalf("build sensor: %v", err)
	}
	if err := rt.AddSensor(s); err == nil {
		t.Fatalf("a smart meter without an associated device must be rejected")
	}
}

func TestNonRepeatingCycleForcesDeviceOff(t *testing.T) {
	rt := newTestRuntime(t, nil, 0)
	if err := rt.AddDevice("espresso", profile.ArchetypeCoffeeMachine); err != nil {
		t.Fatalf("add device: %v", err)
	}
	s, err := NewSensor("coffee-meter", KindSmartMeter)
	if err != nil {
		t.Fatalf("build sensor: %v", err)
	}
	s.Device = "espresso"
	if err := rt.AddSensor(s); err != nil {
		t.Fatalf("add sensor: %v", err)
	}

	if err := rt.SetDeviceState("espresso", true); err != nil {
		t.Fatalf("turn on: %v", err)
	}
	rt.Advance(24 * 60)

	for _, d := range rt.Devices() {
		if d.Name == "espresso" && d.On {
			t.Fatalf("device must be forced off after its profile ends")
		}
	}
	if got := rt.Sensors()[0].State; got != 0 {
		t.Fatalf("meter must read 0 after the cycle ends, got %v", got)
	}
}

func TestClockAdvanceRollsOverMidnight(t *testing.T) {
	c := NewClock(23*time.Hour + 50*time.Minute)
	before := c.Now()
	c.Advance(20)
	after := c.Now()

	if after.Sub(before) != 20*time.Minute {
		t.Fatalf("advance moved %v, want 20m", after.Sub(before))
	}
	if after.Day() == before.Day() && after.Month() == before.Month() {
		t.Fatalf("crossing midnight must advance the date: %v -> %v", before, after)
	}
	if after.Hour() != 0 || after.Minute() != 10 {
		t.Fatalf("expected 00:10 after rollover, got %02d:%02d", after.Hour(), after.Minute())
	}
}

func TestClockTickOnlyWhenRunning(t *testing.T) {
	c := NewClock(9 * time.Hour)
	if c.Tick() {
		t.Fatalf("a paused clock must not tick")
	}
	c.Start()
	if !c.Tick() {
		t.Fatalf("a started clock must tick")
	}
	c.Pause()
	if c.Tick() {
		t.Fatalf("a paused clock must not tick")
	}
	if c.Minutes() != 1 {
		t.Fatalf("expected one elapsed minute, got %d", c.Minutes())
	}
}
