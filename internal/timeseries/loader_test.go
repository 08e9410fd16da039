// v1
// internal/timeseries/loader_test.go
package timeseries

import (
	"os"
	"testing"
	"time"
)

func TestCanonIDEquivalence(t *testing.T) {
	cases := [][2]string{
		{"Smart_Meter-PC", "smartmeterpc"},
		{"Smart-Meter_PC", "SMARTMETERPC"},
		{"smartmeter pc", "SmartMeterPC"},
	}
	for _, c := range cases {
		if CanonID(c[0]) != CanonID(c[1]) {
			t.Fatalf("expected canon(%q) == canon(%q), got %q vs %q", c[0], c[1], CanonID(c[0]), CanonID(c[1]))
		}
	}
	if CanonID("Smart_Meter-PC") != "smartmeterpc" {
		t.Fatalf("unexpected canonical form %q", CanonID("Smart_Meter-PC"))
	}
}

func TestDeriveDeviceID(t *testing.T) {
	if got := DeriveDeviceID("Andrea's Laptop", nil); got != "PC" {
		t.Fatalf("laptop should derive PC, got %q", got)
	}
	if got := DeriveDeviceID("Lavatrice Garage", nil); got != "WASHER" {
		t.Fatalf("lavatrice should derive WASHER, got %q", got)
	}
	if got := DeriveDeviceID("mystery gadget", nil); got != "UNKNOWN" {
		t.Fatalf("unmatched name should derive UNKNOWN, got %q", got)
	}
	custom := []IDRule{{Substring: "gadget", ID: "GADGET"}}
	if got := DeriveDeviceID("Mystery Gadget", custom); got != "GADGET" {
		t.Fatalf("custom rule should win, got %q", got)
	}
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
}

func TestLoadPowerMergesFilesAndCanonicalizes(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())

	writeFixture(t, PowerLogPath(dir, "desk"), "timestamp_iso,device,device_id,ip,power_W,voltage_V,current_A\n"+
		"2024-03-01 10:00:00.000,desk,Smart-Meter_PC,10.0.0.2,50.0,230.0,0.22\n"+
		"2024-03-01 10:02:00.000,desk,Smart-Meter_PC,10.0.0.2,60.0,230.0,0.26\n")
	writeFixture(t, PowerLogPath(dir, "corner"), "timestamp_iso,device,device_id,ip,power_W,voltage_V,current_A\n"+
		"2024-03-01 10:01:00.000,corner,smartmeter pc,10.0.0.3,55.0,230.0,0.24\n"+
		"2024-03-01 10:01:20.000,corner,OVEN,10.0.0.9,900.0,230.0,3.9\n")

	series := st.LoadPowerByDeviceID("SMARTMETERPC")
	if series.Len() != 3 {
		t.Fatalf("expected 3 minutes across both files, got %d", series.Len())
	}
	if series.First().Value != 50.0 || series.Last().Value != 60.0 {
		t.Fatalf("unexpected boundary values %v / %v", series.First().Value, series.Last().Value)
	}
	// The OVEN row shares a minute with the wanted PC row but must not leak in.
	if series.Samples[1].Value != 55.0 {
		t.Fatalf("expected 55.0 at 10:01, got %v", series.Samples[1].Value)
	}
}

func TestLoadPowerDuplicateTimestampLastWins(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())

	writeFixture(t, PowerLogPath(dir, "desk"), "timestamp_iso,device,device_id,ip,power_W,voltage_V,current_A\n"+
		"2024-03-01 10:00:00.000,desk,PC,10.0.0.2,50.0,230.0,0.22\n"+
		"2024-03-01 10:00:00.000,desk,PC,10.0.0.2,70.0,230.0,0.30\n")

	series := st.LoadPowerByDeviceID("PC")
	if series.Len() != 1 {
		t.Fatalf("expected a single deduplicated minute, got %d", series.Len())
	}
	if series.First().Value != 70.0 {
		t.Fatalf("expected last write 70.0 to win, got %v", series.First().Value)
	}
}

func TestLoadPowerMedianWithinMinute(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())

	writeFixture(t, PowerLogPath(dir, "desk"), "timestamp_iso,device,device_id,ip,power_W,voltage_V,current_A\n"+
		"2024-03-01 10:00:05.000,desk,PC,10.0.0.2,10.0,230.0,0.1\n"+
		"2024-03-01 10:00:25.000,desk,PC,10.0.0.2,90.0,230.0,0.4\n"+
		"2024-03-01 10:00:45.000,desk,PC,10.0.0.2,20.0,230.0,0.1\n")

	series := st.LoadPowerByDeviceID("PC")
	if series.Len() != 1 {
		t.Fatalf("expected one bucket, got %d", series.Len())
	}
	if series.First().Value != 20.0 {
		t.Fatalf("expected median 20.0, got %v", series.First().Value)
	}
	if !series.First().Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket not aligned to the minute: %v", series.First().Timestamp)
	}
}

func TestLoadTempByGPIOFallback(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())

	writeFixture(t, EnvLogPath(dir, "old-label"), "timestamp_iso,label,gpio,temp_C,hum_%\n"+
		"2024-03-01 08:00:00,old-label,17,19.5,45\n"+
		"2024-03-01 08:01:00,old-label,17,19.6,45\n")
	writeFixture(t, EnvLogPath(dir, "other"), "timestamp_iso,label,gpio,temp_C,hum_%\n"+
		"2024-03-01 08:00:00,other,4,25.0,30\n")

	series := st.LoadTempByGPIO(17)
	if series.Len() != 2 {
		t.Fatalf("expected 2 samples for gpio 17, got %d", series.Len())
	}
	if series.First().Value != 19.5 {
		t.Fatalf("unexpected first value %v", series.First().Value)
	}

	if !st.LoadTempByLabel("nonexistent").Empty() {
		t.Fatalf("missing file should load as an empty series")
	}
}

func TestRelativeMinutes(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	s := Series{Samples: []Sample{
		{Timestamp: base, Value: 20},
		{Timestamp: base.Add(10 * time.Minute), Value: 22},
		{Timestamp: base.Add(20 * time.Minute), Value: 24},
	}}
	times, values := s.RelativeMinutes()
	if times[0] != 0 || times[1] != 10 || times[2] != 20 {
		t.Fatalf("unexpected relative minutes %v", times)
	}
	if values[2] != 24 {
		t.Fatalf("unexpected values %v", values)
	}
}
