// v1
// internal/timeseries/store_test.go
package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureLogIdempotent(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())
	path := PowerLogPath(dir, "Smart Meter PC")

	if err := st.EnsureLog(path, PowerHeader); err != nil {
		t.Fatalf("ensure log failed: %v", err)
	}
	if err := st.Append(path, []string{"2024-03-01 10:00:00.000", "pc", "PC", "10.0.0.2", "55.1", "230.0", "0.24"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := st.EnsureLog(path, PowerHeader); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row after re-ensure, got %d rows", len(rows))
	}
}

func TestConcurrentAppendsStayAtomic(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())
	path := PowerLogPath(dir, "shared")

	if err := st.EnsureLog(path, PowerHeader); err != nil {
		t.Fatalf("ensure log failed: %v", err)
	}

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				row := []string{
					"2024-03-01 10:00:00.000",
					fmt.Sprintf("writer-%d", w),
					"PC",
					"10.0.0.2",
					"55.0", "230.0", "0.24",
				}
				if err := st.Append(path, row); err != nil {
					t.Errorf("append failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	rows := readAll(t, path)
	if len(rows) != 1+writers*perWriter {
		t.Fatalf("expected %d rows, got %d", 1+writers*perWriter, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(PowerHeader) {
			t.Fatalf("row %d has %d fields, want %d (partial interleaved write)", i, len(row), len(PowerHeader))
		}
	}
}

func TestAppendToDistinctFilesDoNotShareLock(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())

	a := EnvLogPath(dir, "kitchen")
	b := EnvLogPath(dir, "bedroom")
	if a == b {
		t.Fatalf("distinct labels mapped to the same path %q", a)
	}
	if st.pathLock(a) == st.pathLock(b) {
		t.Fatalf("distinct paths share one lock")
	}
	if st.pathLock(a) != st.pathLock(a) {
		t.Fatalf("same path resolved to different locks")
	}
}

func TestMalformedRowsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, discardLogger())
	path := EnvLogPath(dir, "attic")

	content := "timestamp_iso,label,gpio,temp_C,hum_%\n" +
		"2024-03-01 10:00:00,attic,4,21.5,40\n" +
		"garbage line\n" +
		"2024-03-01 10:01:00,attic,4,not-a-number,41\n" +
		"2024-03-01 10:02:00,attic,4,22.5,42\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	series := st.LoadTempByLabel("attic")
	if series.Len() != 3 {
		t.Fatalf("expected 3 resampled minutes (ffill bridges the bad row), got %d", series.Len())
	}
	// Minute 10:01 had no parsable value, forward-fill repeats 21.5.
	if series.Samples[1].Value != 21.5 {
		t.Fatalf("expected forward-filled 21.5 at the gap, got %v", series.Samples[1].Value)
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", filepath.Base(path), err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", filepath.Base(path), err)
	}
	return rows
}
