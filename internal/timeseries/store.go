// v2
// internal/timeseries/store.go
package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store owns the on-disk telemetry logs under one directory. Loggers are the
// only writers; the profile and replay engines only read. Appends to the
// same destination file are serialized by a per-path mutex, different files
// never contend.
type Store struct {
	dir string
	log *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore returns a store rooted at dir. The directory is created lazily by
// EnsureLog, not here, so a read-only consumer can point at a missing
// directory and simply see empty series.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:   dir,
		log:   logger.With(slog.String("component", "timeseries_store")),
		locks: make(map[string]*sync.Mutex),
	}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) pathLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// EnsureLog creates path with the given header row if the file does not
// exist yet. Idempotent: an existing file is never touched.
func (s *Store) EnsureLog(path string, header []string) error {
	l := s.pathLock(path)
	l.Lock()
	defer l.Unlock()

	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("create log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append writes one row to path. The row is flushed before the per-path lock
// is released so concurrent appenders never interleave partial rows.
func (s *Store) Append(path string, row []string) error {
	l := s.pathLock(path)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// readRows parses one CSV log file into header-keyed records. Malformed
// lines are skipped with a warning, a missing file yields no rows and no
// error.
func (s *Store) readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.log.Warn("skipping malformed row", "path", path, "err", err)
			continue
		}
		if len(rec) < len(header) {
			s.log.Warn("skipping short row", "path", path, "fields", len(rec))
			continue
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
