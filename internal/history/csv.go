package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

// CSVStore appends records to a comma-separated file. Writers in this
// process are serialized by mu; writers in other processes by an advisory
// lock on <path>.lock. Each call opens its own lock handle so that a reader's
// shared lock and a writer's exclusive lock conflict even within one process.
type CSVStore struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

// NewCSVStore returns a store backed by path. The file is created on the
// first Append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Path is the log file location.
func (s *CSVStore) Path() string { return s.path }

// Append writes records at the end of the log, writing the header first if
// the file is new or empty.
func (s *CSVStore) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock := flock.New(s.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("history: lock %s: %w", s.path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("history: open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("history: stat %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			f.Close()
			return fmt.Errorf("history: write header: %w", err)
		}
	}
	for _, r := range records {
		if err := w.Write([]string{r.File, r.Label, r.Time.Format(TimeLayout)}); err != nil {
			f.Close()
			return fmt.Errorf("history: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("history: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("history: sync: %w", err)
	}
	return f.Close()
}

// List reads every record in file order. A missing log is an empty history.
func (s *CSVStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The lock file lives next to the log, so a missing directory would
	// fail the lock before the log's absence is noticed.
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	lock := flock.New(s.lockPath)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("history: lock %s: %w", s.path, err)
	}
	defer lock.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", s.path, err)
	}
	defer f.Close()

	return readCSV(f)
}

func readCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	var records []Record
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("history: read: %w", err)
		}
		if line == 1 && row[0] == Header[0] && row[1] == Header[1] && row[2] == Header[2] {
			continue
		}
		rec := Record{File: row[0], Label: row[1]}
		if t, err := parseTime(row[2]); err == nil {
			rec.Time = t
		} else {
			rec.RawTime = row[2]
		}
		records = append(records, rec)
	}
}

// Close is a no-op; the file is opened per call.
func (s *CSVStore) Close() error { return nil }
