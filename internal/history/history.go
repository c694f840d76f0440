// Package history persists prediction records in an append-only log.
package history

import (
	"context"
	"fmt"
	"time"
)

// TimeLayout is how record times are written to the CSV log.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Header is the CSV log's first row.
var Header = []string{"File", "Prediksi", "Waktu"}

// Record is one accepted image's prediction.
type Record struct {
	File  string    `json:"file"`
	Label string    `json:"label"`
	Time  time.Time `json:"time"`
	// RawTime holds the Waktu cell verbatim when it could not be parsed;
	// Time is zero then.
	RawTime string `json:"raw_time,omitempty"`
}

// Stamp is the record time as shown to users.
func (r Record) Stamp() string {
	if r.RawTime != "" || r.Time.IsZero() {
		return r.RawTime
	}
	return r.Time.Format("2006-01-02 15:04:05")
}

// Store is an append-only sequence of records. Append never rewrites or
// reorders existing rows; List returns every row in append order.
type Store interface {
	Append(ctx context.Context, records []Record) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// Open returns the store for backend ("csv" or "postgres").
func Open(ctx context.Context, backend, path, databaseURL string) (Store, error) {
	switch backend {
	case "csv":
		return NewCSVStore(path), nil
	case "postgres":
		return NewPostgresStore(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("history: unknown backend %q", backend)
	}
}

var timeLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// parseTime accepts the layouts older logs were written with.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
