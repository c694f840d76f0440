package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 9, 30, 15, 123456000, time.Local)

func rec(file, label string, offset time.Duration) Record {
	return Record{File: file, Label: label, Time: t0.Add(offset)}
}

func TestAppendCreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riwayat_prediksi.csv")
	s := NewCSVStore(path)

	if err := s.Append(context.Background(), []Record{rec("a.jpg", "low", 0), rec("b.jpg", "high", time.Second)}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "File,Prediksi,Waktu\n" +
		"a.jpg,low,2025-06-01 09:30:15.123456\n" +
		"b.jpg,high,2025-06-01 09:30:16.123456\n"
	if string(data) != want {
		t.Fatalf("file =\n%s\nwant\n%s", data, want)
	}
}

func TestAppendDoesNotRepeatHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	s := NewCSVStore(path)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, []Record{rec(fmt.Sprintf("%d.jpg", i), "medium", 0)}); err != nil {
			t.Fatal(err)
		}
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "File,Prediksi,Waktu"); n != 1 {
		t.Fatalf("header appears %d times", n)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
}

func TestAppendEmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	s := NewCSVStore(path)

	if err := s.Append(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty append created the log: %v", err)
	}
}

func TestListMissingFileIsEmpty(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "log.csv"))

	records, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}

func TestListPreservesAppendOrder(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "log.csv"))
	ctx := context.Background()

	batches := [][]Record{
		{rec("a.jpg", "low", 0), rec("b.jpg", "high", time.Second)},
		{rec("c.png", "medium", 2 * time.Second)},
		{rec("a.jpg", "low", 3 * time.Second)}, // duplicates are kept
	}
	for _, b := range batches {
		if err := s.Append(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.jpg", "b.jpg", "c.png", "a.jpg"}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].File != w {
			t.Errorf("record %d file = %q, want %q", i, got[i].File, w)
		}
	}
	if !got[1].Time.Equal(t0.Add(time.Second)) {
		t.Errorf("record 1 time = %v, want %v", got[1].Time, t0.Add(time.Second))
	}
	if got[2].Label != "medium" {
		t.Errorf("record 2 label = %q", got[2].Label)
	}
}

func TestFilenamesWithCommasRoundTrip(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "log.csv"))
	ctx := context.Background()

	if err := s.Append(ctx, []Record{rec(`leaf, "best".jpg`, "high", 0)}); err != nil {
		t.Fatal(err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].File != `leaf, "best".jpg` {
		t.Fatalf("got %+v", got)
	}
}

func TestListReadsPandasTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := "File,Prediksi,Waktu\n" +
		"daun1.jpg,low,2025-05-20 10:11:12.345678\n" +
		"daun2.jpg,high,2025-05-20 10:11:13\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewCSVStore(path).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[1].Time.Second() != 13 {
		t.Errorf("second timestamp parsed as %v", got[1].Time)
	}
}

func TestListRejectsMalformedRows(t *testing.T) {
	tests := map[string]string{
		"short row":    "File,Prediksi,Waktu\na.jpg,low\n",
		"extra column": "File,Prediksi,Waktu\na.jpg,low,2025-05-20 10:11:12,x\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "log.csv")
			os.WriteFile(path, []byte(content), 0644)
			if _, err := NewCSVStore(path).List(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestListKeepsUnparseableTimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := "File,Prediksi,Waktu\na.jpg,low,yesterday\nb.jpg,high,2025-05-20 10:11:12\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewCSVStore(path).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].RawTime != "yesterday" || !got[0].Time.IsZero() || got[0].Stamp() != "yesterday" {
		t.Errorf("first record = %+v", got[0])
	}
	if got[1].RawTime != "" || got[1].Stamp() != "2025-05-20 10:11:12" {
		t.Errorf("second record = %+v", got[1])
	}
}

func TestListMissingDirectoryIsEmpty(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "nodir", "riwayat_prediksi.csv"))

	records, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List on a missing directory: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	ctx := context.Background()

	// Two stores on the same path stand in for two processes.
	stores := []*CSVStore{NewCSVStore(path), NewCSVStore(path)}

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			s := stores[w%len(stores)]
			for i := 0; i < perWriter; i++ {
				batch := []Record{
					rec(fmt.Sprintf("w%d-%d-a.jpg", w, i), "low", 0),
					rec(fmt.Sprintf("w%d-%d-b.jpg", w, i), "high", 0),
				}
				if err := s.Append(ctx, batch); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	got, err := stores[0].List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != writers*perWriter*2 {
		t.Fatalf("got %d records, want %d", len(got), writers*perWriter*2)
	}
	for i := 0; i < len(got); i += 2 {
		a, b := got[i].File, got[i+1].File
		if strings.TrimSuffix(a, "-a.jpg") != strings.TrimSuffix(b, "-b.jpg") {
			t.Fatalf("batch split at rows %d/%d: %q then %q", i, i+1, a, b)
		}
	}
}

func TestAppendCanceledContext(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "log.csv"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Append(ctx, []Record{rec("a.jpg", "low", 0)}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestAppendUnwritablePathFails(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "missing-dir", "log.csv"))
	if err := s.Append(context.Background(), []Record{rec("a.jpg", "low", 0)}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), "sqlite", "", ""); err == nil {
		t.Fatal("expected error")
	}
	s, err := Open(context.Background(), "csv", filepath.Join(t.TempDir(), "log.csv"), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*CSVStore); !ok {
		t.Fatalf("csv backend returned %T", s)
	}
}
