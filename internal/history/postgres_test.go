package history

import (
	"context"
	"os"
	"testing"
	"time"
)

// Runs against a real database only when LEAFGRADE_TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("LEAFGRADE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEAFGRADE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.db.ExecContext(ctx, `TRUNCATE prediction_history`); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.Append(ctx, []Record{{File: "a.jpg", Label: "low", Time: now}, {File: "b.jpg", Label: "high", Time: now}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, []Record{{File: "c.jpg", Label: "medium", Time: now}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, want := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if got[i].File != want {
			t.Errorf("record %d = %q, want %q", i, got[i].File, want)
		}
	}
	if !got[0].Time.Equal(now) {
		t.Errorf("time = %v, want %v", got[0].Time, now)
	}
}
