package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/omnibrowser/redix/internal/event"
)

func TestOpenSQLite_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpenSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	s1, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("first OpenSQLite() failed: %v", err)
	}
	if err := s1.Append(ctx, testEvent("ev-1", 100)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s1.Append(ctx, testEvent("ev-2", 110)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("second OpenSQLite() failed: %v", err)
	}
	defer s2.Close()

	events, err := s2.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := ids(events); len(got) != 2 || got[0] != "ev-1" || got[1] != "ev-2" {
		t.Fatalf("reopened Load = %v, want [ev-1 ev-2]", got)
	}

	// Append order continues across the reopen.
	if err := s2.Append(ctx, testEvent("ev-3", 120)); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}
	events, _ = s2.Load(ctx)
	if got := ids(events); len(got) != 3 || got[2] != "ev-3" {
		t.Fatalf("after reopen append: %v, want ev-3 last", got)
	}
}

func TestSQLiteSchemaVersionStamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestSQLiteNilPayloadRoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	ev := event.Event{ID: "bare", Type: "redix:tab:closed", Timestamp: 5}
	if err := s.Append(ctx, ev); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	events, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Payload != nil {
		t.Errorf("Payload = %#v, want nil", events[0].Payload)
	}
	if events[0].Metadata != nil {
		t.Errorf("Metadata = %#v, want nil", events[0].Metadata)
	}
}

func TestSQLiteTruncateToZero(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := s.Append(ctx, testEvent(id, 1)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := s.Truncate(ctx, 0); err != nil {
		t.Fatalf("Truncate(0) failed: %v", err)
	}
	events, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("after Truncate(0): %d events, want 0", len(events))
	}
}
