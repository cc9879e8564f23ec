package rawstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(), "basketball_nba")
	fixed := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func TestPutIsIdempotent(t *testing.T) {
	s := testStore(t)
	payload := []byte(`{"data":[1,2,3]}`)

	first, err := s.Put("oddsapi", "/historical/sports/basketball_nba/events", "run-1", payload)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second, err := s.Put("oddsapi", "/historical/sports/basketball_nba/events", "run-1", payload)
	if err != nil {
		t.Fatalf("repeated Put failed: %v", err)
	}
	if first.StoragePath != second.StoragePath {
		t.Errorf("same payload landed at two paths: %q vs %q", first.StoragePath, second.StoragePath)
	}
	if first.Digest != second.Digest {
		t.Errorf("digests differ: %q vs %q", first.Digest, second.Digest)
	}

	data, err := os.ReadFile(first.StoragePath)
	if err != nil {
		t.Fatalf("failed to read capture: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("capture content changed")
	}
}

func TestPutKeepsDistinctObservations(t *testing.T) {
	s := testStore(t)

	a, err := s.Put("oddsapi", "/events", "run-1", []byte(`{"seq":1}`))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	b, err := s.Put("oddsapi", "/events", "run-1", []byte(`{"seq":2}`))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if a.StoragePath == b.StoragePath {
		t.Fatalf("distinct payloads collided at %q", a.StoragePath)
	}

	// Both files must exist: captures are never replaced.
	for _, p := range []string{a.StoragePath, b.StoragePath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("capture missing: %v", err)
		}
	}
}

func TestPutNeverOverwrites(t *testing.T) {
	s := testStore(t)
	payload := []byte(`{"data":true}`)

	capture, err := s.Put("oddsapi", "/events", "run-1", payload)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	before, err := os.Stat(capture.StoragePath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}

	if _, err := s.Put("oddsapi", "/events", "run-1", payload); err != nil {
		t.Fatalf("repeated Put failed: %v", err)
	}
	after, err := os.Stat(capture.StoragePath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Errorf("existing capture was rewritten")
	}
}

func TestBronzeLayout(t *testing.T) {
	s := testStore(t)
	capture, err := s.Put("oddsapi", "/historical/sports/basketball_nba/events", "run-1", []byte("{}"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	want := filepath.Join(
		s.paths.Root, "bronze",
		"provider=oddsapi",
		"league=basketball_nba",
		"date=2024-03-01",
		"run_id=run-1",
		"endpoint=historical_sports_basketball_nba_events",
	)
	if filepath.Dir(capture.StoragePath) != want {
		t.Errorf("capture dir = %q, want %q", filepath.Dir(capture.StoragePath), want)
	}
}

func TestWriteManifest(t *testing.T) {
	s := testStore(t)
	manifest := models.RunManifest{
		RunID:     "run-1",
		League:    "basketball_nba",
		StartedAt: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
		Calls: []models.ManifestEntry{
			{Provider: "oddsapi", Endpoint: "/events", Outcome: "ok", Attempts: 1, RecordCount: 12},
		},
	}

	path, err := s.WriteManifest(manifest)
	if err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	if filepath.Base(path) != "run_summary.json" {
		t.Errorf("manifest file = %q, want run_summary.json", filepath.Base(path))
	}
	wantDir := filepath.Join(s.paths.Root, "runs", "2024-03-01", "run_id=run-1")
	if filepath.Dir(path) != wantDir {
		t.Errorf("manifest dir = %q, want %q", filepath.Dir(path), wantDir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("manifest missing: %v", err)
	}
}

func TestNewRunIDSortsByTime(t *testing.T) {
	early := NewRunID(time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC))
	late := NewRunID(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC))
	if !(early < late) {
		t.Errorf("run ids not time-ordered: %q vs %q", early, late)
	}
}
