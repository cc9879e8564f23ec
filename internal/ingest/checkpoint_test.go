package ingest

import (
	"testing"
	"time"
)

func TestCheckpointRoundTrip(t *testing.T) {
	store := NewFileCheckpointStore(t.TempDir())

	cp, err := store.Load("oddsapi", "basketball_nba")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cp.Completed) != 0 {
		t.Fatalf("fresh checkpoint has %d completed units", len(cp.Completed))
	}

	done := CompletedUnit{
		SnapshotAt:  time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC),
		CompletedAt: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
		RunID:       "run-1",
		Rows:        12,
	}
	cp.MarkDone("oddsapi|basketball_nba|evt_a|2024-03-01T13:30:00Z", done)
	if err := store.Save(cp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := store.Load("oddsapi", "basketball_nba")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !reloaded.Done("oddsapi|basketball_nba|evt_a|2024-03-01T13:30:00Z") {
		t.Errorf("completed unit lost across save/load")
	}
	if reloaded.Done("oddsapi|basketball_nba|evt_b|2024-03-01T13:30:00Z") {
		t.Errorf("unknown unit reported done")
	}
	if !reloaded.LastSuccessAt.Equal(done.CompletedAt) {
		t.Errorf("LastSuccessAt = %v, want %v", reloaded.LastSuccessAt, done.CompletedAt)
	}
	unit := reloaded.Completed["oddsapi|basketball_nba|evt_a|2024-03-01T13:30:00Z"]
	if unit.Rows != 12 || unit.RunID != "run-1" {
		t.Errorf("completed unit fields lost: %+v", unit)
	}
}

func TestCheckpointsIsolatedPerProviderAndLeague(t *testing.T) {
	store := NewFileCheckpointStore(t.TempDir())

	cp, _ := store.Load("oddsapi", "basketball_nba")
	cp.MarkDone("k1", CompletedUnit{CompletedAt: time.Now().UTC()})
	if err := store.Save(cp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other, err := store.Load("balldontlie", "basketball_nba")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if other.Done("k1") {
		t.Errorf("checkpoint leaked across providers")
	}
	otherLeague, err := store.Load("oddsapi", "basketball_ncaab")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if otherLeague.Done("k1") {
		t.Errorf("checkpoint leaked across leagues")
	}
}

func TestMarkDoneKeepsLatestSuccess(t *testing.T) {
	cp := &Checkpoint{Provider: "oddsapi", League: "basketball_nba"}
	late := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	early := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	cp.MarkDone("k1", CompletedUnit{CompletedAt: late})
	cp.MarkDone("k2", CompletedUnit{CompletedAt: early})
	if !cp.LastSuccessAt.Equal(late) {
		t.Errorf("LastSuccessAt regressed to %v", cp.LastSuccessAt)
	}
}
