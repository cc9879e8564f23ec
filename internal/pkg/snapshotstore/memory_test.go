package snapshotstore

import (
	"context"
	"testing"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

func row(snapshotAt time.Time, bookmaker, selection string, price float64) models.OddsSnapshotRow {
	return models.OddsSnapshotRow{
		CanonicalEventID: "evt_0011223344556677",
		ProviderEventID:  "abc123",
		Provider:         "oddsapi",
		League:           "basketball_nba",
		CommenceTime:     time.Date(2024, 3, 2, 0, 30, 0, 0, time.UTC),
		SnapshotTime:     snapshotAt,
		Bookmaker:        bookmaker,
		Market:           "h2h",
		Selection:        selection,
		Price:            price,
		IngestRunID:      "run-1",
		IngestedAt:       time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)

	batch := []models.OddsSnapshotRow{
		row(at, "draftkings", "home", 2.30),
		row(at, "draftkings", "away", 1.65),
	}

	first, err := s.Append(ctx, batch)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if first.Written != 2 || first.SkippedDuplicate != 0 {
		t.Fatalf("first append = %+v, want 2 written", first)
	}

	// Re-submitting the batch, as a resumed run does, writes nothing new.
	second, err := s.Append(ctx, batch)
	if err != nil {
		t.Fatalf("repeat Append failed: %v", err)
	}
	if second.Written != 0 || second.SkippedDuplicate != 2 {
		t.Errorf("repeat append = %+v, want 2 duplicates and 0 written", second)
	}
	if s.Len() != 2 {
		t.Errorf("store holds %d rows, want 2", s.Len())
	}
}

func TestAppendKeepsDistinctSnapshotTimes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)

	// Same price a minute later is still a distinct observation.
	if _, err := s.Append(ctx, []models.OddsSnapshotRow{row(at, "draftkings", "home", 2.30)}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	result, err := s.Append(ctx, []models.OddsSnapshotRow{row(at.Add(time.Minute), "draftkings", "home", 2.30)})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if result.Written != 1 {
		t.Errorf("identical price at a new snapshot time was deduplicated")
	}

	rows, err := s.ListSnapshots(ctx, "evt_0011223344556677", "h2h")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("listed %d rows, want 2", len(rows))
	}
	if !rows[0].SnapshotTime.Before(rows[1].SnapshotTime) {
		t.Errorf("rows not ordered by snapshot time")
	}
}

func TestListSnapshotsFiltersByMarket(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)

	spread := row(at, "draftkings", "home", 1.91)
	spread.Market = "spreads"
	batch := []models.OddsSnapshotRow{row(at, "draftkings", "home", 2.30), spread}
	if _, err := s.Append(ctx, batch); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	h2h, err := s.ListSnapshots(ctx, "evt_0011223344556677", "h2h")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(h2h) != 1 || h2h[0].Market != "h2h" {
		t.Errorf("market filter returned %d rows", len(h2h))
	}

	all, err := s.ListSnapshots(ctx, "evt_0011223344556677", "")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered list returned %d rows, want 2", len(all))
	}
}

func TestAppendComputesMissingHashes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)

	r := row(at, "draftkings", "home", 2.30)
	if r.RecordHash != "" {
		t.Fatalf("test row unexpectedly hashed")
	}
	if _, err := s.Append(ctx, []models.OddsSnapshotRow{r}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rows, err := s.ListSnapshots(ctx, "evt_0011223344556677", "")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(rows) != 1 || rows[0].RecordHash == "" {
		t.Errorf("stored row missing record hash")
	}
}
