package snapshotstore

import (
	"context"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// AppendResult reports the outcome of one append batch.
type AppendResult struct {
	Written          int
	SkippedDuplicate int
}

// Store is the append-only silver odds_snapshot store.
//
// The dedup contract: a row whose record_hash already exists in its
// partition is skipped, everything else is written. Appending the same batch
// twice yields the same store content as appending it once, which is what
// lets a retried ingestion run after a partial failure re-submit work
// safely. Distinct snapshot times are never merged, averaged or overwritten;
// each is a permanent fact.
type Store interface {
	Append(ctx context.Context, rows []models.OddsSnapshotRow) (AppendResult, error)

	// ListSnapshots returns rows for one canonical event ordered by snapshot
	// time (then bookmaker, market, selection). Empty market means all
	// markets.
	ListSnapshots(ctx context.Context, canonicalEventID, market string) ([]models.OddsSnapshotRow, error)

	Close() error
}
