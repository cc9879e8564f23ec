package ingest

import (
	"time"

	"github.com/linelogic/linelogic/internal/provider"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// rowsFromDocument flattens one point-in-time odds document into silver
// rows. SnapshotTime comes from the document (the provider's reported
// observation time), never from the local clock; ingest metadata rides along
// but stays outside the record hash.
func rowsFromDocument(doc *provider.OddsDocument, canonicalEventID, providerName, league, runID, rawRef string, ingestedAt time.Time) []models.OddsSnapshotRow {
	rows := make([]models.OddsSnapshotRow, 0, len(doc.Quotes))
	for _, q := range doc.Quotes {
		row := models.OddsSnapshotRow{
			CanonicalEventID: canonicalEventID,
			ProviderEventID:  doc.ProviderEventID,
			Provider:         providerName,
			League:           league,
			CommenceTime:     doc.CommenceTime.UTC(),
			SnapshotTime:     doc.SnapshotTime.UTC(),
			IsLive:           doc.IsLive,
			Bookmaker:        q.Bookmaker,
			Market:           q.Market,
			Selection:        q.Selection,
			Price:            q.Price,
			Point:            q.Point,
			IngestRunID:      runID,
			IngestedAt:       ingestedAt.UTC(),
			RawRef:           rawRef,
		}
		row.ComputeRecordHash()
		rows = append(rows, row)
	}
	return rows
}
