package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// OddsSnapshotRow is one observed-at-a-point-in-time market quote.
//
// Rows are append-only: once durably written a row is never modified or
// deleted. Two polls a minute apart are two distinct facts even when every
// price field matches, so SnapshotTime is part of the dedup key and is never
// coalesced across observations.
type OddsSnapshotRow struct {
	CanonicalEventID string    `json:"canonical_event_id"`
	ProviderEventID  string    `json:"provider_event_id"`
	Provider         string    `json:"provider"`
	League           string    `json:"league"`
	CommenceTime     time.Time `json:"commence_time_utc"`
	SnapshotTime     time.Time `json:"snapshot_time_utc"`
	IsLive           bool      `json:"is_live"`
	Bookmaker        string    `json:"bookmaker"`
	Market           string    `json:"market"`
	Selection        string    `json:"selection"`
	Price            float64   `json:"price"`
	Point            *float64  `json:"point,omitempty"`
	IngestRunID      string    `json:"ingest_run_id"`
	IngestedAt       time.Time `json:"ingested_at_utc"`
	RecordHash       string    `json:"record_hash"`
	RawRef           string    `json:"raw_ref"`
}

// ComputeRecordHash fills RecordHash from the identifying tuple
// (canonical_event_id, snapshot_time, bookmaker, market, selection, price,
// point). Run metadata (ingest_run_id, ingested_at, raw_ref) is deliberately
// excluded so a re-fetch of the same observation hashes identically.
func (r *OddsSnapshotRow) ComputeRecordHash() string {
	point := ""
	if r.Point != nil {
		point = strconv.FormatFloat(*r.Point, 'f', -1, 64)
	}
	key := strings.Join([]string{
		r.CanonicalEventID,
		r.SnapshotTime.UTC().Format(time.RFC3339),
		r.Bookmaker,
		r.Market,
		r.Selection,
		strconv.FormatFloat(r.Price, 'f', -1, 64),
		point,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	r.RecordHash = hex.EncodeToString(sum[:])
	return r.RecordHash
}

// PartitionKey groups rows for cheap duplicate checks; duplicate lookups only
// ever scan one partition, and the silver tier stays rebuildable per
// partition by replaying bronze captures.
func (r *OddsSnapshotRow) PartitionKey() string {
	return strings.Join([]string{
		r.Provider,
		r.League,
		r.SnapshotTime.UTC().Format("2006-01-02"),
		r.CanonicalEventID,
	}, "/")
}
