package models

import "time"

// RawCapture describes one immutable bronze payload on disk.
// Created once by the ingest loop on a successful provider response;
// never updated or deleted. Silver rows reference it via RawRef.
type RawCapture struct {
	Provider    string    `json:"provider"`
	Endpoint    string    `json:"endpoint"`
	RunID       string    `json:"run_id"`
	FetchedAt   time.Time `json:"fetched_at_utc"`
	PayloadSize int       `json:"payload_bytes"`
	StoragePath string    `json:"storage_path"`
	Digest      string    `json:"digest"`
}

// Ref returns the stable back-reference stored on normalized rows.
func (c RawCapture) Ref() string {
	return c.StoragePath
}

// RunConfig snapshots the knobs a run started with, written next to the
// manifest so a backfill can be audited against the settings that produced
// it.
type RunConfig struct {
	RunID           string          `json:"run_id"`
	League          string          `json:"league"`
	Date            string          `json:"date"`
	Workers         int             `json:"workers"`
	SnapshotOffsets []time.Duration `json:"snapshot_offsets"`
	Providers       []string        `json:"providers"`
	StartedAt       time.Time       `json:"started_at_utc"`
}

// ManifestEntry is one provider call recorded in the per-run manifest.
type ManifestEntry struct {
	Provider    string        `json:"provider"`
	Endpoint    string        `json:"endpoint"`
	Outcome     string        `json:"outcome"` // "ok" or the failure class
	Attempts    int           `json:"attempts"`
	Latency     time.Duration `json:"latency_ms"`
	RecordCount int           `json:"record_count"`
	Error       string        `json:"error,omitempty"`
}

// RunManifest summarizes one ingestion run for auditing. It is written to
// the bronze tier next to the captures and is never read back by the
// normalization logic.
type RunManifest struct {
	RunID      string          `json:"run_id"`
	League     string          `json:"league"`
	StartedAt  time.Time       `json:"started_at_utc"`
	FinishedAt time.Time       `json:"finished_at_utc"`
	Calls      []ManifestEntry `json:"calls"`
	Failures   []string        `json:"failures,omitempty"`
}
