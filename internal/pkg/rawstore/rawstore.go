package rawstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// Store writes immutable raw provider payloads to the bronze tier plus a
// per-run manifest. It never mutates or deletes: payload files are named by
// content digest, and an existing file is never rewritten, so repeated
// writes of the same observation are no-ops and distinct observations under
// the same (provider, endpoint, run_id) key land as separate files.
type Store struct {
	paths  Paths
	league string

	now func() time.Time
}

// New creates a bronze store rooted at dataDir.
func New(dataDir, league string) *Store {
	return &Store{
		paths:  Paths{Root: dataDir},
		league: league,
		now:    time.Now,
	}
}

// Paths exposes the directory layout (checkpoints share the same root).
func (s *Store) Paths() Paths { return s.paths }

// NewRunID builds a sortable run identifier: UTC timestamp plus a uuid
// fragment for uniqueness within the second.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// Put durably writes one raw payload and returns its capture record. A write
// failure is fatal to the calling unit of work: nothing may be normalized
// that was not first captured.
func (s *Store) Put(provider, endpoint, runID string, payload []byte) (models.RawCapture, error) {
	fetchedAt := s.now().UTC()
	date := fetchedAt.Format("2006-01-02")

	dir := s.paths.BronzeRunDir(provider, s.league, date, runID, endpoint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.RawCapture{}, fmt.Errorf("failed to create bronze dir: %w", err)
	}

	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])[:12]
	path := filepath.Join(dir, "response_"+digest+".json")

	// Append-only rule: never overwrite an existing capture.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeFileAtomic(path, payload); err != nil {
			return models.RawCapture{}, fmt.Errorf("failed to write bronze payload: %w", err)
		}
	} else if err != nil {
		return models.RawCapture{}, fmt.Errorf("failed to stat bronze payload: %w", err)
	}

	return models.RawCapture{
		Provider:    provider,
		Endpoint:    endpoint,
		RunID:       runID,
		FetchedAt:   fetchedAt,
		PayloadSize: len(payload),
		StoragePath: path,
		Digest:      digest,
	}, nil
}

// WriteManifest persists the per-run audit manifest under the runs tree.
// It is written once at the end of a run and is not consumed by the
// normalization logic.
func (s *Store) WriteManifest(manifest models.RunManifest) (string, error) {
	date := manifest.StartedAt.UTC().Format("2006-01-02")
	dir := s.paths.RunDir(date, manifest.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run dir: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(dir, "run_summary.json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// WriteRunConfig records the settings a run started with, next to where its
// manifest will land.
func (s *Store) WriteRunConfig(rc models.RunConfig) (string, error) {
	date := rc.StartedAt.UTC().Format("2006-01-02")
	dir := s.paths.RunDir(date, rc.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run dir: %w", err)
	}

	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run config: %w", err)
	}

	path := filepath.Join(dir, "run_config.json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write run config: %w", err)
	}
	return path, nil
}

// writeFileAtomic writes via a temp file and rename so readers never observe
// a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// SafeEndpoint flattens an endpoint path for use in keys and log fields.
func SafeEndpoint(endpoint string) string {
	return strings.ReplaceAll(strings.Trim(endpoint, "/"), "/", "_")
}
