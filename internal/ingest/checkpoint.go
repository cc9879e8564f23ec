package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/rawstore"
)

// CompletedUnit records one durably finished plan unit.
type CompletedUnit struct {
	SnapshotAt  time.Time `json:"snapshot_at_utc"`
	CompletedAt time.Time `json:"completed_at_utc"`
	RunID       string    `json:"run_id"`
	Rows        int       `json:"rows"`
}

// Checkpoint is the resumable progress record for one (provider, league).
// A unit appears in Completed only after its rows are durably appended, so
// crashing between append and checkpoint at worst re-submits a batch the
// snapshot store deduplicates to zero new rows.
type Checkpoint struct {
	Provider      string                   `json:"provider"`
	League        string                   `json:"league"`
	Completed     map[string]CompletedUnit `json:"completed"`
	LastSuccessAt time.Time                `json:"last_success_at_utc"`
}

func (c *Checkpoint) Done(key string) bool {
	_, ok := c.Completed[key]
	return ok
}

func (c *Checkpoint) MarkDone(key string, unit CompletedUnit) {
	if c.Completed == nil {
		c.Completed = make(map[string]CompletedUnit)
	}
	c.Completed[key] = unit
	if unit.CompletedAt.After(c.LastSuccessAt) {
		c.LastSuccessAt = unit.CompletedAt
	}
}

// CheckpointStore persists checkpoints between runs.
type CheckpointStore interface {
	Load(provider, league string) (*Checkpoint, error)
	Save(cp *Checkpoint) error
}

// FileCheckpointStore keeps one JSON file per (provider, league) under the
// data root, written atomically so a crash mid-save leaves the previous
// checkpoint intact.
type FileCheckpointStore struct {
	paths rawstore.Paths

	mu sync.Mutex
}

var _ CheckpointStore = (*FileCheckpointStore)(nil)

func NewFileCheckpointStore(dataDir string) *FileCheckpointStore {
	return &FileCheckpointStore{paths: rawstore.Paths{Root: dataDir}}
}

// Load returns the stored checkpoint, or an empty one when none exists yet.
func (s *FileCheckpointStore) Load(provider, league string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.paths.CheckpointPath(provider, league)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Checkpoint{
			Provider:  provider,
			League:    league,
			Completed: make(map[string]CompletedUnit),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	if cp.Completed == nil {
		cp.Completed = make(map[string]CompletedUnit)
	}
	return &cp, nil
}

func (s *FileCheckpointStore) Save(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.paths.CheckpointPath(cp.Provider, cp.League)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}
