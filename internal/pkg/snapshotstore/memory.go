package snapshotstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps snapshots in process memory, partitioned the same way as
// the durable backends. Used by tests and by bronze-replay rebuilds.
type MemoryStore struct {
	mu         sync.Mutex
	partitions map[string]*partition
}

// partition holds one (provider, league, date, event) slice of rows with its
// own lock, so writers to different partitions never contend and the
// duplicate-check-then-write step is serialized within a partition.
type partition struct {
	mu   sync.Mutex
	rows map[string]models.OddsSnapshotRow // record_hash → row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{partitions: make(map[string]*partition)}
}

func (s *MemoryStore) partitionFor(key string) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[key]
	if !ok {
		p = &partition{rows: make(map[string]models.OddsSnapshotRow)}
		s.partitions[key] = p
	}
	return p
}

func (s *MemoryStore) Append(_ context.Context, rows []models.OddsSnapshotRow) (AppendResult, error) {
	var result AppendResult
	for _, row := range rows {
		if row.RecordHash == "" {
			row.ComputeRecordHash()
		}
		p := s.partitionFor(row.PartitionKey())
		p.mu.Lock()
		if _, exists := p.rows[row.RecordHash]; exists {
			result.SkippedDuplicate++
		} else {
			p.rows[row.RecordHash] = row
			result.Written++
		}
		p.mu.Unlock()
	}
	return result, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, canonicalEventID, market string) ([]models.OddsSnapshotRow, error) {
	s.mu.Lock()
	parts := make([]*partition, 0, len(s.partitions))
	for _, p := range s.partitions {
		parts = append(parts, p)
	}
	s.mu.Unlock()

	var out []models.OddsSnapshotRow
	for _, p := range parts {
		p.mu.Lock()
		for _, row := range p.rows {
			if row.CanonicalEventID != canonicalEventID {
				continue
			}
			if market != "" && row.Market != market {
				continue
			}
			out = append(out, row)
		}
		p.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.SnapshotTime.Equal(b.SnapshotTime) {
			return a.SnapshotTime.Before(b.SnapshotTime)
		}
		if a.Bookmaker != b.Bookmaker {
			return a.Bookmaker < b.Bookmaker
		}
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		return a.Selection < b.Selection
	})
	return out, nil
}

// Len reports the total row count, for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.partitions {
		p.mu.Lock()
		n += len(p.rows)
		p.mu.Unlock()
	}
	return n
}

func (s *MemoryStore) Close() error { return nil }
