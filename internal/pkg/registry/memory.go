package registry

import (
	"context"
	"sync"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// MemoryStore is the in-process Store used by tests and bronze-replay runs.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]models.ProviderMapping // provider|provider_entity_id
	events   map[string]EventRecord            // canonical id
	entities map[string]EntityRecord           // canonical id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mappings: make(map[string]models.ProviderMapping),
		events:   make(map[string]EventRecord),
		entities: make(map[string]EntityRecord),
	}
}

func mappingKey(provider, providerEntityID string) string {
	return provider + "|" + providerEntityID
}

func (s *MemoryStore) GetMapping(_ context.Context, provider, providerEntityID string) (models.ProviderMapping, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[mappingKey(provider, providerEntityID)]
	return m, ok, nil
}

func (s *MemoryStore) PutMapping(_ context.Context, m models.ProviderMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mappingKey(m.Provider, m.ProviderEntityID)
	if existing, ok := s.mappings[key]; ok {
		// Manual rows are permanently protected from automatic overwrite,
		// and an existing automatic mapping wins over a later automatic one.
		// Only a manual write replaces an automatic row.
		if existing.Source == models.SourceManual || m.Source != models.SourceManual {
			return nil
		}
	}
	s.mappings[key] = m
	return nil
}

func (s *MemoryStore) PendingReview(_ context.Context, trustedThreshold float64) ([]models.ProviderMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ProviderMapping
	for _, m := range s.mappings {
		if m.Source == models.SourceAuto && m.Confidence < trustedThreshold {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutEvent(_ context.Context, ev EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.CanonicalID]; !ok {
		s.events[ev.CanonicalID] = ev
	}
	return nil
}

func (s *MemoryStore) EventsNear(_ context.Context, league string, start time.Time, tol time.Duration) ([]EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []EventRecord
	for _, ev := range s.events {
		if ev.League != league {
			continue
		}
		diff := ev.StartTime.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tol {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) EventsOnDate(_ context.Context, league string, date time.Time) ([]EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := date.UTC().Format("2006-01-02")
	var out []EventRecord
	for _, ev := range s.events {
		if ev.League == league && ev.StartTime.UTC().Format("2006-01-02") == day {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) PutEntity(_ context.Context, e EntityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[e.CanonicalID]; !ok {
		s.entities[e.CanonicalID] = e
	}
	return nil
}

func (s *MemoryStore) EntitiesByKind(_ context.Context, kind models.EntityKind, league string) ([]EntityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []EntityRecord
	for _, e := range s.entities {
		if e.Kind == kind && e.League == league {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
