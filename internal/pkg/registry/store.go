package registry

import (
	"context"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// EventRecord is one known canonical event with the structural attributes
// used for cross-provider matching.
type EventRecord struct {
	CanonicalID string    `json:"canonical_id"`
	League      string    `json:"league"`
	HomeTeamID  string    `json:"home_team_id"`
	AwayTeamID  string    `json:"away_team_id"`
	StartTime   time.Time `json:"start_time_utc"`
}

// EntityRecord is one known canonical team or player with the name it was
// first registered under (normalized form is derived where needed).
type EntityRecord struct {
	CanonicalID string            `json:"canonical_id"`
	Kind        models.EntityKind `json:"kind"`
	League      string            `json:"league"`
	Name        string            `json:"name"`
}

// Store persists provider mappings and the canonical entity index. It is an
// explicit, injected dependency of the Registry, never ambient state.
//
// PutMapping semantics carry the concurrency contract: an existing mapping
// for (provider, provider_entity_id) always wins, manual mappings replace
// automatic ones, and automatic writes never touch a manual row.
type Store interface {
	GetMapping(ctx context.Context, provider, providerEntityID string) (models.ProviderMapping, bool, error)
	PutMapping(ctx context.Context, m models.ProviderMapping) error
	// PendingReview lists automatic mappings whose confidence is below the
	// trusted threshold, for manual resolution.
	PendingReview(ctx context.Context, trustedThreshold float64) ([]models.ProviderMapping, error)

	PutEvent(ctx context.Context, ev EventRecord) error
	// EventsNear returns known events in the league whose start time is
	// within tol of start.
	EventsNear(ctx context.Context, league string, start time.Time, tol time.Duration) ([]EventRecord, error)
	// EventsOnDate returns known events in the league on the given UTC date.
	EventsOnDate(ctx context.Context, league string, date time.Time) ([]EventRecord, error)

	PutEntity(ctx context.Context, e EntityRecord) error
	EntitiesByKind(ctx context.Context, kind models.EntityKind, league string) ([]EntityRecord, error)

	Close() error
}
