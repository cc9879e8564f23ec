package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/pkg/models"
)

// Resolution is the outcome of resolving one provider identifier.
type Resolution struct {
	CanonicalID string
	Confidence  float64
	MatchedVia  string
	// NeedsReview marks ambiguous matches: the registry did not guess, it
	// returned the best candidate with confidence capped below the trusted
	// threshold so downstream consumers can exclude it.
	NeedsReview bool
}

// EventAttrs are the candidate attributes a provider supplies for an event.
type EventAttrs struct {
	League       string
	HomeTeamID   string // provider's team id; falls back to the name
	HomeTeamName string
	AwayTeamID   string
	AwayTeamName string
	StartTime    time.Time
}

// Registry maps provider-specific identifiers to canonical ids. It is an
// explicit object with an injected store, constructed per process; all
// resolution calls go through it, never through package state.
//
// Resolution priority, first match wins:
//  1. existing mapping (auto or manual), idempotent across runs
//  2. exact structural match (events only) within the start-time tolerance
//  3. fuzzy name match, confidence proportional to similarity
//  4. mint a new canonical identity from the deterministic hash
type Registry struct {
	store  Store
	cfg    config.RegistryConfig
	logger *slog.Logger

	// Fuzzy and mint paths serialize per provider-entity key so concurrent
	// first-resolution of one real entity cannot mint two ids. Structural
	// matches converge without this (both writers derive the same hash),
	// but the critical section is narrow enough to cover all writes.
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex

	now func() time.Time
}

func New(store Store, cfg config.RegistryConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		keyLocks: make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// Store exposes the backing store for read-only consumers.
func (r *Registry) Store() Store { return r.store }

// PendingReview lists automatic mappings below the trusted threshold.
func (r *Registry) PendingReview(ctx context.Context) ([]models.ProviderMapping, error) {
	return r.store.PendingReview(ctx, r.cfg.TrustedThreshold)
}

func (r *Registry) lockKey(provider, providerEntityID string) func() {
	key := provider + "|" + providerEntityID
	r.mu.Lock()
	lock, ok := r.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.keyLocks[key] = lock
	}
	r.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// ResolveTeam resolves one provider team reference. providerTeamID may be
// empty when the provider only supplies names; the name then keys the
// mapping.
func (r *Registry) ResolveTeam(ctx context.Context, provider, providerTeamID, league, name string) (Resolution, error) {
	return r.resolveNamed(ctx, provider, providerTeamID, league, name, models.KindTeam)
}

// ResolvePlayer resolves one provider player reference.
func (r *Registry) ResolvePlayer(ctx context.Context, provider, providerPlayerID, league, name string) (Resolution, error) {
	return r.resolveNamed(ctx, provider, providerPlayerID, league, name, models.KindPlayer)
}

func (r *Registry) resolveNamed(ctx context.Context, provider, providerEntityID, league, name string, kind models.EntityKind) (Resolution, error) {
	if providerEntityID == "" {
		providerEntityID = models.NormalizeTeamName(name)
	}
	if providerEntityID == "" {
		return Resolution{}, fmt.Errorf("cannot resolve %s with empty id and name", kind)
	}

	// Step 1: existing mapping wins, manual or auto.
	if m, ok, err := r.store.GetMapping(ctx, provider, providerEntityID); err != nil {
		return Resolution{}, err
	} else if ok {
		return resolutionFrom(m, r.cfg.TrustedThreshold), nil
	}

	unlock := r.lockKey(provider, providerEntityID)
	defer unlock()

	// Re-check under the lock: a concurrent caller may have won the race.
	if m, ok, err := r.store.GetMapping(ctx, provider, providerEntityID); err != nil {
		return Resolution{}, err
	} else if ok {
		return resolutionFrom(m, r.cfg.TrustedThreshold), nil
	}

	// Step 3: fuzzy match against known entities of this kind.
	candidates, err := r.store.EntitiesByKind(ctx, kind, league)
	if err != nil {
		return Resolution{}, err
	}
	if res, matched, err := r.fuzzyMatch(ctx, provider, providerEntityID, kind, name, rankCandidates(name, candidates)); err != nil {
		return Resolution{}, err
	} else if matched {
		return res, nil
	}

	// Step 4: mint a new canonical identity; first-seen is self-evident.
	var canonicalID string
	if kind == models.KindPlayer {
		canonicalID = models.PlayerIdentity(league, name)
	} else {
		canonicalID = models.TeamIdentity(league, name)
	}
	if err := r.store.PutEntity(ctx, EntityRecord{
		CanonicalID: canonicalID, Kind: kind, League: league, Name: name,
	}); err != nil {
		return Resolution{}, err
	}
	return r.commitMapping(ctx, models.ProviderMapping{
		Provider: provider, ProviderEntityID: providerEntityID,
		CanonicalID: canonicalID, Kind: kind,
		Confidence: 1.0, Source: models.SourceAuto, MatchedVia: "minted",
		CreatedAt: r.now().UTC(),
	})
}

// ResolveEvent resolves one provider event reference using the full
// four-step priority order.
func (r *Registry) ResolveEvent(ctx context.Context, provider, providerEventID string, attrs EventAttrs) (Resolution, error) {
	if providerEventID == "" {
		return Resolution{}, fmt.Errorf("cannot resolve event with empty provider id")
	}

	// Step 1: existing mapping wins, manual or auto.
	if m, ok, err := r.store.GetMapping(ctx, provider, providerEventID); err != nil {
		return Resolution{}, err
	} else if ok {
		return resolutionFrom(m, r.cfg.TrustedThreshold), nil
	}

	unlock := r.lockKey(provider, providerEventID)
	defer unlock()

	if m, ok, err := r.store.GetMapping(ctx, provider, providerEventID); err != nil {
		return Resolution{}, err
	} else if ok {
		return resolutionFrom(m, r.cfg.TrustedThreshold), nil
	}

	home, err := r.ResolveTeam(ctx, provider, attrs.HomeTeamID, attrs.League, attrs.HomeTeamName)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to resolve home team: %w", err)
	}
	away, err := r.ResolveTeam(ctx, provider, attrs.AwayTeamID, attrs.League, attrs.AwayTeamName)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to resolve away team: %w", err)
	}

	// Step 2: exact structural match against known events with the same
	// canonical teams inside the start-time tolerance window.
	near, err := r.store.EventsNear(ctx, attrs.League, attrs.StartTime, r.cfg.StartTimeTolerance)
	if err != nil {
		return Resolution{}, err
	}
	for _, cand := range near {
		if cand.HomeTeamID == home.CanonicalID && cand.AwayTeamID == away.CanonicalID {
			return r.commitMapping(ctx, models.ProviderMapping{
				Provider: provider, ProviderEntityID: providerEventID,
				CanonicalID: cand.CanonicalID, Kind: models.KindEvent,
				Confidence: 1.0, Source: models.SourceAuto, MatchedVia: "structural",
				CreatedAt: r.now().UTC(),
			})
		}
	}

	// Step 3: fuzzy, same league and date, approximate team-name equality.
	if res, matched, err := r.fuzzyEventMatch(ctx, provider, providerEventID, attrs); err != nil {
		return Resolution{}, err
	} else if matched {
		return res, nil
	}

	// Step 4: mint via the deterministic identity hash.
	canonicalID := models.EventIdentity(attrs.League, home.CanonicalID, away.CanonicalID, attrs.StartTime)
	if err := r.store.PutEvent(ctx, EventRecord{
		CanonicalID: canonicalID, League: attrs.League,
		HomeTeamID: home.CanonicalID, AwayTeamID: away.CanonicalID,
		StartTime: attrs.StartTime.UTC(),
	}); err != nil {
		return Resolution{}, err
	}
	return r.commitMapping(ctx, models.ProviderMapping{
		Provider: provider, ProviderEntityID: providerEventID,
		CanonicalID: canonicalID, Kind: models.KindEvent,
		Confidence: 1.0, Source: models.SourceAuto, MatchedVia: "minted",
		CreatedAt: r.now().UTC(),
	})
}

func (r *Registry) fuzzyMatch(ctx context.Context, provider, providerEntityID string, kind models.EntityKind, name string, ranked []scored) (Resolution, bool, error) {
	if len(ranked) == 0 || ranked[0].score < r.cfg.FuzzyThreshold {
		return Resolution{}, false, nil
	}

	best := ranked[0]
	confidence := best.score
	needsReview := false
	if len(ranked) > 1 && ranked[1].score >= r.cfg.FuzzyThreshold &&
		best.score-ranked[1].score < r.cfg.AmbiguityMargin {
		// Ambiguous: no clear winner. Do not guess; record the best
		// candidate capped below trusted so consumers can exclude it.
		needsReview = true
		r.logger.Warn("Ambiguous fuzzy match",
			"provider", provider, "provider_entity_id", providerEntityID,
			"kind", kind, "name", name,
			"best", best.canonicalID, "best_score", best.score,
			"runner_up_score", ranked[1].score)
	}
	if needsReview && confidence >= r.cfg.TrustedThreshold {
		confidence = r.cfg.TrustedThreshold - 0.01
	}

	res, err := r.commitMapping(ctx, models.ProviderMapping{
		Provider: provider, ProviderEntityID: providerEntityID,
		CanonicalID: best.canonicalID, Kind: kind,
		Confidence: confidence, Source: models.SourceAuto, MatchedVia: "fuzzy",
		CreatedAt: r.now().UTC(),
	})
	if err != nil {
		return Resolution{}, false, err
	}
	res.NeedsReview = res.NeedsReview || needsReview
	return res, true, nil
}

func (r *Registry) fuzzyEventMatch(ctx context.Context, provider, providerEventID string, attrs EventAttrs) (Resolution, bool, error) {
	sameDay, err := r.store.EventsOnDate(ctx, attrs.League, attrs.StartTime)
	if err != nil {
		return Resolution{}, false, err
	}
	if len(sameDay) == 0 {
		return Resolution{}, false, nil
	}

	teams, err := r.store.EntitiesByKind(ctx, models.KindTeam, attrs.League)
	if err != nil {
		return Resolution{}, false, err
	}
	nameOf := make(map[string]string, len(teams))
	for _, t := range teams {
		nameOf[t.CanonicalID] = t.Name
	}

	ranked := make([]scored, 0, len(sameDay))
	for _, cand := range sameDay {
		score := (nameSimilarity(attrs.HomeTeamName, nameOf[cand.HomeTeamID]) +
			nameSimilarity(attrs.AwayTeamName, nameOf[cand.AwayTeamID])) / 2
		ranked = append(ranked, scored{canonicalID: cand.CanonicalID, score: score})
	}
	sortScored(ranked)

	return r.fuzzyMatch(ctx, provider, providerEventID, models.KindEvent, attrs.HomeTeamName+" vs "+attrs.AwayTeamName, ranked)
}

// commitMapping writes the mapping and re-reads it, so a lost race still
// returns the mapping that actually won.
func (r *Registry) commitMapping(ctx context.Context, m models.ProviderMapping) (Resolution, error) {
	if err := r.store.PutMapping(ctx, m); err != nil {
		return Resolution{}, err
	}
	stored, ok, err := r.store.GetMapping(ctx, m.Provider, m.ProviderEntityID)
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		return Resolution{}, fmt.Errorf("mapping for %s/%s vanished after write", m.Provider, m.ProviderEntityID)
	}
	return resolutionFrom(stored, r.cfg.TrustedThreshold), nil
}

func resolutionFrom(m models.ProviderMapping, trusted float64) Resolution {
	return Resolution{
		CanonicalID: m.CanonicalID,
		Confidence:  m.Confidence,
		MatchedVia:  m.MatchedVia,
		NeedsReview: m.Source == models.SourceAuto && m.Confidence < trusted,
	}
}
