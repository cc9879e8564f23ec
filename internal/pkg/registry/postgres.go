package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/pkg/models"
)

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)

// PostgresStore persists the canonical registry in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection and initializes the schema.
func NewPostgresStore(cfg *config.PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL registry store initialized successfully")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS provider_mappings (
		provider VARCHAR(100) NOT NULL,
		provider_entity_id VARCHAR(200) NOT NULL,
		canonical_id VARCHAR(100) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		confidence DECIMAL(5, 4) NOT NULL,
		source VARCHAR(10) NOT NULL,
		matched_via VARCHAR(20) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (provider, provider_entity_id)
	);

	CREATE TABLE IF NOT EXISTS canonical_events (
		canonical_id VARCHAR(100) PRIMARY KEY,
		league VARCHAR(100) NOT NULL,
		home_team_id VARCHAR(100) NOT NULL,
		away_team_id VARCHAR(100) NOT NULL,
		start_time TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS canonical_entities (
		canonical_id VARCHAR(100) PRIMARY KEY,
		kind VARCHAR(20) NOT NULL,
		league VARCHAR(100) NOT NULL,
		name VARCHAR(200) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_canonical_events_league_start ON canonical_events(league, start_time);
	CREATE INDEX IF NOT EXISTS idx_canonical_entities_kind_league ON canonical_entities(kind, league);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresStore) GetMapping(ctx context.Context, provider, providerEntityID string) (models.ProviderMapping, bool, error) {
	query := `
	SELECT provider, provider_entity_id, canonical_id, kind, confidence, source, matched_via, created_at
	FROM provider_mappings
	WHERE provider = $1 AND provider_entity_id = $2
	`
	var m models.ProviderMapping
	err := s.db.QueryRowContext(ctx, query, provider, providerEntityID).Scan(
		&m.Provider, &m.ProviderEntityID, &m.CanonicalID, &m.Kind,
		&m.Confidence, &m.Source, &m.MatchedVia, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return models.ProviderMapping{}, false, nil
	}
	if err != nil {
		return models.ProviderMapping{}, false, fmt.Errorf("failed to get mapping: %w", err)
	}
	return m, true, nil
}

// PutMapping inserts a mapping. Automatic writes never replace an existing
// row (ON CONFLICT DO NOTHING makes concurrent first-resolution idempotent);
// manual writes replace automatic rows but never other manual rows.
func (s *PostgresStore) PutMapping(ctx context.Context, m models.ProviderMapping) error {
	var query string
	if m.Source == models.SourceManual {
		query = `
		INSERT INTO provider_mappings (provider, provider_entity_id, canonical_id, kind, confidence, source, matched_via, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, provider_entity_id) DO UPDATE SET
			canonical_id = EXCLUDED.canonical_id,
			kind = EXCLUDED.kind,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source,
			matched_via = EXCLUDED.matched_via,
			created_at = EXCLUDED.created_at
		WHERE provider_mappings.source <> 'manual'
		`
	} else {
		query = `
		INSERT INTO provider_mappings (provider, provider_entity_id, canonical_id, kind, confidence, source, matched_via, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, provider_entity_id) DO NOTHING
		`
	}
	_, err := s.db.ExecContext(ctx, query,
		m.Provider, m.ProviderEntityID, m.CanonicalID, string(m.Kind),
		m.Confidence, string(m.Source), m.MatchedVia, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put mapping: %w", err)
	}
	return nil
}

func (s *PostgresStore) PendingReview(ctx context.Context, trustedThreshold float64) ([]models.ProviderMapping, error) {
	query := `
	SELECT provider, provider_entity_id, canonical_id, kind, confidence, source, matched_via, created_at
	FROM provider_mappings
	WHERE source = 'auto' AND confidence < $1
	ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, trustedThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending review: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderMapping
	for rows.Next() {
		var m models.ProviderMapping
		if err := rows.Scan(&m.Provider, &m.ProviderEntityID, &m.CanonicalID, &m.Kind,
			&m.Confidence, &m.Source, &m.MatchedVia, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutEvent(ctx context.Context, ev EventRecord) error {
	query := `
	INSERT INTO canonical_events (canonical_id, league, home_team_id, away_team_id, start_time)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (canonical_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, ev.CanonicalID, ev.League, ev.HomeTeamID, ev.AwayTeamID, ev.StartTime.UTC())
	if err != nil {
		return fmt.Errorf("failed to put event: %w", err)
	}
	return nil
}

func (s *PostgresStore) EventsNear(ctx context.Context, league string, start time.Time, tol time.Duration) ([]EventRecord, error) {
	query := `
	SELECT canonical_id, league, home_team_id, away_team_id, start_time
	FROM canonical_events
	WHERE league = $1 AND start_time BETWEEN $2 AND $3
	`
	return s.queryEvents(ctx, query, league, start.UTC().Add(-tol), start.UTC().Add(tol))
}

func (s *PostgresStore) EventsOnDate(ctx context.Context, league string, date time.Time) ([]EventRecord, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	query := `
	SELECT canonical_id, league, home_team_id, away_team_id, start_time
	FROM canonical_events
	WHERE league = $1 AND start_time >= $2 AND start_time < $3
	`
	return s.queryEvents(ctx, query, league, day, day.Add(24*time.Hour))
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(&ev.CanonicalID, &ev.League, &ev.HomeTeamID, &ev.AwayTeamID, &ev.StartTime); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutEntity(ctx context.Context, e EntityRecord) error {
	query := `
	INSERT INTO canonical_entities (canonical_id, kind, league, name)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (canonical_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, e.CanonicalID, string(e.Kind), e.League, e.Name)
	if err != nil {
		return fmt.Errorf("failed to put entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) EntitiesByKind(ctx context.Context, kind models.EntityKind, league string) ([]EntityRecord, error) {
	query := `
	SELECT canonical_id, kind, league, name
	FROM canonical_entities
	WHERE kind = $1 AND league = $2
	`
	rows, err := s.db.QueryContext(ctx, query, string(kind), league)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []EntityRecord
	for rows.Next() {
		var e EntityRecord
		if err := rows.Scan(&e.CanonicalID, &e.Kind, &e.League, &e.Name); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
