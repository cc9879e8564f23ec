package snapshotstore

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

// PostgresStore persists odds snapshots in PostgreSQL. The unique index on
// record_hash enforces the dedup contract at the storage layer, so the
// check-then-write step is atomic even across processes; the partition
// columns keep duplicate lookups and replays scoped to one
// (provider, league, date, event) slice.
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

	slog.Info("PostgreSQL snapshot store initialized successfully")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS odds_snapshots (
		id SERIAL PRIMARY KEY,
		canonical_event_id VARCHAR(100) NOT NULL,
		provider_event_id VARCHAR(200) NOT NULL,
		provider VARCHAR(100) NOT NULL,
		league VARCHAR(100) NOT NULL,
		commence_time TIMESTAMP NOT NULL,
		snapshot_time TIMESTAMP NOT NULL,
		snapshot_date DATE NOT NULL,
		is_live BOOLEAN NOT NULL DEFAULT FALSE,
		bookmaker VARCHAR(100) NOT NULL,
		market VARCHAR(100) NOT NULL,
		selection VARCHAR(200) NOT NULL,
		price DECIMAL(10, 4) NOT NULL,
		point DECIMAL(10, 4),
		ingest_run_id VARCHAR(100) NOT NULL,
		ingested_at TIMESTAMP NOT NULL,
		record_hash CHAR(64) NOT NULL,
		raw_ref VARCHAR(500) NOT NULL,
		UNIQUE(record_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_odds_snapshots_partition
		ON odds_snapshots(provider, league, snapshot_date, canonical_event_id);
	CREATE INDEX IF NOT EXISTS idx_odds_snapshots_event_market
		ON odds_snapshots(canonical_event_id, market, snapshot_time);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Append writes rows, skipping any whose record_hash already exists.
// ON CONFLICT DO NOTHING makes the batch idempotent under retries and safe
// under concurrent writers to the same partition.
func (s *PostgresStore) Append(ctx context.Context, rows []models.OddsSnapshotRow) (AppendResult, error) {
	query := `
	INSERT INTO odds_snapshots (
		canonical_event_id, provider_event_id, provider, league,
		commence_time, snapshot_time, snapshot_date, is_live,
		bookmaker, market, selection, price, point,
		ingest_run_id, ingested_at, record_hash, raw_ref
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (record_hash) DO NOTHING
	`

	var result AppendResult
	for _, row := range rows {
		if row.RecordHash == "" {
			row.ComputeRecordHash()
		}
		var point sql.NullFloat64
		if row.Point != nil {
			point = sql.NullFloat64{Float64: *row.Point, Valid: true}
		}
		res, err := s.db.ExecContext(ctx, query,
			row.CanonicalEventID, row.ProviderEventID, row.Provider, row.League,
			row.CommenceTime.UTC(), row.SnapshotTime.UTC(),
			row.SnapshotTime.UTC().Format("2006-01-02"), row.IsLive,
			row.Bookmaker, row.Market, row.Selection, row.Price, point,
			row.IngestRunID, row.IngestedAt.UTC(), row.RecordHash, row.RawRef,
		)
		if err != nil {
			return result, fmt.Errorf("failed to append snapshot row: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			result.SkippedDuplicate++
		} else {
			result.Written++
		}
	}
	return result, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, canonicalEventID, market string) ([]models.OddsSnapshotRow, error) {
	query := `
	SELECT canonical_event_id, provider_event_id, provider, league,
		commence_time, snapshot_time, is_live,
		bookmaker, market, selection, price, point,
		ingest_run_id, ingested_at, record_hash, raw_ref
	FROM odds_snapshots
	WHERE canonical_event_id = $1 AND ($2 = '' OR market = $2)
	ORDER BY snapshot_time, bookmaker, market, selection
	`
	rows, err := s.db.QueryContext(ctx, query, canonicalEventID, market)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.OddsSnapshotRow
	for rows.Next() {
		var row models.OddsSnapshotRow
		var point sql.NullFloat64
		if err := rows.Scan(
			&row.CanonicalEventID, &row.ProviderEventID, &row.Provider, &row.League,
			&row.CommenceTime, &row.SnapshotTime, &row.IsLive,
			&row.Bookmaker, &row.Market, &row.Selection, &row.Price, &point,
			&row.IngestRunID, &row.IngestedAt, &row.RecordHash, &row.RawRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if point.Valid {
			v := point.Float64
			row.Point = &v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
