package snapshotstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linelogic/linelogic/internal/pkg/config"
	"github.com/linelogic/linelogic/internal/pkg/models"
)

// LatestCache keeps the most recent quote per (event, bookmaker, market,
// selection) in Redis for cheap downstream reads. It sits beside the
// append-only store and is never part of the dedup contract: losing the
// cache loses nothing, it is rebuilt by the next append.
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
}

// setIfNewer replaces the cached quote only when the incoming snapshot is
// strictly newer. Running the compare and the write as one server-side script
// keeps concurrent workers from leaving an older quote over a newer one.
var setIfNewer = redis.NewScript(`
local ts = redis.call('HGET', KEYS[1], 'ts')
if ts and tonumber(ts) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'payload', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func NewLatestCache(cfg *config.RedisConfig) (*LatestCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &LatestCache{client: client, ttl: 48 * time.Hour}, nil
}

func quoteKey(row models.OddsSnapshotRow) string {
	return fmt.Sprintf("quote:%s:%s:%s:%s", row.CanonicalEventID, row.Bookmaker, row.Market, row.Selection)
}

// Update stores rows newer than what the cache currently holds.
func (c *LatestCache) Update(ctx context.Context, rows []models.OddsSnapshotRow) error {
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal quote: %w", err)
		}

		err = setIfNewer.Run(ctx, c.client,
			[]string{quoteKey(row)},
			row.SnapshotTime.UnixMilli(), data, c.ttl.Milliseconds(),
		).Err()
		if err != nil {
			return fmt.Errorf("failed to store quote: %w", err)
		}
	}
	return nil
}

// Latest returns the cached quote or nil when the cache has none.
func (c *LatestCache) Latest(ctx context.Context, canonicalEventID, bookmaker, market, selection string) (*models.OddsSnapshotRow, error) {
	key := fmt.Sprintf("quote:%s:%s:%s:%s", canonicalEventID, bookmaker, market, selection)
	data, err := c.client.HGet(ctx, key, "payload").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	var row models.OddsSnapshotRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &row, nil
}

func (c *LatestCache) Close() error {
	return c.client.Close()
}
