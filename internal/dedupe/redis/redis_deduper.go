package redis

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	rds "tipstream/internal/stores/redis"
)

// Deduper is the cluster-safe dedupe: SETNX + TTL per event id, shared
// by every indexer instance pointed at the same Redis.
type Deduper struct {
	log    logger.Logger
	rdb    *rds.Client
	ttl    time.Duration
	prefix string
}

func NewDeduper(log logger.Logger, rdb *rds.Client, prefix string, ttl time.Duration) (*Deduper, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required for the deduper")
	}
	if prefix == "" {
		prefix = "tipstream:dedupe:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Deduper{log: log, rdb: rdb, ttl: ttl, prefix: prefix}, nil
}

func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	key := d.prefix + id
	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.log.Errorf("Redis SetNX failed for %s: %v", key, err)
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	// ok=true means the key was fresh, i.e. the id was not seen before.
	return !ok, nil
}

func (d *Deduper) Health(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}
