package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const (
	// StatsKey is the Redis key holding the cached dashboard stats.
	StatsKey = "helpdesk:tickets:stats:v2"
	// GenerationKey counts invalidations. It never expires.
	GenerationKey = "helpdesk:tickets:stats:generation"
)

// Entry is one cached stats computation.
type Entry struct {
	Stats domain.Stats `json:"stats"`
	// AsOf is the instant the stats were counted at.
	AsOf time.Time `json:"as_of"`
	// FreshUntil is the first instant the counters may move without a
	// ticket changing, such as a due date passing.
	FreshUntil time.Time `json:"fresh_until"`
	// Generation is the invalidation generation read before counting.
	Generation int64 `json:"generation"`
}

// FreshAt reports whether the entry still describes the store at now.
func (e Entry) FreshAt(now time.Time) bool {
	return !now.Before(e.AsOf) && now.Before(e.FreshUntil)
}

// StatsCache stores the most recent dashboard stats.
type StatsCache interface {
	// Generation returns the current invalidation generation. Read it before
	// counting and store it on the Entry so a write racing an
	// invalidation is never served.
	Generation(ctx context.Context) (int64, error)
	// Get reports a hit only for an entry of the current generation; a
	// miss is not an error.
	Get(ctx context.Context) (Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
	Invalidate(ctx context.Context) error
}

type redisStatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStatsCache caches stats under StatsKey for at most ttl.
func NewRedisStatsCache(client redis.Cmdable, ttl time.Duration) StatsCache {
	return &redisStatsCache{client: client, ttl: ttl}
}

func (c *redisStatsCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stats generation: %w", err)
	}
	return gen, nil
}

func (c *redisStatsCache) Get(ctx context.Context) (Entry, bool, error) {
	vals, err := c.client.MGet(ctx, StatsKey, GenerationKey).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("get stats: %w", err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return Entry{}, false, nil
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode stats: %w", err)
	}
	gen, err := parseGeneration(vals[1])
	if err != nil {
		return Entry{}, false, err
	}
	if entry.Generation != gen {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *redisStatsCache) Set(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, StatsKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set stats: %w", err)
	}
	return nil
}

func (c *redisStatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, GenerationKey).Err(); err != nil {
		return fmt.Errorf("bump stats generation: %w", err)
	}
	if err := c.client.Del(ctx, StatsKey).Err(); err != nil {
		return fmt.Errorf("invalidate stats: %w", err)
	}
	return nil
}

func parseGeneration(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode stats generation: %w", err)
	}
	return gen, nil
}

// Noop is a StatsCache that never hits.
type Noop struct{}

func (Noop) Generation(context.Context) (int64, error) { return 0, nil }
func (Noop) Get(context.Context) (Entry, bool, error)  { return Entry{}, false, nil }
func (Noop) Set(context.Context, Entry) error          { return nil }
func (Noop) Invalidate(context.Context) error          { return nil }
