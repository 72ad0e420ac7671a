package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/progress"
	"github.com/comitanigiacomo/kanso-habits/internal/core/services"
)

var _ services.SummaryCache = (*RedisSummaryCache)(nil)

const DefaultSummaryTTL = 6 * time.Hour

// userGenField counts InvalidateUser calls; it is added to every month's own counter.
const userGenField = "*"

// setIfCurrent stores a summary only when the month's generation still equals
// the one the summary was computed under.
//
// KEYS[1] summary hash, KEYS[2] generation hash
// ARGV[1] month field, ARGV[2] generation, ARGV[3] payload, ARGV[4] summary TTL, ARGV[5] generation TTL
var setIfCurrent = redis.NewScript(`
local gen = (tonumber(redis.call('HGET', KEYS[2], ARGV[1])) or 0)
	+ (tonumber(redis.call('HGET', KEYS[2], '*')) or 0)
if gen ~= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('EXPIRE', KEYS[1], ARGV[4])
redis.call('EXPIRE', KEYS[2], ARGV[5])
return 1
`)

// RedisSummaryCache keeps all month summaries of a user in one hash, so a
// habit change can drop them with a single DEL. Generations live in a second
// hash that outlives the summaries.
type RedisSummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSummaryCache(rdb *redis.Client, ttl time.Duration) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &RedisSummaryCache{rdb: rdb, ttl: ttl}
}

func (c *RedisSummaryCache) hashKey(userID string) string {
	return fmt.Sprintf("summary:%s", userID)
}

func (c *RedisSummaryCache) genKey(userID string) string {
	return fmt.Sprintf("summary-gen:%s", userID)
}

func (c *RedisSummaryCache) genTTL() time.Duration {
	return 2 * c.ttl
}

func (c *RedisSummaryCache) Generation(ctx context.Context, userID string, key calendar.MonthKey) (int64, error) {
	vals, err := c.rdb.HMGet(ctx, c.genKey(userID), key.String(), userGenField).Result()
	if err != nil {
		return 0, fmt.Errorf("summary generation: %w", err)
	}

	var gen int64
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("summary generation %q: %w", s, err)
		}
		gen += n
	}
	return gen, nil
}

func (c *RedisSummaryCache) Get(ctx context.Context, userID string, key calendar.MonthKey) (*progress.Summary, error) {
	val, err := c.rdb.HGet(ctx, c.hashKey(userID), key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, services.ErrSummaryCacheMiss
		}
		return nil, fmt.Errorf("summary cache get: %w", err)
	}

	var s progress.Summary
	if err := json.Unmarshal(val, &s); err != nil {
		c.rdb.HDel(ctx, c.hashKey(userID), key.String())
		return nil, services.ErrSummaryCacheMiss
	}
	return &s, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, userID string, key calendar.MonthKey, summary *progress.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("summary cache encode: %w", err)
	}

	stored, err := setIfCurrent.Run(ctx, c.rdb,
		[]string{c.hashKey(userID), c.genKey(userID)},
		key.String(), summary.Generation, data, int(c.ttl.Seconds()), int(c.genTTL().Seconds()),
	).Int()
	if err != nil {
		return fmt.Errorf("summary cache set: %w", err)
	}
	if stored == 0 {
		return services.ErrStaleSummary
	}
	return nil
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, userID string, key calendar.MonthKey) error {
	return c.bump(ctx, userID, key.String())
}

func (c *RedisSummaryCache) InvalidateUser(ctx context.Context, userID string) error {
	return c.bump(ctx, userID, userGenField)
}

func (c *RedisSummaryCache) bump(ctx context.Context, userID, field string) error {
	gk := c.genKey(userID)

	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, gk, field, 1)
	pipe.Expire(ctx, gk, c.genTTL())
	if field == userGenField {
		pipe.Del(ctx, c.hashKey(userID))
	} else {
		pipe.HDel(ctx, c.hashKey(userID), field)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("summary cache invalidate: %w", err)
	}
	return nil
}
