package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
	"github.com/comitanigiacomo/kanso-habits/internal/metrics"
)

var _ domain.CompletionRepository = (*CachedCompletionRepository)(nil)

const monthTTL = 15 * time.Minute

// CachedCompletionRepository caches single months, which is what the month
// grid reads on every render, and whole years for the heatmap. Writes drop
// both entries.
type CachedCompletionRepository struct {
	next  domain.CompletionRepository
	cache *redis.Client
}

func NewCachedCompletionRepository(next domain.CompletionRepository, cache *redis.Client) *CachedCompletionRepository {
	return &CachedCompletionRepository{
		next:  next,
		cache: cache,
	}
}

func (r *CachedCompletionRepository) cacheKey(userID string, key calendar.MonthKey) string {
	return fmt.Sprintf("checks:%s:%s", userID, key)
}

func (r *CachedCompletionRepository) yearKey(userID string, year int) string {
	return fmt.Sprintf("checks-year:%s:%d", userID, year)
}

func (r *CachedCompletionRepository) GetMonth(ctx context.Context, userID string, key calendar.MonthKey) (domain.MonthChecks, error) {
	ck := r.cacheKey(userID, key)

	val, err := r.cache.Get(ctx, ck).Bytes()
	switch {
	case err == nil:
		var checks domain.MonthChecks
		if err := json.Unmarshal(val, &checks); err == nil && checks != nil {
			metrics.CacheLookups.WithLabelValues("months", "hit").Inc()
			return checks, nil
		}
		r.cache.Del(ctx, ck)
		metrics.CacheLookups.WithLabelValues("months", "error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("months", "miss").Inc()
	default:
		logger.Warn("redis read error", "cache", "months", "err", err)
		metrics.CacheLookups.WithLabelValues("months", "error").Inc()
	}

	checks, err := r.next.GetMonth(ctx, userID, key)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(checks); err == nil {
		if setErr := r.cache.Set(ctx, ck, data, monthTTL).Err(); setErr != nil {
			logger.Warn("redis set error", "cache", "months", "err", setErr)
		}
	}
	return checks, nil
}

// GetYear stores the year as one JSON object keyed by month key text.
func (r *CachedCompletionRepository) GetYear(ctx context.Context, userID string, year int) (map[calendar.MonthKey]domain.MonthChecks, error) {
	ck := r.yearKey(userID, year)

	val, err := r.cache.Get(ctx, ck).Bytes()
	switch {
	case err == nil:
		var months map[calendar.MonthKey]domain.MonthChecks
		if err := json.Unmarshal(val, &months); err == nil && months != nil {
			metrics.CacheLookups.WithLabelValues("years", "hit").Inc()
			return months, nil
		}
		r.cache.Del(ctx, ck)
		metrics.CacheLookups.WithLabelValues("years", "error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("years", "miss").Inc()
	default:
		logger.Warn("redis read error", "cache", "years", "err", err)
		metrics.CacheLookups.WithLabelValues("years", "error").Inc()
	}

	months, err := r.next.GetYear(ctx, userID, year)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(months); err == nil {
		if setErr := r.cache.Set(ctx, ck, data, monthTTL).Err(); setErr != nil {
			logger.Warn("redis set error", "cache", "years", "err", setErr)
		}
	} else {
		logger.Warn("year encode failed", "cache", "years", "user", userID, "err", err)
	}
	return months, nil
}

func (r *CachedCompletionRepository) SetMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int, done bool) error {
	if err := r.next.SetMark(ctx, userID, key, habitID, day, done); err != nil {
		return err
	}
	r.invalidate(ctx, userID, key)
	return nil
}

func (r *CachedCompletionRepository) ToggleMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int) (bool, error) {
	done, err := r.next.ToggleMark(ctx, userID, key, habitID, day)
	if err != nil {
		return false, err
	}
	r.invalidate(ctx, userID, key)
	return done, nil
}

func (r *CachedCompletionRepository) invalidate(ctx context.Context, userID string, key calendar.MonthKey) {
	if err := r.cache.Del(ctx, r.cacheKey(userID, key), r.yearKey(userID, key.Year)).Err(); err != nil {
		logger.Warn("cache invalidation failed", "cache", "months", "user", userID, "err", err)
	}
}
