package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/core/progress"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
	"github.com/comitanigiacomo/kanso-habits/internal/metrics"
)

type StatsService struct {
	habitRepo      domain.HabitRepository
	completionRepo domain.CompletionRepository
	summaries      SummaryCache
	days           *calendar.YearDays
	now            func() time.Time
}

type StatsOption func(*StatsService)

// WithClock replaces time.Now, which decides the elapsed-day limit of the current month.
func WithClock(now func() time.Time) StatsOption {
	return func(s *StatsService) {
		s.now = now
	}
}

func NewStatsService(habitRepo domain.HabitRepository, completionRepo domain.CompletionRepository, summaries SummaryCache, days *calendar.YearDays, opts ...StatsOption) *StatsService {
	if summaries == nil {
		summaries = NoopSummaryCache{}
	}
	if days == nil {
		days = calendar.NewYearDays(time.Local)
	}

	s := &StatsService{
		habitRepo:      habitRepo,
		completionRepo: completionRepo,
		summaries:      summaries,
		days:           days,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type YearHeatmap struct {
	Year   int                     `json:"year"`
	Days   []progress.HeatmapDay   `json:"days"`
	Blocks []progress.QuarterBlock `json:"blocks"`
}

func (s *StatsService) clock() time.Time {
	return s.now().In(s.days.Location())
}

// MonthSummary serves a cached summary while it still describes the same
// elapsed range and generation, and recomputes it otherwise.
func (s *StatsService) MonthSummary(ctx context.Context, userID string, key calendar.MonthKey) (*progress.Summary, error) {
	if !key.Valid() {
		return nil, calendar.ErrInvalidMonth
	}

	now := s.clock()

	// The generation is read before the records: a write landing in between
	// bumps it, and the summary computed here is then refused by the cache.
	gen, err := s.summaries.Generation(ctx, userID, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("summary", "error").Inc()
		logger.Warn("summary generation read failed", "user", userID, "month", key.String(), "err", err)
		return s.compute(ctx, userID, key, now)
	}

	cached, err := s.summaries.Get(ctx, userID, key)
	switch {
	case err == nil && cached.Generation == gen && fresh(cached, key, now):
		metrics.CacheLookups.WithLabelValues("summary", "hit").Inc()
		return cached, nil
	case err == nil, errors.Is(err, ErrSummaryCacheMiss):
		metrics.CacheLookups.WithLabelValues("summary", "miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("summary", "error").Inc()
		logger.Warn("summary cache read failed", "user", userID, "month", key.String(), "err", err)
	}

	summary, err := s.compute(ctx, userID, key, now)
	if err != nil {
		return nil, err
	}
	summary.Generation = gen

	if err := s.store(ctx, userID, key, summary); err != nil {
		logger.Warn("summary cache write failed", "user", userID, "month", key.String(), "err", err)
	}
	return summary, nil
}

// RefreshMonthSummary recomputes the summary and stores it, bypassing the cached copy.
func (s *StatsService) RefreshMonthSummary(ctx context.Context, userID string, key calendar.MonthKey) error {
	gen, err := s.summaries.Generation(ctx, userID, key)
	if err != nil {
		return err
	}

	summary, err := s.compute(ctx, userID, key, s.clock())
	if err != nil {
		return err
	}
	summary.Generation = gen
	return s.store(ctx, userID, key, summary)
}

// store treats a refused stale summary as done: the invalidation that made it
// stale already dropped the cached copy.
func (s *StatsService) store(ctx context.Context, userID string, key calendar.MonthKey, summary *progress.Summary) error {
	err := s.summaries.Set(ctx, userID, key, summary)
	if errors.Is(err, ErrStaleSummary) {
		logger.Debug("stale month summary not cached", "user", userID, "month", key.String(), "generation", summary.Generation)
		return nil
	}
	return err
}

func (s *StatsService) YearHeatmap(ctx context.Context, userID string, year int) (*YearHeatmap, error) {
	var (
		habits []domain.Habit
		months map[calendar.MonthKey]domain.MonthChecks
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		habits, err = s.loadHabits(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		months, err = s.completionRepo.GetYear(gctx, userID, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &YearHeatmap{
		Year:   year,
		Days:   progress.YearHeatmap(habits, months, year, s.days),
		Blocks: progress.QuarterBlocks(year),
	}, nil
}

func (s *StatsService) compute(ctx context.Context, userID string, key calendar.MonthKey, now time.Time) (*progress.Summary, error) {
	start := time.Now()
	defer func() {
		metrics.SummaryDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		habits []domain.Habit
		checks domain.MonthChecks
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		habits, err = s.loadHabits(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		checks, err = s.completionRepo.GetMonth(gctx, userID, key)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := progress.MonthSummary(habits, checks, key, now)
	return &summary, nil
}

func (s *StatsService) loadHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	list, err := s.habitRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	habits := make([]domain.Habit, 0, len(list))
	for _, h := range list {
		habits = append(habits, *h)
	}
	return habits, nil
}

// fresh reports whether a stored summary still covers the same elapsed days as now.
func fresh(s *progress.Summary, key calendar.MonthKey, now time.Time) bool {
	if s == nil {
		return false
	}
	limit := min(progress.ElapsedDayLimit(key.Year, key.Month, now), key.Days())
	today := 0
	if calendar.NewMonthKey(now) == key {
		today = now.Day()
	}
	return s.ElapsedDays == limit && s.Today == today
}
