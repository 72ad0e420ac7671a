package repository

import (
	"context"
	"errors"
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
	"github.com/comitanigiacomo/kanso-habits/internal/metrics"
)

var (
	_ domain.HabitRepository      = (*OfflineHabitRepository)(nil)
	_ domain.CompletionRepository = (*OfflineCompletionRepository)(nil)
)

// offlineEligible reports whether a remote error should be answered from the
// local snapshot. Domain errors and cancellations are returned as they are.
func offlineEligible(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, domain.ErrHabitNotFound) &&
		!errors.Is(err, domain.ErrHabitConflict) &&
		!errors.Is(err, context.Canceled)
}

// OfflineHabitRepository keeps the last good habit list of each user in the
// local store and serves it while the primary database is unreachable.
type OfflineHabitRepository struct {
	next  domain.HabitRepository
	store *SQLiteStore
}

func NewOfflineHabitRepository(next domain.HabitRepository, store *SQLiteStore) *OfflineHabitRepository {
	return &OfflineHabitRepository{next: next, store: store}
}

func (r *OfflineHabitRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Habit, error) {
	habits, err := r.next.ListByUserID(ctx, userID)
	if err == nil {
		if saveErr := r.store.SaveHabits(ctx, userID, habits); saveErr != nil {
			logger.Warn("local snapshot write failed", "kind", "habits", "user", userID, "err", saveErr)
		}
		return habits, nil
	}
	if !offlineEligible(ctx, err) {
		return nil, err
	}

	local, loadErr := r.store.LoadHabits(ctx, userID)
	if loadErr != nil {
		return nil, err
	}
	logger.Warn("serving habits from local snapshot", "user", userID, "err", err)
	metrics.OfflineFallbacks.WithLabelValues("habits").Inc()
	return local, nil
}

func (r *OfflineHabitRepository) Create(ctx context.Context, habit *domain.Habit) error {
	return r.next.Create(ctx, habit)
}

func (r *OfflineHabitRepository) GetByID(ctx context.Context, id string) (*domain.Habit, error) {
	return r.next.GetByID(ctx, id)
}

func (r *OfflineHabitRepository) Update(ctx context.Context, habit *domain.Habit) error {
	return r.next.Update(ctx, habit)
}

func (r *OfflineHabitRepository) Delete(ctx context.Context, id string) error {
	return r.next.Delete(ctx, id)
}

func (r *OfflineHabitRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.Habit, error) {
	return r.next.GetChanges(ctx, userID, since)
}

// OfflineCompletionRepository mirrors month records locally. Reads fall back
// to the mirror, and successful writes are merged into it.
type OfflineCompletionRepository struct {
	next  domain.CompletionRepository
	store *SQLiteStore
}

func NewOfflineCompletionRepository(next domain.CompletionRepository, store *SQLiteStore) *OfflineCompletionRepository {
	return &OfflineCompletionRepository{next: next, store: store}
}

func (r *OfflineCompletionRepository) GetMonth(ctx context.Context, userID string, key calendar.MonthKey) (domain.MonthChecks, error) {
	checks, err := r.next.GetMonth(ctx, userID, key)
	if err == nil {
		if saveErr := r.store.SaveMonth(ctx, userID, key, checks); saveErr != nil {
			logger.Warn("local snapshot write failed", "kind", "months", "user", userID, "month", key, "err", saveErr)
		}
		return checks, nil
	}
	if !offlineEligible(ctx, err) {
		return nil, err
	}

	local, loadErr := r.store.LoadMonth(ctx, userID, key)
	if loadErr != nil {
		return nil, err
	}
	logger.Warn("serving month from local snapshot", "user", userID, "month", key, "err", err)
	metrics.OfflineFallbacks.WithLabelValues("months").Inc()
	return local, nil
}

func (r *OfflineCompletionRepository) GetYear(ctx context.Context, userID string, year int) (map[calendar.MonthKey]domain.MonthChecks, error) {
	months, err := r.next.GetYear(ctx, userID, year)
	if err == nil {
		// Months without marks are saved empty so cleared marks do not linger locally.
		for _, key := range calendar.YearMonths(year) {
			if saveErr := r.store.SaveMonth(ctx, userID, key, months[key]); saveErr != nil {
				logger.Warn("local snapshot write failed", "kind", "months", "user", userID, "month", key, "err", saveErr)
				break
			}
		}
		return months, nil
	}
	if !offlineEligible(ctx, err) {
		return nil, err
	}

	local, loadErr := r.store.LoadYear(ctx, userID, year)
	if loadErr != nil {
		return nil, err
	}
	logger.Warn("serving year from local snapshot", "user", userID, "year", year, "err", err)
	metrics.OfflineFallbacks.WithLabelValues("years").Inc()
	return local, nil
}

func (r *OfflineCompletionRepository) SetMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int, done bool) error {
	if err := r.next.SetMark(ctx, userID, key, habitID, day, done); err != nil {
		return err
	}
	if err := r.store.MergeMark(ctx, userID, key, habitID, day, done); err != nil {
		logger.Warn("local snapshot merge failed", "user", userID, "month", key, "err", err)
	}
	return nil
}

func (r *OfflineCompletionRepository) ToggleMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int) (bool, error) {
	done, err := r.next.ToggleMark(ctx, userID, key, habitID, day)
	if err != nil {
		return false, err
	}
	if err := r.store.MergeMark(ctx, userID, key, habitID, day, done); err != nil {
		logger.Warn("local snapshot merge failed", "user", userID, "month", key, "err", err)
	}
	return done, nil
}
