package services

import (
	"context"
	"strconv"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/core/progress"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
	"github.com/comitanigiacomo/kanso-habits/internal/metrics"
)

// SummaryQueue schedules a background recompute of a month summary.
type SummaryQueue interface {
	Enqueue(userID string, key calendar.MonthKey)
}

type CompletionService struct {
	repo      domain.CompletionRepository
	habitRepo domain.HabitRepository
	summaries SummaryCache
	queue     SummaryQueue
}

func NewCompletionService(repo domain.CompletionRepository, habitRepo domain.HabitRepository, summaries SummaryCache, queue SummaryQueue) *CompletionService {
	if summaries == nil {
		summaries = NoopSummaryCache{}
	}
	return &CompletionService{
		repo:      repo,
		habitRepo: habitRepo,
		summaries: summaries,
		queue:     queue,
	}
}

type MarkInput struct {
	UserID  string
	HabitID string
	Month   calendar.MonthKey
	Day     int
	Done    bool
}

type ToggleInput struct {
	UserID  string
	HabitID string
	Month   calendar.MonthKey
	Day     int
}

func (s *CompletionService) GetMonth(ctx context.Context, userID string, key calendar.MonthKey) (domain.MonthChecks, error) {
	if !key.Valid() {
		return nil, calendar.ErrInvalidMonth
	}
	return s.repo.GetMonth(ctx, userID, key)
}

// Mark sets the day to the requested state. Clearing a mark is always allowed,
// so stale marks left on days a schedule no longer covers can be removed.
func (s *CompletionService) Mark(ctx context.Context, input MarkInput) error {
	habit, err := s.validate(ctx, input.UserID, input.HabitID, input.Month, input.Day)
	if err != nil {
		return err
	}

	if input.Done && !s.activeOn(habit, input.Month, input.Day) {
		return domain.ErrHabitInactiveOnDay
	}

	return s.write(ctx, input.UserID, input.HabitID, input.Month, input.Day, input.Done)
}

// Toggle flips the stored mark and returns the new state. On an active day the
// flip happens inside the repository, so concurrent toggles never lose an update.
// On an inactive day only an existing mark can be cleared.
func (s *CompletionService) Toggle(ctx context.Context, input ToggleInput) (bool, error) {
	habit, err := s.validate(ctx, input.UserID, input.HabitID, input.Month, input.Day)
	if err != nil {
		return false, err
	}

	if s.activeOn(habit, input.Month, input.Day) {
		done, err := s.repo.ToggleMark(ctx, input.UserID, input.Month, input.HabitID, input.Day)
		if err != nil {
			return false, err
		}
		s.afterWrite(ctx, input.UserID, input.Month, done)
		return done, nil
	}

	checks, err := s.repo.GetMonth(ctx, input.UserID, input.Month)
	if err != nil {
		return false, err
	}
	if !checks.Done(input.HabitID, input.Day) {
		return false, domain.ErrHabitInactiveOnDay
	}
	if err := s.write(ctx, input.UserID, input.HabitID, input.Month, input.Day, false); err != nil {
		return false, err
	}
	return false, nil
}

func (s *CompletionService) validate(ctx context.Context, userID, habitID string, key calendar.MonthKey, day int) (*domain.Habit, error) {
	if !key.Valid() {
		return nil, calendar.ErrInvalidMonth
	}
	if day < 1 || day > key.Days() {
		return nil, domain.ErrInvalidDay
	}

	habit, err := s.habitRepo.GetByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID {
		return nil, domain.ErrHabitNotFound
	}
	return habit, nil
}

func (s *CompletionService) activeOn(habit *domain.Habit, key calendar.MonthKey, day int) bool {
	return progress.IsActiveOnDate(*habit, calendar.Date(key.Year, key.Month, day))
}

func (s *CompletionService) write(ctx context.Context, userID, habitID string, key calendar.MonthKey, day int, done bool) error {
	if err := s.repo.SetMark(ctx, userID, key, habitID, day, done); err != nil {
		return err
	}
	s.afterWrite(ctx, userID, key, done)
	return nil
}

func (s *CompletionService) afterWrite(ctx context.Context, userID string, key calendar.MonthKey, done bool) {
	metrics.CheckWrites.WithLabelValues(strconv.FormatBool(done)).Inc()

	if err := s.summaries.Invalidate(ctx, userID, key); err != nil {
		logger.Warn("failed to invalidate month summary", "user", userID, "month", key.String(), "err", err)
	}
	if s.queue != nil {
		s.queue.Enqueue(userID, key)
	}
}
