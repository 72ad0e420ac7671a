package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
)

type HabitService struct {
	repo      domain.HabitRepository
	summaries SummaryCache
}

func NewHabitService(repo domain.HabitRepository, summaries SummaryCache) *HabitService {
	if summaries == nil {
		summaries = NoopSummaryCache{}
	}
	return &HabitService{
		repo:      repo,
		summaries: summaries,
	}
}

type CreateHabitInput struct {
	// ID lets offline clients pick the id up front; empty means generate one.
	ID     string
	UserID string
	Name   string
	// Schedule is optional; nil means every day.
	Schedule *domain.ScheduleDoc
}

type RenameHabitInput struct {
	ID      string
	UserID  string
	Name    string
	Version int
}

type UpdateScheduleInput struct {
	ID       string
	UserID   string
	Schedule domain.ScheduleDoc
	Version  int
}

type ReorderHabitInput struct {
	ID       string
	UserID   string
	Position int
	Version  int
}

// Create appends the new habit after the user's existing ones. Retrying a
// create with a client-provided id returns the stored habit.
func (s *HabitService) Create(ctx context.Context, input CreateHabitInput) (*domain.Habit, error) {
	habit, err := domain.NewHabit(input.UserID, input.Name)
	if err != nil {
		return nil, err
	}

	if input.ID != "" {
		existing, err := s.repo.GetByID(ctx, input.ID)
		switch {
		case err == nil && existing.UserID == input.UserID:
			return existing, nil
		case err == nil:
			return nil, domain.ErrHabitConflict
		case !errors.Is(err, domain.ErrHabitNotFound):
			return nil, err
		}
		habit.ID = input.ID
	}

	if input.Schedule != nil {
		schedule, err := input.Schedule.Strict()
		if err != nil {
			return nil, err
		}
		if err := habit.SetSchedule(schedule); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.ListByUserID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	habit.SortOrder = len(existing)

	if err := s.repo.Create(ctx, habit); err != nil {
		return nil, err
	}

	s.invalidate(ctx, input.UserID)
	return habit, nil
}

func (s *HabitService) ListByUserID(ctx context.Context, userID string) ([]*domain.Habit, error) {
	return s.repo.ListByUserID(ctx, userID)
}

func (s *HabitService) GetDelta(ctx context.Context, userID string, lastSync time.Time) ([]*domain.Habit, error) {
	return s.repo.GetChanges(ctx, userID, lastSync)
}

func (s *HabitService) Rename(ctx context.Context, input RenameHabitInput) (*domain.Habit, error) {
	return s.mutate(ctx, input.ID, input.UserID, input.Version, func(h *domain.Habit) error {
		return h.Rename(input.Name)
	})
}

func (s *HabitService) UpdateSchedule(ctx context.Context, input UpdateScheduleInput) (*domain.Habit, error) {
	schedule, err := input.Schedule.Strict()
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, input.ID, input.UserID, input.Version, func(h *domain.Habit) error {
		return h.SetSchedule(schedule)
	})
}

func (s *HabitService) Reorder(ctx context.Context, input ReorderHabitInput) (*domain.Habit, error) {
	return s.mutate(ctx, input.ID, input.UserID, input.Version, func(h *domain.Habit) error {
		return h.ChangePosition(input.Position)
	})
}

func (s *HabitService) Delete(ctx context.Context, id string, userID string) error {
	habit, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if habit.UserID != userID {
		return domain.ErrHabitNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

// mutate loads an owned habit, checks the client's version (0 skips the check),
// applies fn and persists the result.
func (s *HabitService) mutate(ctx context.Context, id, userID string, version int, fn func(*domain.Habit) error) (*domain.Habit, error) {
	habit, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if habit.UserID != userID {
		return nil, domain.ErrHabitNotFound
	}

	if version > 0 && habit.Version != version {
		return nil, fmt.Errorf("%w: client v%d vs server v%d", domain.ErrHabitConflict, version, habit.Version)
	}

	if err := fn(habit); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, habit); err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return habit, nil
}

// Habit changes affect every month's summary; a failed invalidation is logged, not returned.
func (s *HabitService) invalidate(ctx context.Context, userID string) {
	if err := s.summaries.InvalidateUser(ctx, userID); err != nil {
		logger.Warn("failed to invalidate month summaries", "user", userID, "err", err)
	}
}
