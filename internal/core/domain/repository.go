package domain

import (
	"context"
	"errors"
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrHabitConflict = errors.New("habit version conflict")
	ErrUnauthorized  = errors.New("unauthorized")
)

type HabitRepository interface {
	// Create persists a new habit definition.
	Create(ctx context.Context, habit *Habit) error

	// GetByID retrieves a live (non-deleted) habit.
	GetByID(ctx context.Context, id string) (*Habit, error)

	// ListByUserID returns the user's live habits ordered by sort order, then creation time.
	ListByUserID(ctx context.Context, userID string) ([]*Habit, error)

	// Update writes the habit if its Version still matches the stored one
	// and bumps the version. A stale version yields ErrHabitConflict.
	Update(ctx context.Context, habit *Habit) error

	// Delete soft-deletes the habit so sync clients can observe the removal.
	Delete(ctx context.Context, id string) error

	// GetChanges [SYNC] returns habits created, updated or deleted after since.
	GetChanges(ctx context.Context, userID string, since time.Time) ([]*Habit, error)
}

type CompletionRepository interface {
	// GetMonth returns the sparse marks of one month. A month without marks is an empty map.
	GetMonth(ctx context.Context, userID string, key calendar.MonthKey) (MonthChecks, error)

	// GetYear returns every stored month of the year, keyed by month.
	GetYear(ctx context.Context, userID string, year int) (map[calendar.MonthKey]MonthChecks, error)

	// SetMark merges a single day mark into the month record.
	SetMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int, done bool) error

	// ToggleMark flips a day mark in one atomic step and returns the new state.
	// A missing mark counts as not done, so the first toggle sets it.
	ToggleMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int) (bool, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
