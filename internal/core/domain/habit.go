package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrHabitNameEmpty     = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong   = errors.New("habit name is too long (max 100 chars)")
	ErrHabitInvalidUserID = errors.New("invalid user id")
	ErrInvalidPosition    = errors.New("position cannot be negative")
	ErrHabitDeleted       = errors.New("cannot modify a deleted habit")
)

const MaxNameLen = 100

type Habit struct {
	ID        string
	UserID    string
	Name      string
	Schedule  Schedule
	SortOrder int
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

type habitJSON struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Name      string      `json:"name"`
	Schedule  ScheduleDoc `json:"schedule"`
	SortOrder int         `json:"sort_order"`
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
}

func (h Habit) MarshalJSON() ([]byte, error) {
	return json.Marshal(habitJSON{
		ID:        h.ID,
		UserID:    h.UserID,
		Name:      h.Name,
		Schedule:  ScheduleToDoc(h.Schedule),
		SortOrder: h.SortOrder,
		Version:   h.Version,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
		DeletedAt: h.DeletedAt,
	})
}

func (h *Habit) UnmarshalJSON(data []byte) error {
	var raw struct {
		habitJSON
		Schedule json.RawMessage `json:"schedule"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	sched, err := UnmarshalSchedule(raw.Schedule)
	if err != nil {
		return err
	}

	*h = Habit{
		ID:        raw.ID,
		UserID:    raw.UserID,
		Name:      raw.Name,
		Schedule:  sched,
		SortOrder: raw.SortOrder,
		Version:   raw.Version,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		DeletedAt: raw.DeletedAt,
	}
	return nil
}

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrHabitNameEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLen {
		return "", ErrHabitNameTooLong
	}
	return trimmed, nil
}

// NewHabit creates a habit active every day of the week.
func NewHabit(userID, name string) (*Habit, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrHabitInvalidUserID
	}

	cleanName, err := validateName(name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return &Habit{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      cleanName,
		Schedule:  EveryDay(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (h *Habit) Rename(name string) error {
	if h.DeletedAt != nil {
		return ErrHabitDeleted
	}

	cleanName, err := validateName(name)
	if err != nil {
		return err
	}

	h.Name = cleanName
	h.UpdatedAt = time.Now().UTC()
	return nil
}

func (h *Habit) SetSchedule(s Schedule) error {
	if h.DeletedAt != nil {
		return ErrHabitDeleted
	}
	if s == nil {
		s = EveryDay()
	}

	h.Schedule = s
	h.UpdatedAt = time.Now().UTC()
	return nil
}

func (h *Habit) ChangePosition(newOrder int) error {
	if h.DeletedAt != nil {
		return ErrHabitDeleted
	}
	if newOrder < 0 {
		return ErrInvalidPosition
	}

	h.SortOrder = newOrder
	h.UpdatedAt = time.Now().UTC()
	return nil
}

func (h *Habit) IsQuota() bool {
	_, ok := h.Schedule.(QuotaSchedule)
	return ok
}
