package services_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/core/progress"
	"github.com/comitanigiacomo/kanso-habits/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

type MockRepo struct {
	store         map[string]*domain.Habit
	simulateError error
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		store: make(map[string]*domain.Habit),
	}
}

func (m *MockRepo) Create(ctx context.Context, habit *domain.Habit) error {
	if m.simulateError != nil {
		return m.simulateError
	}

	if _, exists := m.store[habit.ID]; exists {
		return domain.ErrHabitConflict
	}

	if habit.Version == 0 {
		habit.Version = 1
	}
	clone := *habit
	m.store[habit.ID] = &clone
	return nil
}

func (m *MockRepo) GetByID(ctx context.Context, id string) (*domain.Habit, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	h, ok := m.store[id]
	if !ok || h.DeletedAt != nil {
		return nil, domain.ErrHabitNotFound
	}
	clone := *h
	return &clone, nil
}

func (m *MockRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Habit, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	var list []*domain.Habit
	for _, h := range m.store {
		if h.UserID == userID && h.DeletedAt == nil {
			clone := *h
			list = append(list, &clone)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SortOrder < list[j].SortOrder })
	return list, nil
}

func (m *MockRepo) Update(ctx context.Context, habit *domain.Habit) error {
	if m.simulateError != nil {
		return m.simulateError
	}

	stored, ok := m.store[habit.ID]
	if !ok {
		return domain.ErrHabitNotFound
	}
	if stored.Version != habit.Version {
		return domain.ErrHabitConflict
	}

	habit.Version++
	clone := *habit
	m.store[habit.ID] = &clone
	return nil
}

func (m *MockRepo) Delete(ctx context.Context, id string) error {
	if m.simulateError != nil {
		return m.simulateError
	}
	h, ok := m.store[id]
	if !ok {
		return domain.ErrHabitNotFound
	}
	now := time.Now().UTC()
	h.DeletedAt = &now
	h.Version++
	h.UpdatedAt = now
	return nil
}

func (m *MockRepo) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.Habit, error) {
	var changes []*domain.Habit
	for _, h := range m.store {
		if h.UserID == userID && h.UpdatedAt.After(since) {
			clone := *h
			changes = append(changes, &clone)
		}
	}
	return changes, nil
}

// spyCache is an in-memory SummaryCache that records invalidations.
type spyCache struct {
	mu               sync.Mutex
	data             map[string]*progress.Summary
	gens             map[string]int64
	userGens         map[string]int64
	invalidated      []calendar.MonthKey
	usersInvalidated []string
}

func newSpyCache() *spyCache {
	return &spyCache{
		data:     make(map[string]*progress.Summary),
		gens:     make(map[string]int64),
		userGens: make(map[string]int64),
	}
}

func (c *spyCache) generation(userID string, key calendar.MonthKey) int64 {
	return c.gens[userID+"/"+key.String()] + c.userGens[userID]
}

func (c *spyCache) Generation(_ context.Context, userID string, key calendar.MonthKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(userID, key), nil
}

func (c *spyCache) Get(_ context.Context, userID string, key calendar.MonthKey) (*progress.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.data[userID+"/"+key.String()]
	if !ok {
		return nil, services.ErrSummaryCacheMiss
	}
	return s, nil
}

func (c *spyCache) Set(_ context.Context, userID string, key calendar.MonthKey, s *progress.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Generation != c.generation(userID, key) {
		return services.ErrStaleSummary
	}
	c.data[userID+"/"+key.String()] = s
	return nil
}

func (c *spyCache) Invalidate(_ context.Context, userID string, key calendar.MonthKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID+"/"+key.String())
	c.gens[userID+"/"+key.String()]++
	c.invalidated = append(c.invalidated, key)
	return nil
}

func (c *spyCache) InvalidateUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, userID+"/") {
			delete(c.data, k)
		}
	}
	c.userGens[userID]++
	c.usersInvalidated = append(c.usersInvalidated, userID)
	return nil
}

func seedHabit(t *testing.T, repo *MockRepo, userID, name string) *domain.Habit {
	t.Helper()
	h, err := domain.NewHabit(userID, name)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), h))
	return h
}

func TestHabitService_Create(t *testing.T) {
	t.Run("Success: Should create an every-day habit by default", func(t *testing.T) {
		repo := NewMockRepo()
		cache := newSpyCache()
		svc := services.NewHabitService(repo, cache)
		ctx := context.Background()

		created, err := svc.Create(ctx, services.CreateHabitInput{UserID: "user-1", Name: "  Read  "})

		require.NoError(t, err)
		assert.Equal(t, "Read", created.Name)
		assert.Equal(t, 1, created.Version)
		assert.Equal(t, domain.EveryDay(), created.Schedule)
		assert.Equal(t, 0, created.SortOrder)
		assert.Equal(t, []string{"user-1"}, cache.usersInvalidated)

		stored, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, stored.ID)
	})

	t.Run("Success: Should append after existing habits", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		ctx := context.Background()

		_, err := svc.Create(ctx, services.CreateHabitInput{UserID: "user-1", Name: "First"})
		require.NoError(t, err)
		second, err := svc.Create(ctx, services.CreateHabitInput{UserID: "user-1", Name: "Second"})
		require.NoError(t, err)

		assert.Equal(t, 1, second.SortOrder)
	})

	t.Run("Success: Should accept an explicit schedule", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)

		created, err := svc.Create(context.Background(), services.CreateHabitInput{
			UserID: "user-1",
			Name:   "Gym",
			Schedule: &domain.ScheduleDoc{
				Mode:         domain.ScheduleModeQuota,
				TimesPerWeek: ptr(3),
			},
		})

		require.NoError(t, err)
		assert.Equal(t, domain.NewQuotaSchedule(3), created.Schedule)
	})

	t.Run("Fail: Should reject an unknown schedule mode", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)

		_, err := svc.Create(context.Background(), services.CreateHabitInput{
			UserID:   "user-1",
			Name:     "Gym",
			Schedule: &domain.ScheduleDoc{Mode: "fortnightly"},
		})

		assert.ErrorIs(t, err, domain.ErrInvalidScheduleMode)
		assert.Empty(t, repo.store)
	})

	t.Run("Idempotency: Should return existing habit if ID exists (Sync Retry)", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		ctx := context.Background()

		input := services.CreateHabitInput{ID: "retry-id", UserID: "user-1", Name: "Retry Habit"}
		first, err := svc.Create(ctx, input)
		require.NoError(t, err)

		second, err := svc.Create(ctx, input)

		require.NoError(t, err)
		assert.Equal(t, "retry-id", second.ID)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
		assert.Len(t, repo.store, 1)
	})

	t.Run("Fail: Security - Client ID owned by another user", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		ctx := context.Background()

		_, err := svc.Create(ctx, services.CreateHabitInput{ID: "shared-id", UserID: "user-1", Name: "Mine"})
		require.NoError(t, err)

		_, err = svc.Create(ctx, services.CreateHabitInput{ID: "shared-id", UserID: "user-2", Name: "Theirs"})
		assert.ErrorIs(t, err, domain.ErrHabitConflict)
	})

	t.Run("Fail: Domain Validation Error (Blocked BEFORE DB)", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)

		_, err := svc.Create(context.Background(), services.CreateHabitInput{UserID: "user-1", Name: ""})

		assert.ErrorIs(t, err, domain.ErrHabitNameEmpty)
		assert.Empty(t, repo.store)
	})

	t.Run("Fail: Repository error is propagated", func(t *testing.T) {
		repo := NewMockRepo()
		repo.simulateError = errors.New("db down")
		svc := services.NewHabitService(repo, nil)

		_, err := svc.Create(context.Background(), services.CreateHabitInput{UserID: "user-1", Name: "Read"})
		assert.EqualError(t, err, "db down")
	})
}

func TestHabitService_Rename(t *testing.T) {
	t.Run("Success: Should rename and bump the version", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		existing := seedHabit(t, repo, "user-1", "Old")

		updated, err := svc.Rename(context.Background(), services.RenameHabitInput{
			ID: existing.ID, UserID: "user-1", Name: "New", Version: 1,
		})

		require.NoError(t, err)
		assert.Equal(t, "New", updated.Name)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, "New", repo.store[existing.ID].Name)
	})

	t.Run("Fail: Security - Cannot rename other user's habit (IDOR)", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		existing := seedHabit(t, repo, "user-1", "Secret")

		_, err := svc.Rename(context.Background(), services.RenameHabitInput{
			ID: existing.ID, UserID: "user-2", Name: "Hacked",
		})

		assert.ErrorIs(t, err, domain.ErrHabitNotFound)
		assert.Equal(t, "Secret", repo.store[existing.ID].Name)
	})

	t.Run("Optimistic Locking: Should fail if client has old version", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		existing := seedHabit(t, repo, "user-1", "V1")
		repo.store[existing.ID].Version = 2

		_, err := svc.Rename(context.Background(), services.RenameHabitInput{
			ID: existing.ID, UserID: "user-1", Name: "Override", Version: 1,
		})

		assert.ErrorIs(t, err, domain.ErrHabitConflict)
	})

	t.Run("Fail: Empty name", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		existing := seedHabit(t, repo, "user-1", "Name")

		_, err := svc.Rename(context.Background(), services.RenameHabitInput{
			ID: existing.ID, UserID: "user-1", Name: "   ",
		})

		assert.ErrorIs(t, err, domain.ErrHabitNameEmpty)
	})
}

func TestHabitService_UpdateSchedule(t *testing.T) {
	repo := NewMockRepo()
	cache := newSpyCache()
	svc := services.NewHabitService(repo, cache)
	existing := seedHabit(t, repo, "user-1", "Stretch")

	t.Run("Success: Days of month", func(t *testing.T) {
		updated, err := svc.UpdateSchedule(context.Background(), services.UpdateScheduleInput{
			ID:     existing.ID,
			UserID: "user-1",
			Schedule: domain.ScheduleDoc{
				Mode:        domain.ScheduleModeDaysOfMonth,
				DaysOfMonth: []int{20, 1, 1, 40},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, domain.NewDaysOfMonthSchedule([]int{1, 20}), updated.Schedule)
		assert.Contains(t, cache.usersInvalidated, "user-1")
	})

	t.Run("Fail: Weekday list with the wrong length", func(t *testing.T) {
		_, err := svc.UpdateSchedule(context.Background(), services.UpdateScheduleInput{
			ID:     existing.ID,
			UserID: "user-1",
			Schedule: domain.ScheduleDoc{
				Mode:       domain.ScheduleModeWeekdays,
				DaysOfWeek: []bool{true, false},
			},
		})

		assert.ErrorIs(t, err, domain.ErrInvalidWeekdays)
	})
}

func TestHabitService_Reorder(t *testing.T) {
	repo := NewMockRepo()
	svc := services.NewHabitService(repo, nil)
	existing := seedHabit(t, repo, "user-1", "Walk")

	updated, err := svc.Reorder(context.Background(), services.ReorderHabitInput{
		ID: existing.ID, UserID: "user-1", Position: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.SortOrder)

	_, err = svc.Reorder(context.Background(), services.ReorderHabitInput{
		ID: existing.ID, UserID: "user-1", Position: -1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPosition)
}

func TestHabitService_Delete(t *testing.T) {
	t.Run("Success: Should soft-delete", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		h := seedHabit(t, repo, "user-1", "To Delete")

		err := svc.Delete(context.Background(), h.ID, "user-1")
		require.NoError(t, err)

		_, err = repo.GetByID(context.Background(), h.ID)
		assert.ErrorIs(t, err, domain.ErrHabitNotFound)
		assert.NotNil(t, repo.store[h.ID].DeletedAt)
	})

	t.Run("Fail: Security - Cannot delete other user's habit (IDOR)", func(t *testing.T) {
		repo := NewMockRepo()
		svc := services.NewHabitService(repo, nil)
		h := seedHabit(t, repo, "user-1", "Don't Touch")

		err := svc.Delete(context.Background(), h.ID, "user-2")

		assert.ErrorIs(t, err, domain.ErrHabitNotFound)
		assert.Nil(t, repo.store[h.ID].DeletedAt)
	})

	t.Run("Fail: Delete non-existent habit", func(t *testing.T) {
		svc := services.NewHabitService(NewMockRepo(), nil)

		err := svc.Delete(context.Background(), "ghost-id", "user-1")

		assert.ErrorIs(t, err, domain.ErrHabitNotFound)
	})
}

func TestHabitService_ListAndDelta(t *testing.T) {
	repo := NewMockRepo()
	svc := services.NewHabitService(repo, nil)
	ctx := context.Background()

	since := time.Now().UTC().Add(-time.Minute)
	_, err := svc.Create(ctx, services.CreateHabitInput{UserID: "user-1", Name: "H1"})
	require.NoError(t, err)
	h2, err := svc.Create(ctx, services.CreateHabitInput{UserID: "user-1", Name: "H2"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, services.CreateHabitInput{UserID: "user-2", Name: "Other"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, h2.ID, "user-1"))

	list, err := svc.ListByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "H1", list[0].Name)

	delta, err := svc.GetDelta(ctx, "user-1", since)
	require.NoError(t, err)
	assert.Len(t, delta, 2, "deleted habits are part of the delta")
}
