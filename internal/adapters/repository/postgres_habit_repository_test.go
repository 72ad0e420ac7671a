package repository

import (
	"context"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresHabitRepository_Integration(t *testing.T) {
	db := setupTestDB(t, "pgx")
	repo := NewPostgresHabitRepository(db)
	ctx := context.Background()

	userID := "test-user-habits-1"
	insertUser(t, db, userID, "habit-test@kanso.app")

	newHabit, err := domain.NewHabit(userID, "Test Integration Habit")
	require.NoError(t, err)
	require.NoError(t, newHabit.SetSchedule(domain.NewDaysOfMonthSchedule([]int{1, 15})))
	habitID := newHabit.ID

	t.Run("Create Habit", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newHabit))
	})

	t.Run("Get By ID keeps the schedule", func(t *testing.T) {
		fetched, err := repo.GetByID(ctx, habitID)
		require.NoError(t, err)
		assert.Equal(t, newHabit.ID, fetched.ID)
		assert.Equal(t, 1, fetched.Version)
		assert.Nil(t, fetched.DeletedAt)
		assert.Equal(t, domain.NewDaysOfMonthSchedule([]int{1, 15}), fetched.Schedule)
	})

	t.Run("Duplicate id is a conflict", func(t *testing.T) {
		dup := *newHabit
		assert.ErrorIs(t, repo.Create(ctx, &dup), domain.ErrHabitConflict)
	})

	t.Run("Update Habit", func(t *testing.T) {
		oldUpdatedAt := newHabit.UpdatedAt

		require.NoError(t, newHabit.Rename("Updated Name"))
		require.NoError(t, newHabit.SetSchedule(domain.NewQuotaSchedule(3)))

		time.Sleep(100 * time.Millisecond)

		require.NoError(t, repo.Update(ctx, newHabit))
		assert.Equal(t, 2, newHabit.Version)

		updated, err := repo.GetByID(ctx, habitID)
		require.NoError(t, err)

		assert.Equal(t, "Updated Name", updated.Name)
		assert.Equal(t, domain.NewQuotaSchedule(3), updated.Schedule)
		assert.True(t, updated.UpdatedAt.After(oldUpdatedAt), "updated_at did not advance: old=%v new=%v", oldUpdatedAt, updated.UpdatedAt)
		assert.Equal(t, 2, updated.Version)
	})

	t.Run("Malformed stored schedule falls back to every day", func(t *testing.T) {
		broken, err := domain.NewHabit(userID, "Broken")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, broken))

		_, err = db.Exec(`UPDATE habits SET schedule = '{"mode":"weekdays","daysOfWeek":[true]}' WHERE id = $1`, broken.ID)
		require.NoError(t, err)

		fetched, err := repo.GetByID(ctx, broken.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EveryDay(), fetched.Schedule)
	})

	t.Run("List By UserID", func(t *testing.T) {
		list, err := repo.ListByUserID(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, habitID, list[0].ID)
	})

	t.Run("Delete Habit (Soft Delete Check)", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, habitID))

		_, err := repo.GetByID(ctx, habitID)
		assert.ErrorIs(t, err, domain.ErrHabitNotFound)

		var count int
		err = db.QueryRow("SELECT count(*) FROM habits WHERE id=$1 AND deleted_at IS NOT NULL", habitID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "the row must still exist (soft delete)")
	})

	t.Run("Update/Delete Non-Existent ID", func(t *testing.T) {
		dummy := &domain.Habit{ID: uuid.New().String(), UserID: userID, Name: "Ghost", Schedule: domain.EveryDay(), Version: 1}

		assert.ErrorIs(t, repo.Update(ctx, dummy), domain.ErrHabitNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, dummy.ID), domain.ErrHabitNotFound)
	})

	t.Run("Unknown user is rejected", func(t *testing.T) {
		orphan, err := domain.NewHabit("no-such-user", "Orphan")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, orphan), domain.ErrHabitInvalidUserID)
	})

	t.Run("Optimistic Locking: Prevent Overwrite", func(t *testing.T) {
		h, err := domain.NewHabit(userID, "Conflict Base")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, h))

		deviceACopy, err := repo.GetByID(ctx, h.ID)
		require.NoError(t, err)
		deviceBCopy, err := repo.GetByID(ctx, h.ID)
		require.NoError(t, err)

		deviceBCopy.Name = "B wins"
		require.NoError(t, repo.Update(ctx, deviceBCopy))

		deviceACopy.Name = "A loses"
		assert.ErrorIs(t, repo.Update(ctx, deviceACopy), domain.ErrHabitConflict)
	})

	t.Run("GetChanges (Delta Sync)", func(t *testing.T) {
		syncUser := "sync-user-final"
		insertUser(t, db, syncUser, "sync-habit@kanso.app")

		h1, _ := domain.NewHabit(syncUser, "H1")
		h2, _ := domain.NewHabit(syncUser, "H2")
		require.NoError(t, repo.Create(ctx, h1))
		require.NoError(t, repo.Create(ctx, h2))

		time.Sleep(50 * time.Millisecond)

		var lastSync time.Time
		require.NoError(t, db.QueryRow("SELECT NOW()").Scan(&lastSync))

		time.Sleep(50 * time.Millisecond)

		h1.Name = "H1 Changed"
		require.NoError(t, repo.Update(ctx, h1))
		require.NoError(t, repo.Delete(ctx, h2.ID))

		changes, err := repo.GetChanges(ctx, syncUser, lastSync)
		require.NoError(t, err)
		assert.Len(t, changes, 2)
	})
}
