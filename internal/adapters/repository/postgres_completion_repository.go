package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
)

var _ domain.CompletionRepository = (*PostgresCompletionRepository)(nil)

type PostgresCompletionRepository struct {
	db *sqlx.DB
}

func NewPostgresCompletionRepository(db *sqlx.DB) *PostgresCompletionRepository {
	return &PostgresCompletionRepository{db: db}
}

type checkRow struct {
	UserID    string    `db:"user_id"`
	HabitID   string    `db:"habit_id"`
	Year      int       `db:"year"`
	Month     int       `db:"month"`
	Day       int       `db:"day"`
	Done      bool      `db:"done"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *PostgresCompletionRepository) GetMonth(ctx context.Context, userID string, key calendar.MonthKey) (domain.MonthChecks, error) {
	rows := []checkRow{}

	query := `
		SELECT user_id, habit_id, year, month, day, done, updated_at
		FROM habit_checks
		WHERE user_id = $1 AND year = $2 AND month = $3`

	if err := r.db.SelectContext(ctx, &rows, query, userID, key.Year, int(key.Month)); err != nil {
		return nil, fmt.Errorf("failed to load month %s: %w", key, err)
	}

	checks := domain.MonthChecks{}
	for _, row := range rows {
		checks.Set(row.HabitID, row.Day, row.Done)
	}
	return checks, nil
}

func (r *PostgresCompletionRepository) GetYear(ctx context.Context, userID string, year int) (map[calendar.MonthKey]domain.MonthChecks, error) {
	rows := []checkRow{}

	query := `
		SELECT user_id, habit_id, year, month, day, done, updated_at
		FROM habit_checks
		WHERE user_id = $1 AND year = $2
		ORDER BY month ASC`

	if err := r.db.SelectContext(ctx, &rows, query, userID, year); err != nil {
		return nil, fmt.Errorf("failed to load year %d: %w", year, err)
	}

	months := make(map[calendar.MonthKey]domain.MonthChecks)
	for _, row := range rows {
		key := calendar.MonthKey{Year: row.Year, Month: time.Month(row.Month)}
		checks, ok := months[key]
		if !ok {
			checks = domain.MonthChecks{}
			months[key] = checks
		}
		checks.Set(row.HabitID, row.Day, row.Done)
	}
	return months, nil
}

// SetMark merges one day into the month; other marks of the month are untouched.
func (r *PostgresCompletionRepository) SetMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int, done bool) error {
	row := checkRow{
		UserID:    userID,
		HabitID:   habitID,
		Year:      key.Year,
		Month:     int(key.Month),
		Day:       day,
		Done:      done,
		UpdatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO habit_checks (user_id, habit_id, year, month, day, done, updated_at)
		VALUES (:user_id, :habit_id, :year, :month, :day, :done, :updated_at)
		ON CONFLICT (user_id, year, month, habit_id, day) DO UPDATE SET
			done = EXCLUDED.done,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return domain.ErrHabitNotFound
		}
		return fmt.Errorf("failed to set mark: %w", err)
	}
	return nil
}

// ToggleMark flips the row inside the upsert, so concurrent toggles serialize on the row lock.
func (r *PostgresCompletionRepository) ToggleMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int) (bool, error) {
	query := `
		INSERT INTO habit_checks (user_id, habit_id, year, month, day, done, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		ON CONFLICT (user_id, year, month, habit_id, day) DO UPDATE SET
			done = NOT habit_checks.done,
			updated_at = NOW()
		RETURNING done`

	var done bool
	if err := r.db.GetContext(ctx, &done, query, userID, habitID, key.Year, int(key.Month), day); err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return false, domain.ErrHabitNotFound
		}
		return false, fmt.Errorf("failed to toggle mark: %w", err)
	}
	return done, nil
}
