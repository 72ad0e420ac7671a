package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
)

var ErrNoSnapshot = errors.New("no local snapshot")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS habit_snapshots (
    user_id  TEXT PRIMARY KEY,
    payload  TEXT NOT NULL,
    saved_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS month_snapshots (
    user_id  TEXT NOT NULL,
    year     INTEGER NOT NULL,
    month    INTEGER NOT NULL,
    payload  TEXT NOT NULL,
    saved_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, year, month)
);
`

// SQLiteStore is the local durable cache: the last successfully read habit
// list and month records per user, kept as JSON documents.
type SQLiteStore struct {
	path string
	db   *sqlx.DB
}

func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create local cache directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local cache schema: %w", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveHabits(ctx context.Context, userID string, habits []*domain.Habit) error {
	payload, err := json.Marshal(habits)
	if err != nil {
		return fmt.Errorf("encode habits snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO habit_snapshots (user_id, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		userID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save habits snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadHabits(ctx context.Context, userID string) ([]*domain.Habit, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM habit_snapshots WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("load habits snapshot: %w", err)
	}

	habits := []*domain.Habit{}
	if err := json.Unmarshal([]byte(payload), &habits); err != nil {
		return nil, fmt.Errorf("decode habits snapshot: %w", err)
	}
	return habits, nil
}

func (s *SQLiteStore) SaveMonth(ctx context.Context, userID string, key calendar.MonthKey, checks domain.MonthChecks) error {
	if checks == nil {
		checks = domain.MonthChecks{}
	}
	payload, err := json.Marshal(checks)
	if err != nil {
		return fmt.Errorf("encode month snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO month_snapshots (user_id, year, month, payload, saved_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, year, month) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		userID, key.Year, int(key.Month), string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save month snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadMonth(ctx context.Context, userID string, key calendar.MonthKey) (domain.MonthChecks, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM month_snapshots WHERE user_id = ? AND year = ? AND month = ?`,
		userID, key.Year, int(key.Month))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("load month snapshot: %w", err)
	}
	return decodeChecks(payload)
}

// LoadYear returns whatever months of the year were saved; it never fails for a partial year.
func (s *SQLiteStore) LoadYear(ctx context.Context, userID string, year int) (map[calendar.MonthKey]domain.MonthChecks, error) {
	var rows []struct {
		Month   int    `db:"month"`
		Payload string `db:"payload"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT month, payload FROM month_snapshots WHERE user_id = ? AND year = ?`, userID, year)
	if err != nil {
		return nil, fmt.Errorf("load year snapshot: %w", err)
	}

	months := make(map[calendar.MonthKey]domain.MonthChecks, len(rows))
	for _, row := range rows {
		checks, err := decodeChecks(row.Payload)
		if err != nil {
			return nil, err
		}
		months[calendar.MonthKey{Year: year, Month: time.Month(row.Month)}] = checks
	}
	return months, nil
}

// MergeMark applies one mark to the stored month, creating it when missing.
func (s *SQLiteStore) MergeMark(ctx context.Context, userID string, key calendar.MonthKey, habitID string, day int, done bool) error {
	checks, err := s.LoadMonth(ctx, userID, key)
	if errors.Is(err, ErrNoSnapshot) {
		checks = domain.MonthChecks{}
	} else if err != nil {
		return err
	}

	checks.Set(habitID, day, done)
	return s.SaveMonth(ctx, userID, key, checks)
}

func decodeChecks(payload string) (domain.MonthChecks, error) {
	checks := domain.MonthChecks{}
	if err := json.Unmarshal([]byte(payload), &checks); err != nil {
		return nil, fmt.Errorf("decode month snapshot: %w", err)
	}
	return checks, nil
}
