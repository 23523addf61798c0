package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Keys for the engine's persisted state.
const (
	keyGoalDate  = "goal_date"
	keyToken     = "session_token"
	keyWeighTime = "weigh_time"
	keyRunTime   = "run_time"
)

const dateLayout = "2006-01-02"

// Store persists the small amount of engine state that survives restarts:
// the goal target date, the cached session token, and the last known
// reminder times (so reminders can be re-armed on cold start before the
// backend is reachable).
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GoalDate returns the persisted goal target date. ok is false when no goal
// date has been stored yet.
func (s *Store) GoalDate() (time.Time, bool, error) {
	v, ok, err := s.get(keyGoalDate)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stored goal date %q: %w", v, err)
	}
	return d, true, nil
}

// SetGoalDate persists the goal target date as an ISO-8601 string.
func (s *Store) SetGoalDate(d time.Time) error {
	return s.set(keyGoalDate, d.Format(dateLayout))
}

// Token returns the cached session token, or "" when none is stored.
func (s *Store) Token() (string, error) {
	v, _, err := s.get(keyToken)
	return v, err
}

// SetToken caches the session token.
func (s *Store) SetToken(token string) error {
	return s.set(keyToken, token)
}

// ClearToken removes the cached session token.
func (s *Store) ClearToken() error {
	_, err := s.db.Exec("DELETE FROM state WHERE key = ?", keyToken)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// ReminderTimes returns the last known weigh/run times ("HH:MM"). ok is
// false unless both are stored.
func (s *Store) ReminderTimes() (weigh, run string, ok bool, err error) {
	weigh, wok, err := s.get(keyWeighTime)
	if err != nil {
		return "", "", false, err
	}
	run, rok, err := s.get(keyRunTime)
	if err != nil {
		return "", "", false, err
	}
	return weigh, run, wok && rok, nil
}

// SetReminderTimes caches the weigh/run times.
func (s *Store) SetReminderTimes(weigh, run string) error {
	if err := s.set(keyWeighTime, weigh); err != nil {
		return err
	}
	return s.set(keyRunTime, run)
}

func (s *Store) get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
