// Package state persists the daemon's run state: which classes were
// already recorded today, how many failed tries a class has burned, and
// which users asked to be skipped. The attendance pass itself is
// stateless; everything here exists so restarts and repeated scheduler
// ticks stay idempotent.
package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/absenlab/absen/errors"
)

// PauseMode says how long a pause flag lasts.
type PauseMode string

const (
	// PauseIndefinite skips the user until an explicit resume.
	PauseIndefinite PauseMode = "indefinite"
	// PauseOnce skips a single named course once, then clears itself.
	PauseOnce PauseMode = "once"
)

// Recorded outcomes in attendance_log.
const (
	OutcomeSubmitted        = "submitted"
	OutcomeAlreadySubmitted = "already_submitted"
)

// LogEntry is one attendance_log row.
type LogEntry struct {
	Course   string
	Day      string
	Outcome  string
	Attempts int
}

// Store reads and writes run state. Safe for concurrent use; SQLite's
// busy timeout handles writer contention between workers.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// dayKey normalizes a timestamp to the local calendar day.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// RecordAttendance logs a completed submission for the user's class on
// the given day. Recording the same class twice on one day is a no-op.
func (s *Store) RecordAttendance(ctx context.Context, username, course string, day time.Time, outcome string, attempts int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_log (username, course, day, outcome, attempts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username, course, day) DO NOTHING`,
		username, course, dayKey(day), outcome, attempts)
	return errors.Wrap(err, "record attendance")
}

// HasAttended reports whether the class is already logged for the day.
func (s *Store) HasAttended(ctx context.Context, username, course string, day time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attendance_log
			WHERE username = ? AND course = ? AND day = ?)`,
		username, course, dayKey(day)).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check attendance")
	}
	return exists, nil
}

// TodayLog returns the user's attendance_log rows for the day.
func (s *Store) TodayLog(ctx context.Context, username string, day time.Time) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT course, day, outcome, attempts FROM attendance_log
		WHERE username = ? AND day = ?
		ORDER BY created_at`,
		username, dayKey(day))
	if err != nil {
		return nil, errors.Wrap(err, "query attendance log")
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Course, &e.Day, &e.Outcome, &e.Attempts); err != nil {
			return nil, errors.Wrap(err, "scan attendance log")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate attendance log")
}

// IncrementAttempts bumps the failed-run counter for the class and day
// and returns the new count.
func (s *Store) IncrementAttempts(ctx context.Context, username, course string, day time.Time) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attempt_counters (username, course, day, attempts, updated_at)
		VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (username, course, day)
		DO UPDATE SET attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		RETURNING attempts`,
		username, course, dayKey(day)).Scan(&attempts)
	if err != nil {
		return 0, errors.Wrap(err, "increment attempts")
	}
	return attempts, nil
}

// Attempts returns the failed-run count for the class and day.
func (s *Store) Attempts(ctx context.Context, username, course string, day time.Time) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		SELECT attempts FROM attempt_counters
		WHERE username = ? AND course = ? AND day = ?`,
		username, course, dayKey(day)).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "query attempts")
	}
	return attempts, nil
}

// Pause sets the user's indefinite pause flag, covering every class
// until Resume.
func (s *Store) Pause(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pause_flags (username, course, mode)
		VALUES (?, '', ?)
		ON CONFLICT (username, course) DO UPDATE SET mode = excluded.mode, created_at = CURRENT_TIMESTAMP`,
		username, string(PauseIndefinite))
	return errors.Wrap(err, "set pause flag")
}

// PauseNext sets a one-shot pause flag for a single course. The flag is
// cleared by ConsumePause the first time that class comes up.
func (s *Store) PauseNext(ctx context.Context, username, course string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pause_flags (username, course, mode)
		VALUES (?, ?, ?)
		ON CONFLICT (username, course) DO UPDATE SET mode = excluded.mode, created_at = CURRENT_TIMESTAMP`,
		username, course, string(PauseOnce))
	return errors.Wrap(err, "set one-shot pause flag")
}

// Resume clears all of the user's pause flags regardless of mode.
func (s *Store) Resume(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM pause_flags WHERE username = ?", username)
	return errors.Wrap(err, "clear pause flag")
}

// PauseState returns the user's pause flag, if any is set. course is only
// meaningful for a one-shot flag; the indefinite flag wins when both exist.
func (s *Store) PauseState(ctx context.Context, username string) (PauseMode, string, bool, error) {
	var mode, course string
	err := s.db.QueryRowContext(ctx, `
		SELECT mode, course FROM pause_flags
		WHERE username = ?
		ORDER BY course LIMIT 1`, username).Scan(&mode, &course)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, errors.Wrap(err, "query pause flag")
	}
	return PauseMode(mode), course, true, nil
}

// ConsumePause reports whether the given class is paused for the user:
// an indefinite flag pauses every class, a one-shot flag pauses only the
// course it names and is deleted on the way out. Called only once a class
// actually matched the window, so an idle tick never burns a flag.
func (s *Store) ConsumePause(ctx context.Context, username, course string) (bool, error) {
	var mode string
	err := s.db.QueryRowContext(ctx, `
		SELECT mode FROM pause_flags
		WHERE username = ? AND course IN ('', ?)
		ORDER BY course LIMIT 1`, username, course).Scan(&mode)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "query pause flag")
	}
	if PauseMode(mode) == PauseOnce {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM pause_flags WHERE username = ? AND course = ?",
			username, course); err != nil {
			return true, errors.Wrap(err, "clear one-shot pause flag")
		}
	}
	return true, nil
}

// Prune deletes attendance and attempt rows older than the given day.
// Pause flags are never pruned.
func (s *Store) Prune(ctx context.Context, before time.Time) error {
	cutoff := dayKey(before)
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM attendance_log WHERE day < ?", cutoff); err != nil {
		return errors.Wrap(err, "prune attendance log")
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM attempt_counters WHERE day < ?", cutoff); err != nil {
		return errors.Wrap(err, "prune attempt counters")
	}
	return nil
}
