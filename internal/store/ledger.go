package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"lockin-monolith/internal/core"
	"lockin-monolith/internal/ledger"
)

// txRetries bounds how many times a completion transaction is retried when
// sqlite reports the database busy.
const txRetries = 3

type completionTx struct {
	tx     *sql.Tx
	userID int64
}

// InCompletionTx runs fn inside a write transaction for userID, retrying
// with backoff on SQLITE_BUSY. When the retries are exhausted the error
// wraps ledger.ErrConflict so callers can tell the user to try again.
func (s *Store) InCompletionTx(userID int64, fn func(ledger.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}

		err := s.runCompletionTx(userID, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ledger.ErrConflict, lastErr)
}

func (s *Store) runCompletionTx(userID int64, fn func(ledger.Tx) error) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&completionTx{tx: tx, userID: userID}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	for err != nil {
		if se, ok := err.(sqlite3.Error); ok {
			return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Counters reads the user's totals, seeding the zero row if missing
func (t *completionTx) Counters() (core.UserCounters, error) {
	c := core.UserCounters{UserID: t.userID}
	err := t.tx.QueryRow(
		`SELECT total_count, streak_count, total_aura, last_completed
		 FROM user_counters WHERE user_id = ?`, t.userID,
	).Scan(&c.TotalCount, &c.StreakCount, &c.TotalAura, &c.LastCompleted)
	if err == sql.ErrNoRows {
		if _, err := t.tx.Exec(`INSERT INTO user_counters (user_id) VALUES (?)`, t.userID); err != nil {
			return c, fmt.Errorf("failed to seed counters: %w", err)
		}
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("failed to read counters: %w", err)
	}
	return c, nil
}

// SaveCounters writes the user's totals back
func (t *completionTx) SaveCounters(c core.UserCounters) error {
	_, err := t.tx.Exec(
		`UPDATE user_counters
		 SET total_count = ?, streak_count = ?, total_aura = ?, last_completed = ?
		 WHERE user_id = ?`,
		c.TotalCount, c.StreakCount, c.TotalAura, c.LastCompleted, t.userID,
	)
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return nil
}

// HasCompletion reports whether a completion event with this ID exists
func (t *completionTx) HasCompletion(id string) (bool, error) {
	var one int
	err := t.tx.QueryRow(`SELECT 1 FROM completions WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return true, nil
}

// InsertCompletion records a completion event
func (t *completionTx) InsertCompletion(c core.Completion) error {
	_, err := t.tx.Exec(
		`INSERT INTO completions (id, user_id, habit_id, completed_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.HabitID, c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	return nil
}

// GetCounters reads a user's totals outside any transaction
func (s *Store) GetCounters(userID int64) (core.UserCounters, error) {
	c := core.UserCounters{UserID: userID}
	err := s.DB.QueryRow(
		`SELECT total_count, streak_count, total_aura, last_completed
		 FROM user_counters WHERE user_id = ?`, userID,
	).Scan(&c.TotalCount, &c.StreakCount, &c.TotalAura, &c.LastCompleted)
	if err == sql.ErrNoRows {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("failed to read counters: %w", err)
	}
	return c, nil
}

// ListCompletions returns a user's most recent completion events
func (s *Store) ListCompletions(userID int64, limit int) ([]core.Completion, error) {
	rows, err := s.DB.Query(
		`SELECT id, user_id, habit_id, completed_at
		 FROM completions WHERE user_id = ?
		 ORDER BY completed_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	var completions []core.Completion
	for rows.Next() {
		var c core.Completion
		if err := rows.Scan(&c.ID, &c.UserID, &c.HabitID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}
