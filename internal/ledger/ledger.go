// Package ledger converts completion events into per-user totals: lifetime
// count, consecutive-day streak, and aura points. All counter math runs
// inside one storage transaction per event, so concurrent and duplicate
// deliveries converge to the same totals.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lockin-monolith/internal/core"
)

// ErrConflict is returned when the storage transaction kept losing to
// concurrent writers and the caller should retry the completion.
var ErrConflict = errors.New("completion transaction conflicted, retry")

// Tx is the slice of a storage transaction the ledger needs
type Tx interface {
	Counters() (core.UserCounters, error)
	SaveCounters(c core.UserCounters) error
	HasCompletion(id string) (bool, error)
	InsertCompletion(c core.Completion) error
}

// Store runs a function inside one atomic transaction for a user
type Store interface {
	InCompletionTx(userID int64, fn func(Tx) error) error
}

// Pricer resolves a habit's point value
type Pricer interface {
	AuraValue(habitID string) int
}

// Result is the outcome of recording one completion
type Result struct {
	Counters   core.UserCounters `json:"counters"`
	AuraEarned int               `json:"auraEarned"`
	// Counted is false when the event was a duplicate and changed nothing
	Counted bool `json:"counted"`
	// NewDay is true when this completion advanced totalCount and the streak
	NewDay bool `json:"newDay"`
}

// Ledger records completions and exposes counters
type Ledger struct {
	store  Store
	pricer Pricer
	log    *zap.Logger
}

// New creates a Ledger
func New(store Store, pricer Pricer, log *zap.Logger) *Ledger {
	return &Ledger{store: store, pricer: pricer, log: log}
}

// EventID derives the idempotency key for a completion. One event per user
// per habit per UTC day: retries of the same completion collapse, while
// different habits completed on the same day each keep their own event.
func EventID(userID int64, habitID string, at time.Time) string {
	return fmt.Sprintf("%d:%s:%s", userID, habitID, at.UTC().Format("2006-01-02"))
}

// Record applies one completion event to the user's counters.
//
// Duplicates of the same habit on the same UTC day are no-ops. A second
// distinct habit on an already-counted day adds its points but leaves
// totalCount and streakCount alone, so the day/streak counters advance at
// most once per UTC calendar day.
func (l *Ledger) Record(userID int64, habitID string, at time.Time) (*Result, error) {
	points := l.pricer.AuraValue(habitID)
	eventID := EventID(userID, habitID, at)

	result := &Result{}
	err := l.store.InCompletionTx(userID, func(tx Tx) error {
		*result = Result{}

		counters, err := tx.Counters()
		if err != nil {
			return err
		}

		seen, err := tx.HasCompletion(eventID)
		if err != nil {
			return err
		}
		if seen {
			result.Counters = counters
			return nil
		}

		if err := tx.InsertCompletion(core.Completion{
			ID:          eventID,
			UserID:      userID,
			HabitID:     habitID,
			CompletedAt: at,
		}); err != nil {
			return err
		}

		if counters.LastCompleted != nil && core.SameUTCDay(*counters.LastCompleted, at) {
			counters.TotalAura += points
		} else {
			counters.TotalCount++
			if counters.LastCompleted != nil && core.IsYesterdayUTC(*counters.LastCompleted, at) {
				counters.StreakCount++
			} else {
				counters.StreakCount = 1
			}
			counters.TotalAura += points
			result.NewDay = true
		}

		ts := at
		counters.LastCompleted = &ts

		if err := tx.SaveCounters(counters); err != nil {
			return err
		}

		result.Counters = counters
		result.AuraEarned = points
		result.Counted = true
		return nil
	})
	if err != nil {
		l.log.Error("failed to record completion",
			zap.Int64("user_id", userID),
			zap.String("habit_id", habitID),
			zap.Error(err))
		return nil, err
	}

	l.log.Info("completion recorded",
		zap.Int64("user_id", userID),
		zap.String("habit_id", habitID),
		zap.Bool("counted", result.Counted),
		zap.Int("aura_earned", result.AuraEarned),
		zap.Int("streak", result.Counters.StreakCount))
	return result, nil
}
