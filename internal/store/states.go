package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lockin-monolith/internal/core"
)

func stateKey(userID int64, habitID string) string {
	return fmt.Sprintf("%d:%s", userID, habitID)
}

// GetReminderState loads one habit's reminder state, or nil when the habit
// has never been configured.
func (s *Store) GetReminderState(userID int64, habitID string) (*core.ReminderState, error) {
	data, err := s.GetBlob(BlobKindReminderState, stateKey(userID, habitID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	state := &core.ReminderState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode reminder state: %w", err)
	}
	return state, nil
}

// SaveReminderState persists one habit's reminder state
func (s *Store) SaveReminderState(state *core.ReminderState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode reminder state: %w", err)
	}
	return s.SetBlob(BlobKindReminderState, stateKey(state.UserID, state.HabitID), data)
}

// DeleteReminderState removes one habit's reminder state
func (s *Store) DeleteReminderState(userID int64, habitID string) error {
	return s.DeleteBlob(BlobKindReminderState, stateKey(userID, habitID))
}

// ListReminderHabitIDs returns the habit IDs a user has reminder state for
func (s *Store) ListReminderHabitIDs(userID int64) ([]string, error) {
	prefix := fmt.Sprintf("%d:", userID)
	keys, err := s.ListBlobKeys(BlobKindReminderState, prefix)
	if err != nil {
		return nil, err
	}

	habitIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		habitIDs = append(habitIDs, strings.TrimPrefix(key, prefix))
	}
	return habitIDs, nil
}

// GetReminderAnalytics loads one habit's completion history, returning an
// empty record when none exists yet.
func (s *Store) GetReminderAnalytics(userID int64, habitID string) (*core.ReminderAnalytics, error) {
	data, err := s.GetBlob(BlobKindAnalytics, stateKey(userID, habitID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &core.ReminderAnalytics{HabitID: habitID}, nil
	}

	analytics := &core.ReminderAnalytics{}
	if err := json.Unmarshal(data, analytics); err != nil {
		return nil, fmt.Errorf("failed to decode reminder analytics: %w", err)
	}
	return analytics, nil
}

// SaveReminderAnalytics persists one habit's completion history
func (s *Store) SaveReminderAnalytics(userID int64, analytics *core.ReminderAnalytics) error {
	data, err := json.Marshal(analytics)
	if err != nil {
		return fmt.Errorf("failed to encode reminder analytics: %w", err)
	}
	return s.SetBlob(BlobKindAnalytics, stateKey(userID, analytics.HabitID), data)
}

// GetGlobalSettings loads a user's reminder settings, falling back to the
// shipped defaults when none are stored.
func (s *Store) GetGlobalSettings(userID int64) (core.GlobalReminderSettings, error) {
	data, err := s.GetBlob(BlobKindGlobalSettings, strconv.FormatInt(userID, 10))
	if err != nil {
		return core.GlobalReminderSettings{}, err
	}
	if data == nil {
		return core.DefaultGlobalReminderSettings(), nil
	}

	var gs core.GlobalReminderSettings
	if err := json.Unmarshal(data, &gs); err != nil {
		return core.GlobalReminderSettings{}, fmt.Errorf("failed to decode global settings: %w", err)
	}
	return gs, nil
}

// SaveGlobalSettings persists a user's reminder settings
func (s *Store) SaveGlobalSettings(userID int64, gs core.GlobalReminderSettings) error {
	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to encode global settings: %w", err)
	}
	return s.SetBlob(BlobKindGlobalSettings, strconv.FormatInt(userID, 10), data)
}
