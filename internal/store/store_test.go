package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockin-monolith/internal/core"
	"lockin-monolith/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndLookupUser(t *testing.T) {
	s := newTestStore(t)

	tgID := int64(42)
	user, err := s.CreateUser("alice", &tgID, "ru")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "ru", user.Language)
	require.NotNil(t, user.TelegramID)
	assert.Equal(t, tgID, *user.TelegramID)
	assert.True(t, user.NotificationsEnabled)

	byTg, err := s.GetUserByTelegramID(42)
	require.NoError(t, err)
	require.NotNil(t, byTg)
	assert.Equal(t, user.ID, byTg.ID)

	byName, err := s.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	missing, err := s.GetUserByID(9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Counters row is seeded at creation
	counters, err := s.GetCounters(user.ID)
	require.NoError(t, err)
	assert.Zero(t, counters.TotalCount)
	assert.Nil(t, counters.LastCompleted)
}

func TestLinkTelegramAndToggleNotifications(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("bob", nil, "")
	require.NoError(t, err)
	assert.Nil(t, user.TelegramID)
	assert.Equal(t, "en", user.Language)

	require.NoError(t, s.LinkTelegram(user.ID, 123))
	require.NoError(t, s.SetNotificationsEnabled(user.ID, false))

	updated, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.TelegramID)
	assert.Equal(t, int64(123), *updated.TelegramID)
	assert.False(t, updated.NotificationsEnabled)
}

func TestReminderStateRoundTrip(t *testing.T) {
	s := newTestStore(t)

	state, err := s.GetReminderState(1, "daily-walk")
	require.NoError(t, err)
	assert.Nil(t, state)

	quota := 5
	require.NoError(t, s.SaveReminderState(&core.ReminderState{
		UserID:  1,
		HabitID: "daily-walk",
		Config: core.ReminderConfig{
			Mode: core.ReminderDaily,
			Time: &core.TimeOfDay{Hour: 7, Minute: 30},
		},
		WeeklyQuota:         &quota,
		AutoSpread:          true,
		CompletionsThisWeek: 2,
		WeekOf:              "2024-03-10",
	}))
	require.NoError(t, s.SaveReminderState(&core.ReminderState{
		UserID:  1,
		HabitID: "read-book",
		Config:  core.ReminderConfig{Mode: core.ReminderOff},
	}))

	loaded, err := s.GetReminderState(1, "daily-walk")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, core.ReminderDaily, loaded.Config.Mode)
	assert.Equal(t, 2, loaded.CompletionsThisWeek)
	require.NotNil(t, loaded.WeeklyQuota)
	assert.Equal(t, 5, *loaded.WeeklyQuota)

	ids, err := s.ListReminderHabitIDs(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"daily-walk", "read-book"}, ids)

	other, err := s.ListReminderHabitIDs(2)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.DeleteReminderState(1, "daily-walk"))
	gone, err := s.GetReminderState(1, "daily-walk")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGlobalSettingsDefaults(t *testing.T) {
	s := newTestStore(t)

	gs, err := s.GetGlobalSettings(1)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultGlobalReminderSettings(), gs)

	gs.MaxDailyNotifications = 3
	gs.EnableSmartReminders = false
	require.NoError(t, s.SaveGlobalSettings(1, gs))

	loaded, err := s.GetGlobalSettings(1)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.MaxDailyNotifications)
	assert.False(t, loaded.EnableSmartReminders)
}

func TestNotificationLifecycle(t *testing.T) {
	s := newTestStore(t)
	tgID := int64(7)
	user, err := s.CreateUser("carol", &tgID, "en")
	require.NoError(t, err)

	now := time.Now()
	wd := 2
	require.NoError(t, s.UpsertNotification(&core.ScheduledNotification{
		UserID:     user.ID,
		Identifier: "daily-walk-2",
		HabitID:    "daily-walk",
		Title:      "walk",
		Kind:       core.TriggerCalendar,
		Hour:       7,
		Minute:     30,
		Weekday:    &wd,
		Repeats:    true,
		NextFireAt: now.Add(-time.Minute),
	}))
	require.NoError(t, s.UpsertNotification(&core.ScheduledNotification{
		UserID:     user.ID,
		Identifier: "daily-walk-snooze-abc",
		HabitID:    "daily-walk",
		Title:      "walk",
		Kind:       core.TriggerOneShot,
		NextFireAt: now.Add(time.Hour),
	}))

	// Upsert by the same identifier replaces, not duplicates
	require.NoError(t, s.UpsertNotification(&core.ScheduledNotification{
		UserID:     user.ID,
		Identifier: "daily-walk-2",
		HabitID:    "daily-walk",
		Title:      "walk again",
		Kind:       core.TriggerCalendar,
		Hour:       8,
		Weekday:    &wd,
		Repeats:    true,
		NextFireAt: now.Add(time.Hour),
	}))

	pending, err := s.ListNotifications(user.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	due, err := s.DueNotifications(now)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, s.RescheduleNotification(user.ID, "daily-walk-2", now.Add(-time.Minute)))
	due, err = s.DueNotifications(now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "daily-walk-2", due[0].Identifier)
	assert.Equal(t, "walk again", due[0].Title)
	require.NotNil(t, due[0].Weekday)
	assert.Equal(t, 2, *due[0].Weekday)

	require.NoError(t, s.DeleteNotificationsByPrefix(user.ID, "daily-walk-"))
	pending, err = s.ListNotifications(user.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestNotificationAttempts(t *testing.T) {
	s := newTestStore(t)
	tgID := int64(9)
	user, err := s.CreateUser("erin", &tgID, "en")
	require.NoError(t, err)

	require.NoError(t, s.UpsertNotification(&core.ScheduledNotification{
		UserID:     user.ID,
		Identifier: "daily-walk-snooze-x",
		HabitID:    "daily-walk",
		Title:      "walk",
		Kind:       core.TriggerOneShot,
		NextFireAt: time.Now().Add(time.Minute),
	}))

	require.NoError(t, s.IncrementNotificationAttempts(user.ID, "daily-walk-snooze-x"))
	require.NoError(t, s.IncrementNotificationAttempts(user.ID, "daily-walk-snooze-x"))

	pending, err := s.ListNotifications(user.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)

	// Re-upserting the same identifier starts a fresh attempt budget
	require.NoError(t, s.UpsertNotification(&core.ScheduledNotification{
		UserID:     user.ID,
		Identifier: "daily-walk-snooze-x",
		HabitID:    "daily-walk",
		Title:      "walk",
		Kind:       core.TriggerOneShot,
		NextFireAt: time.Now().Add(time.Hour),
	}))
	pending, err = s.ListNotifications(user.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)
}

func TestDeliveryCounts(t *testing.T) {
	s := newTestStore(t)

	count, err := s.DeliveryCount(1, "2024-03-11")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.IncrementDeliveryCount(1, "2024-03-11"))
	require.NoError(t, s.IncrementDeliveryCount(1, "2024-03-11"))
	require.NoError(t, s.IncrementDeliveryCount(1, "2024-03-12"))

	count, err = s.DeliveryCount(1, "2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCompletionTx(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("dave", nil, "en")
	require.NoError(t, err)

	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	err = s.InCompletionTx(user.ID, func(tx ledger.Tx) error {
		counters, err := tx.Counters()
		if err != nil {
			return err
		}
		exists, err := tx.HasCompletion("evt-1")
		if err != nil {
			return err
		}
		assert.False(t, exists)

		if err := tx.InsertCompletion(core.Completion{
			ID: "evt-1", UserID: user.ID, HabitID: "daily-walk", CompletedAt: now,
		}); err != nil {
			return err
		}

		counters.TotalCount++
		counters.StreakCount = 1
		counters.TotalAura += 20
		counters.LastCompleted = &now
		return tx.SaveCounters(counters)
	})
	require.NoError(t, err)

	counters, err := s.GetCounters(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.TotalCount)
	assert.Equal(t, 20, counters.TotalAura)
	require.NotNil(t, counters.LastCompleted)

	err = s.InCompletionTx(user.ID, func(tx ledger.Tx) error {
		exists, err := tx.HasCompletion("evt-1")
		if err != nil {
			return err
		}
		assert.True(t, exists)
		return nil
	})
	require.NoError(t, err)

	completions, err := s.ListCompletions(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, "evt-1", completions[0].ID)
}
