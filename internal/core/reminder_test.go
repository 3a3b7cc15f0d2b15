package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ReminderConfig
		wantErr bool
	}{
		{"off", ReminderConfig{Mode: ReminderOff}, false},
		{"daily", ReminderConfig{Mode: ReminderDaily}, false},
		{"smart", ReminderConfig{Mode: ReminderSmart}, false},
		{"selected with days", ReminderConfig{Mode: ReminderSelectedDays, SelectedWeekdays: []int{2, 4}}, false},
		{"selected without days", ReminderConfig{Mode: ReminderSelectedDays}, true},
		{"selected out of range", ReminderConfig{Mode: ReminderSelectedDays, SelectedWeekdays: []int{8}}, true},
		{"unknown mode", ReminderConfig{Mode: "hourly"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMultiPingClamping(t *testing.T) {
	m := NewMultiPingConfig(10, -5, 40)
	assert.Equal(t, 6, m.TimesPerDay)
	assert.Equal(t, 0, m.StartHour)
	assert.Equal(t, 23, m.EndHour)

	m = NewMultiPingConfig(1, 9, 18)
	assert.Equal(t, 2, m.TimesPerDay)
}

func TestMultiPingReminderTimes(t *testing.T) {
	m := MultiPingConfig{TimesPerDay: 4, StartHour: 9, EndHour: 18}
	times := m.ReminderTimes()
	require.Len(t, times, 4)

	// 9 hours / 3 intervals = 180 minutes apart
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 0}, times[0])
	assert.Equal(t, TimeOfDay{Hour: 12, Minute: 0}, times[1])
	assert.Equal(t, TimeOfDay{Hour: 15, Minute: 0}, times[2])
	assert.Equal(t, TimeOfDay{Hour: 18, Minute: 0}, times[3])
}

func TestMultiPingDegenerateWindow(t *testing.T) {
	m := MultiPingConfig{TimesPerDay: 3, StartHour: 20, EndHour: 8}
	times := m.ReminderTimes()
	require.Len(t, times, 1)
	assert.Equal(t, TimeOfDay{Hour: 20, Minute: 0}, times[0])
}

func TestIgnoredReminderPausesAtThreshold(t *testing.T) {
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	s := ReminderState{Config: ReminderConfig{Mode: ReminderDaily}}

	s.RecordIgnoredReminder(now)
	s.RecordIgnoredReminder(now.Add(24 * time.Hour))
	assert.False(t, s.IsPaused)
	assert.Equal(t, 2, s.IgnoredRemindersCount)

	s.RecordIgnoredReminder(now.Add(48 * time.Hour))
	assert.True(t, s.IsPaused)
	assert.Equal(t, 3, s.IgnoredRemindersCount)
}

func TestCompletionResetsIgnoreCounter(t *testing.T) {
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	s := ReminderState{Config: ReminderConfig{Mode: ReminderDaily}}

	s.RecordIgnoredReminder(now)
	s.RecordIgnoredReminder(now)
	s.RecordIgnoredReminder(now)
	require.True(t, s.IsPaused)

	s.RecordCompletion(now.Add(time.Hour))
	assert.False(t, s.IsPaused)
	assert.Equal(t, 0, s.IgnoredRemindersCount)
	assert.Nil(t, s.LastIgnoredAt)
	assert.Equal(t, 1, s.CompletionsThisWeek)
}

func TestNeedsReminderToday(t *testing.T) {
	monday := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	s := ReminderState{Config: ReminderConfig{Mode: ReminderDaily}}
	assert.True(t, s.NeedsReminderToday(monday))

	s.RecordCompletion(monday)
	assert.False(t, s.NeedsReminderToday(monday))

	s = ReminderState{Config: ReminderConfig{Mode: ReminderSelectedDays, SelectedWeekdays: []int{2}}}
	assert.True(t, s.NeedsReminderToday(monday))
	assert.False(t, s.NeedsReminderToday(monday.AddDate(0, 0, 1)))

	s = ReminderState{Config: ReminderConfig{Mode: ReminderDaily}, IsPaused: true}
	assert.False(t, s.NeedsReminderToday(monday))

	s = ReminderState{Config: ReminderConfig{Mode: ReminderOff}}
	assert.False(t, s.NeedsReminderToday(monday))
}

func TestRollWeekIfNeeded(t *testing.T) {
	wednesday := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)

	s := ReminderState{CompletionsThisWeek: 4}
	assert.True(t, s.RollWeekIfNeeded(wednesday))
	assert.Equal(t, 0, s.CompletionsThisWeek)
	assert.Equal(t, "2024-03-10", s.WeekOf)

	// Same week is a no-op
	s.CompletionsThisWeek = 2
	assert.False(t, s.RollWeekIfNeeded(wednesday.AddDate(0, 0, 2)))
	assert.Equal(t, 2, s.CompletionsThisWeek)

	// Next Sunday starts a new week
	assert.True(t, s.RollWeekIfNeeded(wednesday.AddDate(0, 0, 4)))
	assert.Equal(t, 0, s.CompletionsThisWeek)
	assert.Equal(t, "2024-03-17", s.WeekOf)
}

func TestAnalyticsWindowBounded(t *testing.T) {
	a := ReminderAnalytics{HabitID: "daily-walk"}
	base := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

	for i := 0; i < 40; i++ {
		a.RecordCompletion(base.AddDate(0, 0, i))
	}

	require.Len(t, a.CompletionTimes, 30)
	// Oldest retained entry is insert #10
	assert.Equal(t, base.AddDate(0, 0, 10), a.CompletionTimes[0])
	assert.Equal(t, base.AddDate(0, 0, 39), a.CompletionTimes[29])
}

func TestSuggestedReminderTime(t *testing.T) {
	a := ReminderAnalytics{HabitID: "daily-walk"}
	assert.Nil(t, a.SuggestedReminderTime())

	// Completions at 07:30 average to 7.5; suggestion is 15 minutes earlier
	base := time.Date(2024, 1, 1, 7, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a.RecordCompletion(base.AddDate(0, 0, i))
	}

	got := a.SuggestedReminderTime()
	require.NotNil(t, got)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 15}, *got)
}

func TestSuggestedReminderTimeBeforeMidnight(t *testing.T) {
	a := ReminderAnalytics{HabitID: "daily-walk"}
	for i := 0; i < 5; i++ {
		a.RecordCompletion(time.Date(2024, 1, 1+i, 0, 6, 0, 0, time.UTC))
	}

	// 00:06 average minus 15 minutes crosses midnight; the hour stays
	// unclamped and the minute keeps its offset within that hour
	got := a.SuggestedReminderTime()
	require.NotNil(t, got)
	assert.Equal(t, TimeOfDay{Hour: -1, Minute: 51}, *got)
}

func TestEffectiveTimesFallBackToGlobal(t *testing.T) {
	gs := DefaultGlobalReminderSettings()

	c := ReminderConfig{Mode: ReminderDaily}
	assert.Equal(t, gs.DefaultReminderTime, c.EffectiveReminderTime(gs))
	assert.Equal(t, gs.DefaultEveningAnchor, c.EffectiveEveningAnchor(gs))

	custom := TimeOfDay{Hour: 6, Minute: 45}
	c.Time = &custom
	assert.Equal(t, custom, c.EffectiveReminderTime(gs))
}
