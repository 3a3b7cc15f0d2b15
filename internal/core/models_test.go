package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuraValue(t *testing.T) {
	custom := 42

	tests := []struct {
		name  string
		habit Habit
		want  int
	}{
		{"custom aura wins", Habit{Difficulty: 3, CustomAura: &custom}, 42},
		{"difficulty scaled", Habit{Difficulty: 3}, 30},
		{"no difficulty falls back", Habit{}, DefaultAura},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.habit.AuraValue())
		})
	}
}

func TestSameUTCDay(t *testing.T) {
	a := time.Date(2024, 3, 10, 23, 50, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC)
	c := time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC)

	assert.True(t, SameUTCDay(a, b))
	assert.False(t, SameUTCDay(a, c))

	// Comparison is in UTC regardless of the value's location
	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2024, 3, 10, 22, 0, 0, 0, est) // 03:00 UTC next day
	assert.False(t, SameUTCDay(late, a))
	assert.True(t, SameUTCDay(late, c))
}

func TestIsYesterdayUTC(t *testing.T) {
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	assert.True(t, IsYesterdayUTC(time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC), now))
	assert.False(t, IsYesterdayUTC(time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC), now))
	assert.False(t, IsYesterdayUTC(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), now))
}

func TestWeekdayNumber(t *testing.T) {
	// 2024-03-10 is a Sunday
	assert.Equal(t, 1, WeekdayNumber(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, WeekdayNumber(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 7, WeekdayNumber(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)))
}

func TestWeekKey(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	wednesday := time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)
	nextSunday := time.Date(2024, 3, 17, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-10", WeekKey(sunday))
	assert.Equal(t, "2024-03-10", WeekKey(wednesday))
	assert.Equal(t, "2024-03-17", WeekKey(nextSunday))
}

func TestNextCalendarFire(t *testing.T) {
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC) // Monday

	n := ScheduledNotification{Hour: 12, Minute: 30}
	assert.Equal(t, time.Date(2024, 3, 11, 12, 30, 0, 0, time.UTC), n.NextCalendarFire(now))

	// Time already past today rolls to tomorrow
	n = ScheduledNotification{Hour: 8, Minute: 0}
	assert.Equal(t, time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC), n.NextCalendarFire(now))

	// Weekday constraint walks forward to the next Friday (=6)
	friday := 6
	n = ScheduledNotification{Hour: 9, Minute: 0, Weekday: &friday}
	assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), n.NextCalendarFire(now))
}
