package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ReminderMode selects how a habit's reminders repeat
type ReminderMode string

const (
	ReminderOff          ReminderMode = "off"
	ReminderDaily        ReminderMode = "daily"
	ReminderSelectedDays ReminderMode = "selectedDays"
	ReminderSmart        ReminderMode = "smart"
)

// TimeOfDay is a wall-clock trigger time
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ReminderConfig holds per-habit reminder settings
type ReminderConfig struct {
	Mode               ReminderMode `json:"mode"`
	Time               *TimeOfDay   `json:"time,omitempty"`
	SelectedWeekdays   []int        `json:"selectedWeekdays,omitempty"` // 1=Sun ... 7=Sat
	EveningAnchor      *TimeOfDay   `json:"eveningAnchor,omitempty"`
	EnableEveningNudge bool         `json:"enableEveningNudge"`
}

// ErrInvalidConfig marks reminder configurations that cannot be scheduled
var ErrInvalidConfig = errors.New("invalid reminder configuration")

// Validate rejects configurations with no safe default
func (c ReminderConfig) Validate() error {
	switch c.Mode {
	case ReminderOff:
		return nil
	case ReminderSelectedDays:
		if len(c.SelectedWeekdays) == 0 {
			return fmt.Errorf("%w: selectedDays mode requires at least one weekday", ErrInvalidConfig)
		}
		for _, d := range c.SelectedWeekdays {
			if d < 1 || d > 7 {
				return fmt.Errorf("%w: weekday %d out of range 1-7", ErrInvalidConfig, d)
			}
		}
		return nil
	case ReminderDaily, ReminderSmart:
		return nil
	default:
		return fmt.Errorf("%w: unknown reminder mode %q", ErrInvalidConfig, c.Mode)
	}
}

// EffectiveReminderTime falls back to the global default when unset
func (c ReminderConfig) EffectiveReminderTime(gs GlobalReminderSettings) TimeOfDay {
	if c.Time != nil {
		return *c.Time
	}
	return gs.DefaultReminderTime
}

// EffectiveEveningAnchor falls back to the global default when unset
func (c ReminderConfig) EffectiveEveningAnchor(gs GlobalReminderSettings) TimeOfDay {
	if c.EveningAnchor != nil {
		return *c.EveningAnchor
	}
	return gs.DefaultEveningAnchor
}

// IsEnabled reports whether the config produces any schedule at all
func (c ReminderConfig) IsEnabled() bool {
	return c.Mode != ReminderOff
}

// MultiPingConfig configures habits needing several touches per day,
// e.g. hydration. Values are clamped at construction.
type MultiPingConfig struct {
	TimesPerDay int `json:"timesPerDay"`
	StartHour   int `json:"startHour"`
	EndHour     int `json:"endHour"`
}

// NewMultiPingConfig clamps timesPerDay to [2,6] and hours to [0,23]
func NewMultiPingConfig(timesPerDay, startHour, endHour int) MultiPingConfig {
	return MultiPingConfig{
		TimesPerDay: clamp(timesPerDay, 2, 6),
		StartHour:   clamp(startHour, 0, 23),
		EndHour:     clamp(endHour, 0, 23),
	}
}

// ReminderTimes returns evenly spaced times between StartHour and EndHour
// inclusive. Collapses to a single ping at StartHour when the window is
// degenerate.
func (m MultiPingConfig) ReminderTimes() []TimeOfDay {
	if m.TimesPerDay <= 1 || m.EndHour <= m.StartHour {
		return []TimeOfDay{{Hour: m.StartHour}}
	}

	totalMinutes := (m.EndHour - m.StartHour) * 60
	interval := totalMinutes / (m.TimesPerDay - 1)

	times := make([]TimeOfDay, 0, m.TimesPerDay)
	for i := 0; i < m.TimesPerDay; i++ {
		fromStart := i * interval
		times = append(times, TimeOfDay{
			Hour:   m.StartHour + fromStart/60,
			Minute: fromStart % 60,
		})
	}
	return times
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReminderState tracks one habit's reminder configuration and adaptive
// counters for one user. Owned exclusively by the reminder engine.
type ReminderState struct {
	UserID                int64            `json:"userId"`
	HabitID               string           `json:"habitId"`
	Config                ReminderConfig   `json:"config"`
	MultiPing             *MultiPingConfig `json:"multiPing,omitempty"`
	WeeklyQuota           *int             `json:"weeklyQuota,omitempty"`
	AutoSpread            bool             `json:"autoSpread"`
	CompletionsThisWeek   int              `json:"completionsThisWeek"`
	WeekOf                string           `json:"weekOf,omitempty"`
	LastCompletionAt      *time.Time       `json:"lastCompletionAt,omitempty"`
	IgnoredRemindersCount int              `json:"ignoredRemindersCount"`
	LastIgnoredAt         *time.Time       `json:"lastIgnoredAt,omitempty"`
	IsPaused              bool             `json:"isPaused"`
}

// ignoredPauseThreshold is the number of consecutive ignored reminders
// after which the habit's reminders pause.
const ignoredPauseThreshold = 3

// IsCompletedToday reports whether the habit was completed on now's local day
func (s ReminderState) IsCompletedToday(now time.Time) bool {
	if s.LastCompletionAt == nil {
		return false
	}
	ly, lm, ld := s.LastCompletionAt.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ly == ny && lm == nm && ld == nd
}

// NeedsReminderToday reports whether an uncompleted reminder is still owed
func (s ReminderState) NeedsReminderToday(now time.Time) bool {
	if s.IsPaused || !s.Config.IsEnabled() || s.IsCompletedToday(now) {
		return false
	}
	switch s.Config.Mode {
	case ReminderDaily, ReminderSmart:
		return true
	case ReminderSelectedDays:
		today := WeekdayNumber(now)
		for _, d := range s.Config.SelectedWeekdays {
			if d == today {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// RecordCompletion resets adaptive backoff and advances weekly tracking
func (s *ReminderState) RecordCompletion(now time.Time) {
	s.IgnoredRemindersCount = 0
	s.LastIgnoredAt = nil
	s.IsPaused = false
	t := now
	s.LastCompletionAt = &t
	s.CompletionsThisWeek++
}

// RecordIgnoredReminder bumps the ignore counter and pauses after three
// consecutive ignores with no intervening completion.
func (s *ReminderState) RecordIgnoredReminder(now time.Time) {
	s.IgnoredRemindersCount++
	t := now
	s.LastIgnoredAt = &t
	if s.IgnoredRemindersCount >= ignoredPauseThreshold {
		s.IsPaused = true
	}
}

// RollWeekIfNeeded resets the weekly completion counter when now has crossed
// into a new Sunday-anchored week.
func (s *ReminderState) RollWeekIfNeeded(now time.Time) bool {
	key := WeekKey(now)
	if s.WeekOf == key {
		return false
	}
	s.WeekOf = key
	s.CompletionsThisWeek = 0
	return true
}

// analyticsWindow bounds the completion history kept per habit
const analyticsWindow = 30

// ReminderAnalytics keeps a rolling window of completion timestamps used to
// derive a suggested reminder time.
type ReminderAnalytics struct {
	HabitID               string      `json:"habitId"`
	CompletionTimes       []time.Time `json:"completionTimes"`
	AverageCompletionHour *float64    `json:"averageCompletionHour,omitempty"`
	ReminderEffectiveness float64     `json:"reminderEffectiveness"`
	LastAnalyzedAt        *time.Time  `json:"lastAnalyzedAt,omitempty"`
}

// RecordCompletion appends at, evicting the oldest entries past the window,
// and recomputes the average completion hour.
func (a *ReminderAnalytics) RecordCompletion(at time.Time) {
	a.CompletionTimes = append(a.CompletionTimes, at)
	if n := len(a.CompletionTimes); n > analyticsWindow {
		a.CompletionTimes = append([]time.Time(nil), a.CompletionTimes[n-analyticsWindow:]...)
	}

	total := 0.0
	for _, t := range a.CompletionTimes {
		total += float64(t.Hour()) + float64(t.Minute())/60.0
	}
	avg := total / float64(len(a.CompletionTimes))
	a.AverageCompletionHour = &avg
	t := at
	a.LastAnalyzedAt = &t
}

// SuggestedReminderTime returns a time 15 minutes before the average
// completion hour, or nil when there is no history. The hour is not clamped;
// callers normalize around day boundaries for display.
func (a ReminderAnalytics) SuggestedReminderTime() *TimeOfDay {
	if a.AverageCompletionHour == nil {
		return nil
	}
	suggested := *a.AverageCompletionHour - 0.25
	hour := math.Floor(suggested)
	minute := int(math.Round((suggested - hour) * 60))
	if minute == 60 {
		hour++
		minute = 0
	}
	return &TimeOfDay{Hour: int(hour), Minute: minute}
}

// GlobalReminderSettings is the process-wide fallback configuration
type GlobalReminderSettings struct {
	DefaultReminderTime       TimeOfDay `json:"defaultReminderTime"`
	DefaultEveningAnchor      TimeOfDay `json:"defaultEveningAnchor"`
	EnableSmartReminders      bool      `json:"enableSmartReminders"`
	MaxDailyNotifications     int       `json:"maxDailyNotifications"`
	EnableNotificationSummary bool      `json:"enableNotificationSummary"`
}

// DefaultGlobalReminderSettings mirrors the shipped defaults
func DefaultGlobalReminderSettings() GlobalReminderSettings {
	return GlobalReminderSettings{
		DefaultReminderTime:       TimeOfDay{Hour: 8, Minute: 0},
		DefaultEveningAnchor:      TimeOfDay{Hour: 20, Minute: 30},
		EnableSmartReminders:      true,
		MaxDailyNotifications:     6,
		EnableNotificationSummary: true,
	}
}
