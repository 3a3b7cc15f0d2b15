package core

import "time"

// TriggerKind distinguishes repeating calendar triggers from one-shot delays
type TriggerKind string

const (
	TriggerCalendar TriggerKind = "calendar"
	TriggerOneShot  TriggerKind = "one_shot"
)

// ScheduledNotification is one pending delivery owned by the dispatcher.
// Calendar notifications carry a wall-clock time (and optionally a weekday)
// and are rescheduled after each delivery while Repeats is set; one-shot
// notifications are deleted after they fire.
type ScheduledNotification struct {
	UserID     int64
	Identifier string
	HabitID    string
	Title      string
	Body       string
	Kind       TriggerKind
	Hour       int
	Minute     int
	Weekday    *int // 1=Sun ... 7=Sat, nil for every day
	Repeats    bool
	Attempts   int // failed delivery attempts since (re)scheduling
	NextFireAt time.Time
	CreatedAt  time.Time
}

// NextCalendarFire computes the first instant at or after now matching the
// notification's hour, minute, and optional weekday in now's location.
func (n ScheduledNotification) NextCalendarFire(now time.Time) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(), n.Hour, n.Minute, 0, 0, now.Location())
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	if n.Weekday != nil {
		for WeekdayNumber(fire) != *n.Weekday {
			fire = fire.AddDate(0, 0, 1)
		}
	}
	return fire
}
