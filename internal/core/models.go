package core

import "time"

// User represents an account in the system
type User struct {
	ID                   int64
	TelegramID           *int64 // Nullable
	Username             string
	Language             string
	NotificationsEnabled bool
	CreatedAt            time.Time
}

// HabitCategory tags a habit with the theme used to pick reminder defaults
type HabitCategory string

const (
	CategoryMindfulness  HabitCategory = "mindfulness"
	CategoryFitness      HabitCategory = "fitness"
	CategoryLearning     HabitCategory = "learning"
	CategoryCreativity   HabitCategory = "creativity"
	CategorySocial       HabitCategory = "social"
	CategoryProductivity HabitCategory = "productivity"
	CategoryWellness     HabitCategory = "wellness"
	CategoryGratitude    HabitCategory = "gratitude"
)

// DefaultAura is the flat point value for habits the catalog doesn't know
const DefaultAura = 10

// Habit represents a selectable recurring challenge
type Habit struct {
	ID         string        `yaml:"id" json:"id"`
	Title      string        `yaml:"title" json:"title"`
	Category   HabitCategory `yaml:"category" json:"category"`
	Difficulty int           `yaml:"difficulty" json:"difficulty"` // 1-5 scale
	DayIndex   int           `yaml:"dayIndex" json:"dayIndex"`
	IsActive   bool          `yaml:"isActive" json:"isActive"`
	CustomAura *int          `yaml:"customAura,omitempty" json:"customAura,omitempty"`
}

// AuraValue returns the points earned per completion of this habit
func (h Habit) AuraValue() int {
	if h.CustomAura != nil {
		return *h.CustomAura
	}
	if h.Difficulty > 0 {
		return h.Difficulty * 10
	}
	return DefaultAura
}

// UserCounters holds the ledger-owned per-user totals
type UserCounters struct {
	UserID        int64      `json:"userId"`
	TotalCount    int        `json:"totalCount"`
	StreakCount   int        `json:"streakCount"`
	TotalAura     int        `json:"totalAura"`
	LastCompleted *time.Time `json:"lastCompleted,omitempty"`
}

// Completion is one recorded completion event. Never mutated after creation.
type Completion struct {
	ID          string
	UserID      int64
	HabitID     string
	CompletedAt time.Time
}

// SameUTCDay reports whether a and b fall on the same UTC calendar day
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// IsYesterdayUTC reports whether a falls on the UTC day immediately before b
func IsYesterdayUTC(a, b time.Time) bool {
	return SameUTCDay(a, b.UTC().AddDate(0, 0, -1))
}

// WeekdayNumber returns t's weekday as 1=Sunday ... 7=Saturday
func WeekdayNumber(t time.Time) int {
	return int(t.Weekday()) + 1
}

// WeekKey returns the date of the most recent Sunday (local time) formatted
// as 2006-01-02. Used to detect the weekly tracking boundary.
func WeekKey(t time.Time) string {
	sunday := t.AddDate(0, 0, -int(t.Weekday()))
	return sunday.Format("2006-01-02")
}
