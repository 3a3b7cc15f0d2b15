// Package reminder implements adaptive reminder scheduling: per-habit
// configuration, weekly quota spreading, evening nudges, ignore-based
// pausing, and completion-driven time suggestions.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lockin-monolith/internal/core"
	"lockin-monolith/internal/dispatch"
	"lockin-monolith/internal/spread"
)

// Notification action identifiers routed back through the dispatcher
const (
	ActionSnooze15      = "SNOOZE_15"
	ActionRemindTonight = "REMIND_TONIGHT"
	ActionSkipToday     = "SKIP_TODAY"
	ActionMarkDone      = "MARK_DONE"
)

const snoozeDelay = 15 * time.Minute

// StateStore persists per-habit reminder state and analytics
type StateStore interface {
	GetReminderState(userID int64, habitID string) (*core.ReminderState, error)
	SaveReminderState(state *core.ReminderState) error
	DeleteReminderState(userID int64, habitID string) error
	ListReminderHabitIDs(userID int64) ([]string, error)
	GetReminderAnalytics(userID int64, habitID string) (*core.ReminderAnalytics, error)
	SaveReminderAnalytics(userID int64, analytics *core.ReminderAnalytics) error
	GetGlobalSettings(userID int64) (core.GlobalReminderSettings, error)
	SaveGlobalSettings(userID int64, gs core.GlobalReminderSettings) error
}

// DispatchPort is the slice of the notification scheduler the engine uses
type DispatchPort interface {
	Schedule(userID int64, identifier string, content dispatch.Content, trigger dispatch.Trigger) error
	Cancel(userID int64, identifiers ...string) error
	CancelPrefix(userID int64, prefix string) error
	SkipToday(userID int64, now time.Time, identifiers ...string) error
	RegisterAction(action string, handler dispatch.ActionHandler)
}

// HabitTitler resolves a habit ID to its display title
type HabitTitler interface {
	Get(id string) (core.Habit, bool)
}

// Texts builds the user-facing copy for reminder notifications
type Texts interface {
	ReminderTitle(userID int64, habitTitle string) string
	ReminderBody(userID int64, habitTitle string) string
	NudgeTitle(userID int64, habitTitle string) string
	NudgeBody(userID int64, habitTitle string) string
	PingBody(userID int64, habitTitle string) string
	SnoozeBody(userID int64, habitTitle string) string
	TonightBody(userID int64, habitTitle string) string
}

// ScheduleReport lists the identifiers a configuration pass created and the
// ones the dispatcher rejected.
type ScheduleReport struct {
	Scheduled []string `json:"scheduled"`
	Failed    []string `json:"failed,omitempty"`
}

// Engine coordinates reminder state, analytics, and the dispatcher. All
// mutations for one (user, habit) pair are serialized.
type Engine struct {
	states StateStore
	port   DispatchPort
	habits HabitTitler
	texts  Texts
	log    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an Engine and registers its notification actions on port
func NewEngine(states StateStore, port DispatchPort, habits HabitTitler, texts Texts, log *zap.Logger) *Engine {
	e := &Engine{
		states: states,
		port:   port,
		habits: habits,
		texts:  texts,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
	e.registerActions()
	return e
}

func (e *Engine) lock(userID int64, habitID string) *sync.Mutex {
	key := fmt.Sprintf("%d:%s", userID, habitID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	e.locks[key] = m
	return m
}

func (e *Engine) habitTitle(habitID string) string {
	if h, ok := e.habits.Get(habitID); ok {
		return h.Title
	}
	return habitID
}

// identifier helpers, one namespace per habit

func dayIdentifier(habitID string, weekday int) string {
	return fmt.Sprintf("%s-%d", habitID, weekday)
}

func nudgeIdentifier(habitID string) string {
	return habitID + "-nudge"
}

func pingIdentifier(habitID string, i int) string {
	return fmt.Sprintf("%s-ping-%d", habitID, i)
}

func snoozeIdentifier(habitID string) string {
	return fmt.Sprintf("%s-snooze-%s", habitID, uuid.NewString())
}

func tonightIdentifier(habitID string) string {
	return fmt.Sprintf("%s-tonight-%s", habitID, uuid.NewString())
}

// cancelAll removes every pending notification belonging to a habit,
// including generated one-shots.
func (e *Engine) cancelAll(userID int64, habitID string) error {
	if err := e.port.Cancel(userID, habitID); err != nil {
		return err
	}
	return e.port.CancelPrefix(userID, habitID+"-")
}

// GetState returns a habit's reminder state with the weekly counter rolled
// forward, or nil when the habit has never been configured.
func (e *Engine) GetState(userID int64, habitID string, now time.Time) (*core.ReminderState, error) {
	m := e.lock(userID, habitID)
	m.Lock()
	defer m.Unlock()

	state, err := e.states.GetReminderState(userID, habitID)
	if err != nil || state == nil {
		return state, err
	}
	if state.RollWeekIfNeeded(now) {
		if err := e.states.SaveReminderState(state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// ListStates returns every configured habit's state for a user
func (e *Engine) ListStates(userID int64, now time.Time) ([]*core.ReminderState, error) {
	habitIDs, err := e.states.ListReminderHabitIDs(userID)
	if err != nil {
		return nil, err
	}

	states := make([]*core.ReminderState, 0, len(habitIDs))
	for _, habitID := range habitIDs {
		state, err := e.GetState(userID, habitID, now)
		if err != nil {
			return nil, err
		}
		if state != nil {
			states = append(states, state)
		}
	}
	return states, nil
}

// Select initializes a freshly picked habit with its category's default
// template. Habits that already have reminder state are left untouched.
func (e *Engine) Select(userID int64, habitID string, now time.Time) (*ScheduleReport, error) {
	existing, err := e.GetState(userID, habitID, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &ScheduleReport{}, nil
	}

	var category core.HabitCategory
	if h, ok := e.habits.Get(habitID); ok {
		category = h.Category
	}
	tpl := TemplateFor(category)
	return e.ApplyConfiguration(userID, habitID, tpl.Config, nil, tpl.WeeklyQuota, tpl.AutoSpread, now)
}

// ApplyConfiguration replaces a habit's reminder schedule with one derived
// from config. Existing notifications for the habit are cancelled first, so
// the pending set always mirrors the latest configuration. Per-day schedule
// failures are reported, not fatal.
func (e *Engine) ApplyConfiguration(userID int64, habitID string, config core.ReminderConfig, multiPing *core.MultiPingConfig, weeklyQuota *int, autoSpread bool, now time.Time) (*ScheduleReport, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reminder config for %s: %w", habitID, err)
	}

	m := e.lock(userID, habitID)
	m.Lock()
	defer m.Unlock()

	state, err := e.states.GetReminderState(userID, habitID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &core.ReminderState{UserID: userID, HabitID: habitID}
	}
	state.Config = config
	state.MultiPing = multiPing
	state.WeeklyQuota = weeklyQuota
	state.AutoSpread = autoSpread
	state.RollWeekIfNeeded(now)

	if err := e.cancelAll(userID, habitID); err != nil {
		return nil, err
	}

	report := &ScheduleReport{}
	if state.IsPaused || !config.IsEnabled() {
		if err := e.states.SaveReminderState(state); err != nil {
			return nil, err
		}
		return report, nil
	}

	gs, err := e.states.GetGlobalSettings(userID)
	if err != nil {
		return nil, err
	}

	title := e.habitTitle(habitID)
	content := dispatch.Content{
		Title:   e.texts.ReminderTitle(userID, title),
		Body:    e.texts.ReminderBody(userID, title),
		HabitID: habitID,
	}
	at := config.EffectiveReminderTime(gs)

	for _, sched := range e.buildSchedule(habitID, config, weeklyQuota, autoSpread, at) {
		if err := e.port.Schedule(userID, sched.identifier, content, sched.trigger); err != nil {
			e.log.Warn("failed to schedule reminder",
				zap.Int64("user_id", userID),
				zap.String("identifier", sched.identifier),
				zap.Error(err))
			report.Failed = append(report.Failed, sched.identifier)
			continue
		}
		report.Scheduled = append(report.Scheduled, sched.identifier)
	}

	if multiPing != nil {
		pingContent := dispatch.Content{
			Title:   e.texts.ReminderTitle(userID, title),
			Body:    e.texts.PingBody(userID, title),
			HabitID: habitID,
		}
		for i, pingAt := range multiPing.ReminderTimes() {
			id := pingIdentifier(habitID, i+1)
			if err := e.port.Schedule(userID, id, pingContent, dispatch.Calendar(pingAt, nil, true)); err != nil {
				report.Failed = append(report.Failed, id)
				continue
			}
			report.Scheduled = append(report.Scheduled, id)
		}
	}

	if config.EnableEveningNudge {
		id := nudgeIdentifier(habitID)
		if err := e.scheduleNudge(userID, habitID, config, gs); err != nil {
			e.log.Warn("failed to schedule evening nudge",
				zap.Int64("user_id", userID),
				zap.String("habit_id", habitID),
				zap.Error(err))
			report.Failed = append(report.Failed, id)
		} else {
			report.Scheduled = append(report.Scheduled, id)
		}
	}

	if err := e.states.SaveReminderState(state); err != nil {
		return nil, err
	}
	return report, nil
}

type plannedSchedule struct {
	identifier string
	trigger    dispatch.Trigger
}

// buildSchedule turns a configuration into concrete identifier/trigger pairs.
// Selected days win over quota spreading; a quota of seven or more collapses
// to a plain daily reminder.
func (e *Engine) buildSchedule(habitID string, config core.ReminderConfig, weeklyQuota *int, autoSpread bool, at core.TimeOfDay) []plannedSchedule {
	if config.Mode == core.ReminderSelectedDays {
		planned := make([]plannedSchedule, 0, len(config.SelectedWeekdays))
		for _, wd := range config.SelectedWeekdays {
			day := wd
			planned = append(planned, plannedSchedule{
				identifier: dayIdentifier(habitID, day),
				trigger:    dispatch.Calendar(at, &day, true),
			})
		}
		return planned
	}

	if autoSpread && weeklyQuota != nil && *weeklyQuota > 0 && *weeklyQuota < 7 {
		days := spread.Days(*weeklyQuota)
		planned := make([]plannedSchedule, 0, len(days))
		for wd := 1; wd <= 7; wd++ {
			if !days[wd] {
				continue
			}
			day := wd
			planned = append(planned, plannedSchedule{
				identifier: dayIdentifier(habitID, day),
				trigger:    dispatch.Calendar(at, &day, true),
			})
		}
		return planned
	}

	return []plannedSchedule{{identifier: habitID, trigger: dispatch.Calendar(at, nil, true)}}
}

// scheduleNudge upserts the repeating evening fallback at the effective anchor
func (e *Engine) scheduleNudge(userID int64, habitID string, config core.ReminderConfig, gs core.GlobalReminderSettings) error {
	title := e.habitTitle(habitID)
	return e.port.Schedule(userID, nudgeIdentifier(habitID), dispatch.Content{
		Title:   e.texts.NudgeTitle(userID, title),
		Body:    e.texts.NudgeBody(userID, title),
		HabitID: habitID,
	}, dispatch.Calendar(config.EffectiveEveningAnchor(gs), nil, true))
}

// ScheduleEveningNudge re-evaluates a habit's evening fallback: the repeating
// nudge is restored at the evening anchor, or today's fire is suppressed when
// the habit is already completed.
func (e *Engine) ScheduleEveningNudge(userID int64, habitID string, now time.Time) error {
	m := e.lock(userID, habitID)
	m.Lock()
	defer m.Unlock()

	state, err := e.states.GetReminderState(userID, habitID)
	if err != nil {
		return err
	}
	if state == nil || state.IsPaused || !state.Config.IsEnabled() || !state.Config.EnableEveningNudge {
		return nil
	}
	if state.IsCompletedToday(now) {
		return e.port.SkipToday(userID, now, nudgeIdentifier(habitID))
	}

	gs, err := e.states.GetGlobalSettings(userID)
	if err != nil {
		return err
	}
	return e.scheduleNudge(userID, habitID, state.Config, gs)
}

// OnCompletion records a completion against reminder state: today's
// remaining notifications are suppressed, the ignore counter and any pause
// clear, and the completion feeds the habit's analytics window.
func (e *Engine) OnCompletion(userID int64, habitID string, now time.Time) error {
	m := e.lock(userID, habitID)
	m.Lock()
	defer m.Unlock()

	if err := e.port.SkipToday(userID, now,
		habitID,
		nudgeIdentifier(habitID),
		dayIdentifier(habitID, core.WeekdayNumber(now)),
	); err != nil {
		return err
	}

	state, err := e.states.GetReminderState(userID, habitID)
	if err != nil {
		return err
	}
	if state != nil {
		wasPaused := state.IsPaused
		state.RollWeekIfNeeded(now)
		state.RecordCompletion(now)
		if err := e.states.SaveReminderState(state); err != nil {
			return err
		}
		if wasPaused {
			e.log.Info("reminders resumed by completion",
				zap.Int64("user_id", userID), zap.String("habit_id", habitID))
		}
	}

	analytics, err := e.states.GetReminderAnalytics(userID, habitID)
	if err != nil {
		return err
	}
	analytics.RecordCompletion(now)
	return e.states.SaveReminderAnalytics(userID, analytics)
}

// OnReminderIgnored bumps the habit's ignore counter. Three consecutive
// ignores pause the habit and cancel its pending notifications.
func (e *Engine) OnReminderIgnored(userID int64, habitID string, now time.Time) error {
	m := e.lock(userID, habitID)
	m.Lock()
	defer m.Unlock()

	state, err := e.states.GetReminderState(userID, habitID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	state.RollWeekIfNeeded(now)
	state.RecordIgnoredReminder(now)
	if err := e.states.SaveReminderState(state); err != nil {
		return err
	}

	if state.IsPaused {
		e.log.Info("pausing reminders after repeated ignores",
			zap.Int64("user_id", userID),
			zap.String("habit_id", habitID),
			zap.Int("ignored", state.IgnoredRemindersCount))
		return e.cancelAll(userID, habitID)
	}
	return nil
}

// Resume clears a pause and rebuilds the habit's schedule
func (e *Engine) Resume(userID int64, habitID string, now time.Time) (*ScheduleReport, error) {
	m := e.lock(userID, habitID)
	m.Lock()
	state, err := e.states.GetReminderState(userID, habitID)
	if err != nil {
		m.Unlock()
		return nil, err
	}
	if state == nil {
		m.Unlock()
		return nil, fmt.Errorf("no reminder state for habit %s", habitID)
	}
	state.IsPaused = false
	state.IgnoredRemindersCount = 0
	state.LastIgnoredAt = nil
	if err := e.states.SaveReminderState(state); err != nil {
		m.Unlock()
		return nil, err
	}
	config, mp, quota, autoSpread := state.Config, state.MultiPing, state.WeeklyQuota, state.AutoSpread
	m.Unlock()

	return e.ApplyConfiguration(userID, habitID, config, mp, quota, autoSpread, now)
}

// RemoveHabit cancels a habit's notifications and deletes its state
func (e *Engine) RemoveHabit(userID int64, habitID string) error {
	m := e.lock(userID, habitID)
	m.Lock()
	defer m.Unlock()

	if err := e.cancelAll(userID, habitID); err != nil {
		return err
	}
	return e.states.DeleteReminderState(userID, habitID)
}

// SuggestedTime returns the analytics-derived reminder time for a habit,
// or nil when there is no completion history yet.
func (e *Engine) SuggestedTime(userID int64, habitID string) (*core.TimeOfDay, error) {
	analytics, err := e.states.GetReminderAnalytics(userID, habitID)
	if err != nil {
		return nil, err
	}
	return analytics.SuggestedReminderTime(), nil
}

// GlobalSettings returns a user's reminder settings
func (e *Engine) GlobalSettings(userID int64) (core.GlobalReminderSettings, error) {
	return e.states.GetGlobalSettings(userID)
}

// UpdateGlobalSettings persists a user's reminder settings
func (e *Engine) UpdateGlobalSettings(userID int64, gs core.GlobalReminderSettings) error {
	return e.states.SaveGlobalSettings(userID, gs)
}

// registerActions wires the snooze, tonight, and skip buttons. Completion is
// registered by the caller that owns the ledger, so points and reminder
// state settle through one path.
func (e *Engine) registerActions() {
	e.port.RegisterAction(ActionSnooze15, func(ctx context.Context, userID int64, habitID string) error {
		return e.Snooze(userID, habitID, time.Now())
	})
	e.port.RegisterAction(ActionRemindTonight, func(ctx context.Context, userID int64, habitID string) error {
		return e.RemindTonight(userID, habitID, time.Now())
	})
	e.port.RegisterAction(ActionSkipToday, func(ctx context.Context, userID int64, habitID string) error {
		return e.SkipToday(userID, habitID, time.Now())
	})
}

// Snooze schedules a fresh one-shot reminder fifteen minutes out
func (e *Engine) Snooze(userID int64, habitID string, now time.Time) error {
	title := e.habitTitle(habitID)
	return e.port.Schedule(userID, snoozeIdentifier(habitID), dispatch.Content{
		Title:   e.texts.ReminderTitle(userID, title),
		Body:    e.texts.SnoozeBody(userID, title),
		HabitID: habitID,
	}, dispatch.OneShot(snoozeDelay))
}

// RemindTonight schedules a one-shot at the user's evening anchor, rolling
// to tomorrow's anchor when tonight's has already passed.
func (e *Engine) RemindTonight(userID int64, habitID string, now time.Time) error {
	gs, err := e.states.GetGlobalSettings(userID)
	if err != nil {
		return err
	}

	anchor := gs.DefaultEveningAnchor
	if state, err := e.states.GetReminderState(userID, habitID); err == nil && state != nil {
		anchor = state.Config.EffectiveEveningAnchor(gs)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), anchor.Hour, anchor.Minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}

	title := e.habitTitle(habitID)
	return e.port.Schedule(userID, tonightIdentifier(habitID), dispatch.Content{
		Title:   e.texts.ReminderTitle(userID, title),
		Body:    e.texts.TonightBody(userID, title),
		HabitID: habitID,
	}, dispatch.OneShot(target.Sub(now)))
}

// SkipToday suppresses today's notifications for a habit and counts the
// skip as an ignored reminder.
func (e *Engine) SkipToday(userID int64, habitID string, now time.Time) error {
	if err := e.port.SkipToday(userID, now,
		habitID,
		nudgeIdentifier(habitID),
		dayIdentifier(habitID, core.WeekdayNumber(now)),
	); err != nil {
		return err
	}
	return e.OnReminderIgnored(userID, habitID, now)
}

// WeeklyProgress summarizes quota progress for one habit
type WeeklyProgress struct {
	HabitID     string `json:"habitId"`
	Completions int    `json:"completions"`
	Quota       int    `json:"quota,omitempty"`
	WeekOf      string `json:"weekOf"`
}

// Progress reports this week's completions against quota for each
// configured habit.
func (e *Engine) Progress(userID int64, now time.Time) ([]WeeklyProgress, error) {
	states, err := e.ListStates(userID, now)
	if err != nil {
		return nil, err
	}

	progress := make([]WeeklyProgress, 0, len(states))
	for _, state := range states {
		p := WeeklyProgress{
			HabitID:     state.HabitID,
			Completions: state.CompletionsThisWeek,
			WeekOf:      state.WeekOf,
		}
		if state.WeeklyQuota != nil {
			p.Quota = *state.WeeklyQuota
		}
		progress = append(progress, p)
	}
	return progress, nil
}
