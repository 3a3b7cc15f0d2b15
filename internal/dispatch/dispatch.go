// Package dispatch owns scheduled notification delivery. It persists pending
// notifications, enforces per-user delivery limits, and routes notification
// actions back to registered handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lockin-monolith/internal/core"
)

// ErrNotAuthorized is returned when a user has no channel that can receive
// notifications or has disabled delivery.
var ErrNotAuthorized = errors.New("user is not authorized for notifications")

// AuthStatus describes whether notifications can reach a user
type AuthStatus string

const (
	AuthNotDetermined AuthStatus = "not_determined"
	AuthDenied        AuthStatus = "denied"
	AuthAuthorized    AuthStatus = "authorized"
)

// Content is the user-visible payload of a notification
type Content struct {
	Title   string
	Body    string
	HabitID string
}

// Trigger describes when a notification fires. Exactly one of Delay or the
// calendar fields is used, selected by Kind.
type Trigger struct {
	Kind    core.TriggerKind
	Delay   time.Duration // one-shot
	Time    core.TimeOfDay
	Weekday *int // 1=Sun ... 7=Sat, nil for every day
	Repeats bool
}

// OneShot builds a trigger firing once after delay
func OneShot(delay time.Duration) Trigger {
	return Trigger{Kind: core.TriggerOneShot, Delay: delay}
}

// Calendar builds a repeating wall-clock trigger
func Calendar(at core.TimeOfDay, weekday *int, repeats bool) Trigger {
	return Trigger{Kind: core.TriggerCalendar, Time: at, Weekday: weekday, Repeats: repeats}
}

// Store is the persistence the scheduler needs
type Store interface {
	UpsertNotification(n *core.ScheduledNotification) error
	DeleteNotifications(userID int64, identifiers []string) error
	DeleteNotificationsByPrefix(userID int64, prefix string) error
	ListNotifications(userID int64) ([]*core.ScheduledNotification, error)
	DueNotifications(now time.Time) ([]*core.ScheduledNotification, error)
	RescheduleNotification(userID int64, identifier string, nextFireAt time.Time) error
	IncrementNotificationAttempts(userID int64, identifier string) error
	DeliveryCount(userID int64, day string) (int, error)
	IncrementDeliveryCount(userID int64, day string) error
	GetUserByID(id int64) (*core.User, error)
	SetNotificationsEnabled(userID int64, enabled bool) error
}

// Sender delivers a notification to a user over some channel
type Sender interface {
	Send(user *core.User, n *core.ScheduledNotification) error
}

// ActionHandler reacts to a user tapping a notification action button
type ActionHandler func(ctx context.Context, userID int64, habitID string) error

// Scheduler is the notification port used by the reminder engine
type Scheduler struct {
	store    Store
	log      *zap.Logger
	maxDaily func(userID int64) int

	mu      sync.RWMutex
	actions map[string]ActionHandler
}

// NewScheduler creates a Scheduler. maxDaily returns the per-user daily
// delivery cap; zero or negative means unlimited.
func NewScheduler(store Store, log *zap.Logger, maxDaily func(userID int64) int) *Scheduler {
	if maxDaily == nil {
		maxDaily = func(int64) int { return 0 }
	}
	return &Scheduler{
		store:    store,
		log:      log,
		maxDaily: maxDaily,
		actions:  make(map[string]ActionHandler),
	}
}

// AuthorizationStatus reports whether userID can receive notifications
func (s *Scheduler) AuthorizationStatus(userID int64) (AuthStatus, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return AuthNotDetermined, err
	}
	if user == nil || user.TelegramID == nil {
		return AuthNotDetermined, nil
	}
	if !user.NotificationsEnabled {
		return AuthDenied, nil
	}
	return AuthAuthorized, nil
}

// RequestAuthorization enables delivery for a user with a linked channel.
// Users without one stay not determined until they link an account.
func (s *Scheduler) RequestAuthorization(userID int64) (AuthStatus, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return AuthNotDetermined, err
	}
	if user == nil || user.TelegramID == nil {
		return AuthNotDetermined, nil
	}
	if !user.NotificationsEnabled {
		if err := s.store.SetNotificationsEnabled(userID, true); err != nil {
			return AuthDenied, err
		}
	}
	return AuthAuthorized, nil
}

// Schedule persists a notification under identifier, replacing any previous
// one with the same identifier. Returns ErrNotAuthorized when the user
// cannot receive notifications.
func (s *Scheduler) Schedule(userID int64, identifier string, content Content, trigger Trigger) error {
	status, err := s.AuthorizationStatus(userID)
	if err != nil {
		return err
	}
	if status != AuthAuthorized {
		return fmt.Errorf("schedule %s: %w", identifier, ErrNotAuthorized)
	}

	now := time.Now()
	n := &core.ScheduledNotification{
		UserID:     userID,
		Identifier: identifier,
		HabitID:    content.HabitID,
		Title:      content.Title,
		Body:       content.Body,
		Kind:       trigger.Kind,
	}

	switch trigger.Kind {
	case core.TriggerOneShot:
		if trigger.Delay <= 0 {
			return fmt.Errorf("schedule %s: one-shot delay must be positive", identifier)
		}
		n.NextFireAt = now.Add(trigger.Delay)
	case core.TriggerCalendar:
		n.Hour = trigger.Time.Hour
		n.Minute = trigger.Time.Minute
		n.Weekday = trigger.Weekday
		n.Repeats = trigger.Repeats
		n.NextFireAt = n.NextCalendarFire(now)
	default:
		return fmt.Errorf("schedule %s: unknown trigger kind %q", identifier, trigger.Kind)
	}

	return s.store.UpsertNotification(n)
}

// Cancel removes the given identifiers for a user. Unknown identifiers are
// silently ignored, so callers can cancel speculatively.
func (s *Scheduler) Cancel(userID int64, identifiers ...string) error {
	return s.store.DeleteNotifications(userID, identifiers)
}

// CancelPrefix removes every pending notification whose identifier starts
// with prefix, catching one-shots with generated suffixes.
func (s *Scheduler) CancelPrefix(userID int64, prefix string) error {
	return s.store.DeleteNotificationsByPrefix(userID, prefix)
}

// SkipToday suppresses today's remaining firings of the given identifiers.
// One-shots are deleted; repeating calendar notifications advance to their
// next occurrence after the end of now's day.
func (s *Scheduler) SkipToday(userID int64, now time.Time, identifiers ...string) error {
	if len(identifiers) == 0 {
		return nil
	}

	pending, err := s.store.ListNotifications(userID)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		wanted[id] = true
	}

	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	for _, n := range pending {
		if !wanted[n.Identifier] {
			continue
		}
		if n.Kind == core.TriggerCalendar && n.Repeats {
			if err := s.store.RescheduleNotification(userID, n.Identifier, n.NextCalendarFire(endOfDay)); err != nil {
				return err
			}
			continue
		}
		if err := s.store.DeleteNotifications(userID, []string{n.Identifier}); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns a user's scheduled notifications ordered by fire time
func (s *Scheduler) Pending(userID int64) ([]*core.ScheduledNotification, error) {
	return s.store.ListNotifications(userID)
}

// RegisterAction binds an action identifier to its handler. Later
// registrations replace earlier ones.
func (s *Scheduler) RegisterAction(action string, handler ActionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action] = handler
}

// HandleAction dispatches a tapped action to its registered handler
func (s *Scheduler) HandleAction(ctx context.Context, action string, userID int64, habitID string) error {
	s.mu.RLock()
	handler, ok := s.actions[action]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for action %q", action)
	}
	return handler(ctx, userID, habitID)
}
