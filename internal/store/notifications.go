package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lockin-monolith/internal/core"
)

// UpsertNotification schedules or replaces a notification by identifier
func (s *Store) UpsertNotification(n *core.ScheduledNotification) error {
	_, err := s.DB.Exec(
		`INSERT INTO scheduled_notifications
		 (user_id, identifier, habit_id, title, body, kind, hour, minute, weekday, repeats, attempts, next_fire_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT(user_id, identifier) DO UPDATE SET
		   habit_id = excluded.habit_id,
		   title = excluded.title,
		   body = excluded.body,
		   kind = excluded.kind,
		   hour = excluded.hour,
		   minute = excluded.minute,
		   weekday = excluded.weekday,
		   repeats = excluded.repeats,
		   attempts = 0,
		   next_fire_at = excluded.next_fire_at`,
		n.UserID, n.Identifier, n.HabitID, n.Title, n.Body, string(n.Kind),
		n.Hour, n.Minute, n.Weekday, n.Repeats, n.NextFireAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert notification %s: %w", n.Identifier, err)
	}
	return nil
}

// DeleteNotifications removes the given identifiers for a user. Unknown
// identifiers are ignored.
func (s *Store) DeleteNotifications(userID int64, identifiers []string) error {
	if len(identifiers) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(identifiers))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(identifiers)+1)
	args = append(args, userID)
	for _, id := range identifiers {
		args = append(args, id)
	}

	_, err := s.DB.Exec(
		fmt.Sprintf(`DELETE FROM scheduled_notifications WHERE user_id = ? AND identifier IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}

// DeleteNotificationsByPrefix removes every notification for a user whose
// identifier starts with prefix.
func (s *Store) DeleteNotificationsByPrefix(userID int64, prefix string) error {
	_, err := s.DB.Exec(
		`DELETE FROM scheduled_notifications WHERE user_id = ? AND identifier LIKE ?`,
		userID, prefix+"%",
	)
	if err != nil {
		return fmt.Errorf("failed to delete notifications by prefix: %w", err)
	}
	return nil
}

// ListNotifications returns a user's pending notifications ordered by
// next fire time.
func (s *Store) ListNotifications(userID int64) ([]*core.ScheduledNotification, error) {
	rows, err := s.DB.Query(
		`SELECT user_id, identifier, habit_id, title, body, kind, hour, minute, weekday, repeats, attempts, next_fire_at, created_at
		 FROM scheduled_notifications WHERE user_id = ?
		 ORDER BY next_fire_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// DueNotifications returns every notification across all users whose next
// fire time is at or before now.
func (s *Store) DueNotifications(now time.Time) ([]*core.ScheduledNotification, error) {
	rows, err := s.DB.Query(
		`SELECT user_id, identifier, habit_id, title, body, kind, hour, minute, weekday, repeats, attempts, next_fire_at, created_at
		 FROM scheduled_notifications WHERE next_fire_at <= ?
		 ORDER BY next_fire_at`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func scanNotifications(rows *sql.Rows) ([]*core.ScheduledNotification, error) {
	var notifications []*core.ScheduledNotification
	for rows.Next() {
		n := &core.ScheduledNotification{}
		var kind string
		if err := rows.Scan(
			&n.UserID, &n.Identifier, &n.HabitID, &n.Title, &n.Body, &kind,
			&n.Hour, &n.Minute, &n.Weekday, &n.Repeats, &n.Attempts, &n.NextFireAt, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Kind = core.TriggerKind(kind)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// RescheduleNotification advances a repeating notification to its next fire time
func (s *Store) RescheduleNotification(userID int64, identifier string, nextFireAt time.Time) error {
	_, err := s.DB.Exec(
		`UPDATE scheduled_notifications SET next_fire_at = ? WHERE user_id = ? AND identifier = ?`,
		nextFireAt, userID, identifier,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule notification %s: %w", identifier, err)
	}
	return nil
}

// IncrementNotificationAttempts bumps a notification's failed delivery counter
func (s *Store) IncrementNotificationAttempts(userID int64, identifier string) error {
	_, err := s.DB.Exec(
		`UPDATE scheduled_notifications SET attempts = attempts + 1 WHERE user_id = ? AND identifier = ?`,
		userID, identifier,
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt for %s: %w", identifier, err)
	}
	return nil
}

// DeliveryCount returns how many notifications were delivered to a user on
// the given day key.
func (s *Store) DeliveryCount(userID int64, day string) (int, error) {
	var count int
	err := s.DB.QueryRow(
		`SELECT count FROM notification_deliveries WHERE user_id = ? AND day = ?`,
		userID, day,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read delivery count: %w", err)
	}
	return count, nil
}

// IncrementDeliveryCount bumps the per-day delivery counter for a user
func (s *Store) IncrementDeliveryCount(userID int64, day string) error {
	_, err := s.DB.Exec(
		`INSERT INTO notification_deliveries (user_id, day, count) VALUES (?, ?, 1)
		 ON CONFLICT(user_id, day) DO UPDATE SET count = count + 1`,
		userID, day,
	)
	if err != nil {
		return fmt.Errorf("failed to increment delivery count: %w", err)
	}
	return nil
}
