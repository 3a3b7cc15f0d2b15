package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lockin-monolith/internal/core"
)

// maxDeliveryAttempts bounds retries of a failing one-shot before it is dropped
const maxDeliveryAttempts = 5

// StartWorker polls for due notifications every interval and delivers them
// through sender until ctx is cancelled. Run it in its own goroutine.
func (s *Scheduler) StartWorker(ctx context.Context, interval time.Duration, sender Sender) {
	s.log.Info("starting notification worker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("notification worker stopped")
			return
		case now := <-ticker.C:
			s.DeliverDue(now, sender)
		}
	}
}

// DeliverDue processes every notification due at now. Exposed so a single
// tick can be driven directly in tests.
func (s *Scheduler) DeliverDue(now time.Time, sender Sender) {
	due, err := s.store.DueNotifications(now)
	if err != nil {
		s.log.Error("failed to query due notifications", zap.Error(err))
		return
	}

	for _, n := range due {
		s.deliver(now, n, sender)
	}
}

func (s *Scheduler) deliver(now time.Time, n *core.ScheduledNotification, sender Sender) {
	user, err := s.store.GetUserByID(n.UserID)
	if err != nil {
		s.log.Error("failed to load notification recipient",
			zap.Int64("user_id", n.UserID), zap.Error(err))
		return
	}
	if user == nil || user.TelegramID == nil || !user.NotificationsEnabled {
		// Recipient can no longer receive anything, drop the schedule
		if err := s.store.DeleteNotifications(n.UserID, []string{n.Identifier}); err != nil {
			s.log.Error("failed to drop undeliverable notification", zap.Error(err))
		}
		return
	}

	day := now.Format("2006-01-02")
	if max := s.maxDaily(n.UserID); max > 0 {
		count, err := s.store.DeliveryCount(n.UserID, day)
		if err != nil {
			s.log.Error("failed to read delivery count", zap.Error(err))
			return
		}
		if count >= max {
			s.log.Debug("daily notification cap reached, skipping",
				zap.Int64("user_id", n.UserID),
				zap.String("identifier", n.Identifier),
				zap.Int("cap", max))
			s.finalize(now, n)
			return
		}
	}

	if err := sender.Send(user, n); err != nil {
		s.log.Error("failed to deliver notification",
			zap.Int64("user_id", n.UserID),
			zap.String("identifier", n.Identifier),
			zap.Error(err))
		// Leave one-shots in place so the next tick retries them, up to
		// the attempt budget; repeating notifications advance below
		// regardless
		if n.Kind == core.TriggerOneShot {
			if n.Attempts+1 >= maxDeliveryAttempts {
				s.log.Warn("dropping notification after repeated delivery failures",
					zap.Int64("user_id", n.UserID),
					zap.String("identifier", n.Identifier),
					zap.Int("attempts", n.Attempts+1))
				s.finalize(now, n)
				return
			}
			if err := s.store.IncrementNotificationAttempts(n.UserID, n.Identifier); err != nil {
				s.log.Error("failed to record delivery attempt", zap.Error(err))
			}
			return
		}
	} else {
		if err := s.store.IncrementDeliveryCount(n.UserID, day); err != nil {
			s.log.Error("failed to record delivery", zap.Error(err))
		}
	}

	s.finalize(now, n)
}

// finalize deletes a fired one-shot or advances a repeating calendar
// notification to its next occurrence.
func (s *Scheduler) finalize(now time.Time, n *core.ScheduledNotification) {
	if n.Kind == core.TriggerCalendar && n.Repeats {
		next := n.NextCalendarFire(now)
		if err := s.store.RescheduleNotification(n.UserID, n.Identifier, next); err != nil {
			s.log.Error("failed to reschedule notification", zap.Error(err))
		}
		return
	}
	if err := s.store.DeleteNotifications(n.UserID, []string{n.Identifier}); err != nil {
		s.log.Error("failed to delete fired notification", zap.Error(err))
	}
}
