package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"lockin-monolith/internal/core"
	"lockin-monolith/internal/dispatch"
	"lockin-monolith/internal/ledger"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// handleListHabits returns the catalog with each habit's reminder state
func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	now := time.Now()

	states, err := s.reminders.ListStates(userID, now)
	if err != nil {
		s.log.Error("failed to list reminder states", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load habits")
		return
	}
	byHabit := make(map[string]*core.ReminderState, len(states))
	for _, st := range states {
		byHabit[st.HabitID] = st
	}

	type habitView struct {
		core.Habit
		Aura     int                 `json:"aura"`
		Reminder *core.ReminderState `json:"reminder,omitempty"`
	}

	habits := s.habits.All()
	views := make([]habitView, 0, len(habits))
	for _, h := range habits {
		views = append(views, habitView{Habit: h, Aura: h.AuraValue(), Reminder: byHabit[h.ID]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"habits": views})
}

// handleSelect sets up a newly picked habit with its category defaults
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	habitID := chi.URLParam(r, "habitID")

	if _, ok := s.habits.Get(habitID); !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown habit")
		return
	}

	report, err := s.reminders.Select(userID, habitID, time.Now())
	if err != nil {
		s.log.Error("failed to select habit", zap.String("habit_id", habitID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to set up habit")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGetReminder returns one habit's reminder state and suggested time
func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	habitID := chi.URLParam(r, "habitID")

	state, err := s.reminders.GetState(userID, habitID, time.Now())
	if err != nil {
		s.log.Error("failed to get reminder state", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load reminder")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "not_found", "no reminder configured for this habit")
		return
	}

	suggested, err := s.reminders.SuggestedTime(userID, habitID)
	if err != nil {
		s.log.Warn("failed to compute suggested time", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":         state,
		"suggestedTime": suggested,
	})
}

type timeOfDayRequest struct {
	Hour   int `json:"hour" validate:"min=0,max=23"`
	Minute int `json:"minute" validate:"min=0,max=59"`
}

func (t *timeOfDayRequest) toCore() *core.TimeOfDay {
	if t == nil {
		return nil
	}
	return &core.TimeOfDay{Hour: t.Hour, Minute: t.Minute}
}

type multiPingRequest struct {
	TimesPerDay int `json:"timesPerDay" validate:"required"`
	StartHour   int `json:"startHour"`
	EndHour     int `json:"endHour"`
}

type reminderRequest struct {
	Mode               string            `json:"mode" validate:"required,oneof=off daily selectedDays smart"`
	Time               *timeOfDayRequest `json:"time,omitempty"`
	SelectedWeekdays   []int             `json:"selectedWeekdays,omitempty" validate:"omitempty,dive,min=1,max=7"`
	EveningAnchor      *timeOfDayRequest `json:"eveningAnchor,omitempty"`
	EnableEveningNudge bool              `json:"enableEveningNudge"`
	WeeklyQuota        *int              `json:"weeklyQuota,omitempty" validate:"omitempty,min=1,max=7"`
	AutoSpread         bool              `json:"autoSpread"`
	MultiPing          *multiPingRequest `json:"multiPing,omitempty"`
}

// handlePutReminder replaces a habit's reminder configuration
func (s *Server) handlePutReminder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	habitID := chi.URLParam(r, "habitID")

	if _, ok := s.habits.Get(habitID); !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown habit")
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	config := core.ReminderConfig{
		Mode:               core.ReminderMode(req.Mode),
		Time:               req.Time.toCore(),
		SelectedWeekdays:   req.SelectedWeekdays,
		EveningAnchor:      req.EveningAnchor.toCore(),
		EnableEveningNudge: req.EnableEveningNudge,
	}

	var multiPing *core.MultiPingConfig
	if req.MultiPing != nil {
		mp := core.NewMultiPingConfig(req.MultiPing.TimesPerDay, req.MultiPing.StartHour, req.MultiPing.EndHour)
		multiPing = &mp
	}

	report, err := s.reminders.ApplyConfiguration(userID, habitID, config, multiPing, req.WeeklyQuota, req.AutoSpread, time.Now())
	if err != nil {
		if errors.Is(err, core.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
			return
		}
		s.log.Error("failed to apply reminder config",
			zap.String("habit_id", habitID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to apply reminder config")
		return
	}

	if len(report.Failed) > 0 && len(report.Scheduled) == 0 {
		// Nothing could be scheduled, most likely no notification channel
		writeError(w, http.StatusConflict, "permission_required", "no reminder was set, check notification settings")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleComplete records a completion and settles reminder state
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	habitID := chi.URLParam(r, "habitID")
	now := time.Now()

	if _, ok := s.habits.Get(habitID); !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown habit")
		return
	}

	result, err := s.completions.Record(userID, habitID, now)
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			writeError(w, http.StatusServiceUnavailable, "retryable", "please retry the completion")
			return
		}
		s.log.Error("failed to record completion", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to record completion")
		return
	}

	if err := s.reminders.OnCompletion(userID, habitID, now); err != nil {
		// Counters are already committed; reminder cleanup is best-effort
		s.log.Warn("failed to settle reminder state after completion",
			zap.String("habit_id", habitID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, result)
}

// handleIgnore records an ignored reminder
func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	habitID := chi.URLParam(r, "habitID")

	if err := s.reminders.OnReminderIgnored(userID, habitID, time.Now()); err != nil {
		s.log.Error("failed to record ignored reminder", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to record ignore")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleResume clears a pause and rebuilds the habit's schedule
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	habitID := chi.URLParam(r, "habitID")

	report, err := s.reminders.Resume(userID, habitID, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot_resume", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleNudge schedules tonight's fallback reminder for a habit
func (s *Server) handleNudge(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	habitID := chi.URLParam(r, "habitID")

	if err := s.reminders.ScheduleEveningNudge(userID, habitID, time.Now()); err != nil {
		if errors.Is(err, dispatch.ErrNotAuthorized) {
			writeError(w, http.StatusConflict, "permission_required", "no reminder was set, check notification settings")
			return
		}
		s.log.Error("failed to schedule nudge", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to schedule nudge")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type settingsRequest struct {
	DefaultReminderTime       timeOfDayRequest `json:"defaultReminderTime"`
	DefaultEveningAnchor      timeOfDayRequest `json:"defaultEveningAnchor"`
	EnableSmartReminders      bool             `json:"enableSmartReminders"`
	MaxDailyNotifications     int              `json:"maxDailyNotifications" validate:"min=0,max=50"`
	EnableNotificationSummary bool             `json:"enableNotificationSummary"`
}

// handleGetSettings returns the user's global reminder settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	gs, err := s.reminders.GlobalSettings(userIDFrom(r))
	if err != nil {
		s.log.Error("failed to load settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// handlePutSettings replaces the user's global reminder settings
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	gs := core.GlobalReminderSettings{
		DefaultReminderTime:       core.TimeOfDay{Hour: req.DefaultReminderTime.Hour, Minute: req.DefaultReminderTime.Minute},
		DefaultEveningAnchor:      core.TimeOfDay{Hour: req.DefaultEveningAnchor.Hour, Minute: req.DefaultEveningAnchor.Minute},
		EnableSmartReminders:      req.EnableSmartReminders,
		MaxDailyNotifications:     req.MaxDailyNotifications,
		EnableNotificationSummary: req.EnableNotificationSummary,
	}
	if err := s.reminders.UpdateGlobalSettings(userIDFrom(r), gs); err != nil {
		s.log.Error("failed to save settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// handleCounters returns the user's ledger totals
func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := s.users.GetCounters(userIDFrom(r))
	if err != nil {
		s.log.Error("failed to load counters", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load counters")
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

// handleProgress returns this week's completions per habit
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.reminders.Progress(userIDFrom(r), time.Now())
	if err != nil {
		s.log.Error("failed to load progress", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"progress": progress})
}
