// Package web serves the JSON API and the Telegram login handoff.
package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"lockin-monolith/internal/core"
	"lockin-monolith/internal/ledger"
	"lockin-monolith/internal/reminder"
)

const (
	sessionName      = "lockin-session"
	sessionUserIDKey = "user_id"
)

// Reminders is the slice of the reminder engine the API exposes
type Reminders interface {
	GetState(userID int64, habitID string, now time.Time) (*core.ReminderState, error)
	ListStates(userID int64, now time.Time) ([]*core.ReminderState, error)
	Select(userID int64, habitID string, now time.Time) (*reminder.ScheduleReport, error)
	ApplyConfiguration(userID int64, habitID string, config core.ReminderConfig, multiPing *core.MultiPingConfig, weeklyQuota *int, autoSpread bool, now time.Time) (*reminder.ScheduleReport, error)
	ScheduleEveningNudge(userID int64, habitID string, now time.Time) error
	OnCompletion(userID int64, habitID string, now time.Time) error
	OnReminderIgnored(userID int64, habitID string, now time.Time) error
	Resume(userID int64, habitID string, now time.Time) (*reminder.ScheduleReport, error)
	SuggestedTime(userID int64, habitID string) (*core.TimeOfDay, error)
	GlobalSettings(userID int64) (core.GlobalReminderSettings, error)
	UpdateGlobalSettings(userID int64, gs core.GlobalReminderSettings) error
	Progress(userID int64, now time.Time) ([]reminder.WeeklyProgress, error)
}

// Completions records completion events
type Completions interface {
	Record(userID int64, habitID string, at time.Time) (*ledger.Result, error)
}

// Users resolves accounts for auth and counters for display
type Users interface {
	GetUserByUsername(username string) (*core.User, error)
	GetUserByID(id int64) (*core.User, error)
	GetCounters(userID int64) (core.UserCounters, error)
}

// Habits lists the selectable habit catalog
type Habits interface {
	All() []core.Habit
	Get(id string) (core.Habit, bool)
}

// Server is the HTTP front of the service
type Server struct {
	reminders    Reminders
	completions  Completions
	users        Users
	habits       Habits
	sessionStore *sessions.CookieStore
	secret       string
	validate     *validator.Validate
	log          *zap.Logger
	ratePerMin   int
}

// NewServer creates a Server. publicURL decides whether session cookies are
// marked Secure.
func NewServer(reminders Reminders, completions Completions, users Users, habits Habits, sessionSecret, publicURL string, ratePerMin int, log *zap.Logger) *Server {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   strings.HasPrefix(publicURL, "https"),
		SameSite: http.SameSiteLaxMode,
	}

	return &Server{
		reminders:    reminders,
		completions:  completions,
		users:        users,
		habits:       habits,
		sessionStore: store,
		secret:       sessionSecret,
		validate:     validator.New(),
		log:          log,
		ratePerMin:   ratePerMin,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(rateLimit(s.ratePerMin))

	r.Get("/healthz", s.handleHealth)
	r.Get("/auth", s.handleHashLogin)
	r.Get("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/habits", s.handleListHabits)
		r.Route("/habits/{habitID}", func(r chi.Router) {
			r.Post("/select", s.handleSelect)
			r.Get("/reminder", s.handleGetReminder)
			r.Put("/reminder", s.handlePutReminder)
			r.Post("/complete", s.handleComplete)
			r.Post("/ignore", s.handleIgnore)
			r.Post("/resume", s.handleResume)
			r.Post("/nudge", s.handleNudge)
		})

		r.Get("/settings/reminders", s.handleGetSettings)
		r.Put("/settings/reminders", s.handlePutSettings)
		r.Get("/me/counters", s.handleCounters)
		r.Get("/me/progress", s.handleProgress)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs each request with zap instead of chi's std logger
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}
