// Package bot runs the Telegram side: account onboarding, dashboard login
// links, and reminder delivery with inline action buttons.
package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"lockin-monolith/internal/core"
	"lockin-monolith/internal/i18n"
	"lockin-monolith/internal/ledger"
	"lockin-monolith/internal/reminder"
)

// Users manages accounts and their notification preferences
type Users interface {
	GetUserByTelegramID(telegramID int64) (*core.User, error)
	CreateUser(username string, telegramID *int64, language string) (*core.User, error)
	SetUserLanguage(userID int64, language string) error
	SetNotificationsEnabled(userID int64, enabled bool) error
	GetCounters(userID int64) (core.UserCounters, error)
}

// Completions records a habit completion
type Completions interface {
	Record(userID int64, habitID string, at time.Time) (*ledger.Result, error)
}

// Reminders is the slice of the reminder engine the bot needs
type Reminders interface {
	OnCompletion(userID int64, habitID string, now time.Time) error
	Progress(userID int64, now time.Time) ([]reminder.WeeklyProgress, error)
}

// Actions routes notification button taps to their registered handlers
type Actions interface {
	HandleAction(ctx context.Context, action string, userID int64, habitID string) error
}

// Habits resolves catalog entries for display
type Habits interface {
	Get(id string) (core.Habit, bool)
}

// Bot is the Telegram front of the service
type Bot struct {
	bot           *tele.Bot
	users         Users
	completions   Completions
	reminders     Reminders
	actions       Actions
	habits        Habits
	translator    *i18n.Translator
	publicURL     string
	sessionSecret string
	log           *zap.Logger
}

// NewBot creates the bot and registers its handlers
func NewBot(token, publicURL, sessionSecret string, users Users, completions Completions, reminders Reminders, actions Actions, habits Habits, translator *i18n.Translator, log *zap.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &Bot{
		bot:           b,
		users:         users,
		completions:   completions,
		reminders:     reminders,
		actions:       actions,
		habits:        habits,
		translator:    translator,
		publicURL:     publicURL,
		sessionSecret: sessionSecret,
		log:           log,
	}

	bot.setupHandlers()
	return bot, nil
}

// Start begins long polling. Blocks until Stop is called.
func (b *Bot) Start() {
	b.log.Info("telegram bot polling")
	b.bot.Start()
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) setupHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/web", b.handleWeb)
	b.bot.Handle("/help", b.handleHelp)
	b.bot.Handle("/habits", b.handleHabits)
	b.bot.Handle("/aura", b.handleAura)
	b.bot.Handle("/notifications", b.handleNotifications)
	b.bot.Handle("/switch_language", b.handleSwitchLanguage)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

func normalizeLang(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "ru") {
		return "ru"
	}
	return "en"
}

func (b *Bot) lang(c tele.Context, user *core.User) string {
	if user != nil && user.Language != "" {
		return normalizeLang(user.Language)
	}
	if c != nil && c.Sender() != nil && c.Sender().LanguageCode != "" {
		return normalizeLang(c.Sender().LanguageCode)
	}
	return "en"
}

func (b *Bot) t(lang, key string) string {
	if b.translator == nil {
		return key
	}
	return b.translator.T(lang, key)
}

// userFor resolves the sender's account, or nil if they never ran /start
func (b *Bot) userFor(c tele.Context) (*core.User, error) {
	return b.users.GetUserByTelegramID(c.Sender().ID)
}

// handleStart creates the account on first contact and welcomes returning users
func (b *Bot) handleStart(c tele.Context) error {
	telegramID := c.Sender().ID
	username := c.Sender().Username
	if username == "" {
		username = c.Sender().FirstName
	}
	langFromTg := b.lang(c, nil)

	user, err := b.userFor(c)
	if err != nil {
		b.log.Error("failed to look up user", zap.Error(err))
		return c.Send(b.t(langFromTg, "bot.error.generic"))
	}
	if user != nil {
		if user.Language == "" {
			_ = b.users.SetUserLanguage(user.ID, langFromTg)
			user.Language = langFromTg
		}
		return c.Send(fmt.Sprintf(b.t(user.Language, "bot.start.returning"), user.Username))
	}

	newUser, err := b.users.CreateUser(username, &telegramID, langFromTg)
	if err != nil {
		b.log.Error("failed to create user", zap.String("username", username), zap.Error(err))
		return c.Send(b.t(langFromTg, "bot.error.generic"))
	}
	return c.Send(fmt.Sprintf(b.t(langFromTg, "bot.start.new"), newUser.Username))
}

// handleWeb sends a signed login link for the dashboard
func (b *Bot) handleWeb(c tele.Context) error {
	user, err := b.userFor(c)
	if err != nil || user == nil {
		return c.Send(b.t(b.lang(c, nil), "bot.web.unknown"))
	}
	lang := b.lang(c, user)

	loginURL := fmt.Sprintf("%s/auth?user=%s&hash=%s", b.publicURL, user.Username, b.generateLoginHash(user.Username))
	return c.Send(fmt.Sprintf(b.t(lang, "bot.web.access"), loginURL))
}

// generateLoginHash derives the HMAC the web server checks on /auth
func (b *Bot) generateLoginHash(username string) string {
	h := hmac.New(sha256.New, []byte(b.sessionSecret))
	h.Write([]byte(username))
	return hex.EncodeToString(h.Sum(nil))
}

func (b *Bot) handleHelp(c tele.Context) error {
	user, _ := b.userFor(c)
	return c.Send(b.t(b.lang(c, user), "bot.help"))
}

// handleHabits lists this week's progress per habit
func (b *Bot) handleHabits(c tele.Context) error {
	user, err := b.userFor(c)
	if err != nil || user == nil {
		return c.Send(b.t(b.lang(c, nil), "bot.web.unknown"))
	}
	lang := b.lang(c, user)

	progress, err := b.reminders.Progress(user.ID, time.Now())
	if err != nil {
		b.log.Error("failed to load progress", zap.Int64("user_id", user.ID), zap.Error(err))
		return c.Send(b.t(lang, "bot.error.generic"))
	}
	if len(progress) == 0 {
		return c.Send(fmt.Sprintf(b.t(lang, "bot.habits.empty"), b.publicURL))
	}

	var msg strings.Builder
	msg.WriteString(b.t(lang, "bot.habits.header"))
	msg.WriteString("\n\n")
	for _, p := range progress {
		title := p.HabitID
		if h, ok := b.habits.Get(p.HabitID); ok {
			title = h.Title
		}
		if p.Quota > 0 {
			msg.WriteString(fmt.Sprintf(b.t(lang, "bot.habits.line"), title, p.Completions, p.Quota))
		} else {
			msg.WriteString(fmt.Sprintf(b.t(lang, "bot.habits.line.noquota"), title, p.Completions))
		}
		msg.WriteString("\n")
	}
	return c.Send(msg.String())
}

// handleAura shows the user's ledger totals
func (b *Bot) handleAura(c tele.Context) error {
	user, err := b.userFor(c)
	if err != nil || user == nil {
		return c.Send(b.t(b.lang(c, nil), "bot.web.unknown"))
	}
	lang := b.lang(c, user)

	counters, err := b.users.GetCounters(user.ID)
	if err != nil {
		b.log.Error("failed to load counters", zap.Int64("user_id", user.ID), zap.Error(err))
		return c.Send(b.t(lang, "bot.error.generic"))
	}

	msg := b.t(lang, "bot.aura.header") + "\n\n" +
		fmt.Sprintf(b.t(lang, "bot.aura.body"), counters.TotalCount, counters.StreakCount, counters.TotalAura)
	return c.Send(msg)
}

// handleNotifications shows the current state with a toggle button
func (b *Bot) handleNotifications(c tele.Context) error {
	user, err := b.userFor(c)
	if err != nil || user == nil {
		return c.Send(b.t(b.lang(c, nil), "bot.web.unknown"))
	}
	lang := b.lang(c, user)

	return c.Send(b.notificationsText(lang, user.NotificationsEnabled), b.notificationsKeyboard(lang))
}

func (b *Bot) notificationsText(lang string, enabled bool) string {
	if enabled {
		return b.t(lang, "bot.notifications.on")
	}
	return b.t(lang, "bot.notifications.off")
}

func (b *Bot) notificationsKeyboard(lang string) *tele.ReplyMarkup {
	btn := tele.InlineButton{Text: b.t(lang, "bot.notifications.toggle"), Data: "notif:toggle"}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{btn}}}
}

func (b *Bot) handleSwitchLanguage(c tele.Context) error {
	user, _ := b.userFor(c)
	lang := b.lang(c, user)
	return c.Send(b.t(lang, "bot.switch.prompt"), b.languageKeyboard(lang))
}

func (b *Bot) languageKeyboard(lang string) *tele.ReplyMarkup {
	btnEn := tele.InlineButton{Text: b.t(lang, "bot.switch.en"), Data: "lang:en"}
	btnRu := tele.InlineButton{Text: b.t(lang, "bot.switch.ru"), Data: "lang:ru"}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{btnEn, btnRu}}}
}

// handleCallback routes all inline button taps
func (b *Bot) handleCallback(c tele.Context) error {
	data := strings.TrimSpace(c.Callback().Data)

	if strings.HasPrefix(data, "lang:") {
		return b.handleLanguageSelection(c, strings.TrimPrefix(data, "lang:"))
	}
	if data == "notif:toggle" {
		return b.handleNotificationToggle(c)
	}
	if strings.HasPrefix(data, "act:") {
		return b.handleActionCallback(c, data)
	}
	return c.Respond(&tele.CallbackResponse{Text: "❌"})
}

func (b *Bot) handleLanguageSelection(c tele.Context, lang string) error {
	lang = normalizeLang(lang)
	user, err := b.userFor(c)
	if err != nil || user == nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌"})
	}
	_ = b.users.SetUserLanguage(user.ID, lang)
	if err := c.Edit(b.t(lang, "bot.switch.prompt"), b.languageKeyboard(lang)); err != nil {
		b.log.Warn("failed to edit language message", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{})
}

func (b *Bot) handleNotificationToggle(c tele.Context) error {
	user, err := b.userFor(c)
	if err != nil || user == nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌"})
	}
	lang := b.lang(c, user)

	enabled := !user.NotificationsEnabled
	if err := b.users.SetNotificationsEnabled(user.ID, enabled); err != nil {
		b.log.Error("failed to toggle notifications", zap.Int64("user_id", user.ID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error.generic")})
	}

	if err := c.Edit(b.notificationsText(lang, enabled), b.notificationsKeyboard(lang)); err != nil {
		b.log.Warn("failed to edit notifications message", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{})
}

// handleActionCallback dispatches a reminder button tap.
// Data format: act:<ACTION>:<habitID>
func (b *Bot) handleActionCallback(c tele.Context, data string) error {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return c.Respond(&tele.CallbackResponse{Text: "❌"})
	}
	action, habitID := parts[1], parts[2]

	user, err := b.userFor(c)
	if err != nil || user == nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌"})
	}
	lang := b.lang(c, user)

	if action == reminder.ActionMarkDone {
		return b.handleDone(c, user, lang, habitID)
	}

	if err := b.actions.HandleAction(context.Background(), action, user.ID, habitID); err != nil {
		b.log.Error("failed to handle notification action",
			zap.String("action", action), zap.String("habit_id", habitID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error.generic")})
	}

	var reply string
	switch action {
	case reminder.ActionSnooze15:
		reply = b.t(lang, "bot.snooze.reply")
	case reminder.ActionRemindTonight:
		reply = b.t(lang, "bot.tonight.reply")
	case reminder.ActionSkipToday:
		reply = b.t(lang, "bot.skip.reply")
	}
	return c.Respond(&tele.CallbackResponse{Text: reply})
}

// handleDone records the completion and settles the habit's reminders
func (b *Bot) handleDone(c tele.Context, user *core.User, lang, habitID string) error {
	now := time.Now()

	result, err := b.completions.Record(user.ID, habitID, now)
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error.generic")})
		}
		b.log.Error("failed to record completion",
			zap.Int64("user_id", user.ID), zap.String("habit_id", habitID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.error.generic")})
	}

	if err := b.reminders.OnCompletion(user.ID, habitID, now); err != nil {
		b.log.Warn("failed to settle reminder state after completion",
			zap.String("habit_id", habitID), zap.Error(err))
	}

	if !result.Counted {
		return c.Respond(&tele.CallbackResponse{Text: b.t(lang, "bot.done.already")})
	}

	title := habitID
	if h, ok := b.habits.Get(habitID); ok {
		title = h.Title
	}
	reply := fmt.Sprintf(b.t(lang, "bot.done.reply"), title, result.AuraEarned)

	if err := c.Edit(reply); err != nil {
		b.log.Warn("failed to edit message after completion", zap.Error(err))
	}
	return c.Respond(&tele.CallbackResponse{Text: reply})
}

// Send delivers a scheduled reminder with its action buttons. Implements the
// dispatch sender.
func (b *Bot) Send(user *core.User, n *core.ScheduledNotification) error {
	if user.TelegramID == nil {
		return fmt.Errorf("user %d has no linked telegram account", user.ID)
	}
	lang := normalizeLang(user.Language)

	message := n.Title
	if n.Body != "" {
		message += "\n" + n.Body
	}

	var markup *tele.ReplyMarkup
	if n.HabitID != "" {
		markup = &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
			{
				{Text: b.t(lang, "bot.button.done"), Data: "act:" + reminder.ActionMarkDone + ":" + n.HabitID},
				{Text: b.t(lang, "bot.button.snooze"), Data: "act:" + reminder.ActionSnooze15 + ":" + n.HabitID},
			},
			{
				{Text: b.t(lang, "bot.button.tonight"), Data: "act:" + reminder.ActionRemindTonight + ":" + n.HabitID},
				{Text: b.t(lang, "bot.button.skip"), Data: "act:" + reminder.ActionSkipToday + ":" + n.HabitID},
			},
		}}
	}

	recipient := &tele.User{ID: *user.TelegramID}
	var err error
	if markup != nil {
		_, err = b.bot.Send(recipient, message, markup)
	} else {
		_, err = b.bot.Send(recipient, message)
	}
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
