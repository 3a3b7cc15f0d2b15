package reminder

import (
	"fmt"

	"lockin-monolith/internal/i18n"
)

// TranslatedTexts builds notification copy from locale files, resolving each
// user's language through langOf.
type TranslatedTexts struct {
	translator *i18n.Translator
	langOf     func(userID int64) string
}

// NewTranslatedTexts creates a Texts implementation backed by translator
func NewTranslatedTexts(translator *i18n.Translator, langOf func(userID int64) string) *TranslatedTexts {
	return &TranslatedTexts{translator: translator, langOf: langOf}
}

func (t *TranslatedTexts) format(userID int64, key, habitTitle string) string {
	return fmt.Sprintf(t.translator.T(t.langOf(userID), key), habitTitle)
}

func (t *TranslatedTexts) ReminderTitle(userID int64, habitTitle string) string {
	return t.format(userID, "reminder.title", habitTitle)
}

func (t *TranslatedTexts) ReminderBody(userID int64, habitTitle string) string {
	return t.format(userID, "reminder.body", habitTitle)
}

func (t *TranslatedTexts) NudgeTitle(userID int64, habitTitle string) string {
	return t.format(userID, "reminder.nudge.title", habitTitle)
}

func (t *TranslatedTexts) NudgeBody(userID int64, habitTitle string) string {
	return t.format(userID, "reminder.nudge.body", habitTitle)
}

func (t *TranslatedTexts) PingBody(userID int64, habitTitle string) string {
	return t.format(userID, "reminder.ping.body", habitTitle)
}

func (t *TranslatedTexts) SnoozeBody(userID int64, habitTitle string) string {
	return t.format(userID, "reminder.snooze.body", habitTitle)
}

func (t *TranslatedTexts) TonightBody(userID int64, habitTitle string) string {
	return t.format(userID, "reminder.tonight.body", habitTitle)
}
