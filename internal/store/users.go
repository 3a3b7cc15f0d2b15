package store

import (
	"database/sql"
	"fmt"

	"lockin-monolith/internal/core"
)

// CreateUser inserts a new user and seeds its counters row
func (s *Store) CreateUser(username string, telegramID *int64, language string) (*core.User, error) {
	if language == "" {
		language = "en"
	}

	result, err := s.DB.Exec(
		`INSERT INTO users (username, telegram_id, language) VALUES (?, ?, ?)`,
		username, telegramID, language,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	if _, err := s.DB.Exec(`INSERT INTO user_counters (user_id) VALUES (?)`, id); err != nil {
		return nil, fmt.Errorf("failed to seed counters: %w", err)
	}

	return s.GetUserByID(id)
}

// GetUserByID retrieves a user by their internal ID
func (s *Store) GetUserByID(id int64) (*core.User, error) {
	user := &core.User{}
	err := s.DB.QueryRow(
		`SELECT id, telegram_id, username, language, notifications_enabled, created_at
		 FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.TelegramID, &user.Username, &user.Language, &user.NotificationsEnabled, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByTelegramID retrieves a user by their Telegram ID
func (s *Store) GetUserByTelegramID(telegramID int64) (*core.User, error) {
	user := &core.User{}
	err := s.DB.QueryRow(
		`SELECT id, telegram_id, username, language, notifications_enabled, created_at
		 FROM users WHERE telegram_id = ?`, telegramID,
	).Scan(&user.ID, &user.TelegramID, &user.Username, &user.Language, &user.NotificationsEnabled, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(username string) (*core.User, error) {
	user := &core.User{}
	err := s.DB.QueryRow(
		`SELECT id, telegram_id, username, language, notifications_enabled, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&user.ID, &user.TelegramID, &user.Username, &user.Language, &user.NotificationsEnabled, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// LinkTelegram attaches a Telegram account to an existing user
func (s *Store) LinkTelegram(userID, telegramID int64) error {
	_, err := s.DB.Exec(`UPDATE users SET telegram_id = ? WHERE id = ?`, telegramID, userID)
	if err != nil {
		return fmt.Errorf("failed to link telegram account: %w", err)
	}
	return nil
}

// SetNotificationsEnabled toggles reminder delivery for a user
func (s *Store) SetNotificationsEnabled(userID int64, enabled bool) error {
	_, err := s.DB.Exec(`UPDATE users SET notifications_enabled = ? WHERE id = ?`, enabled, userID)
	if err != nil {
		return fmt.Errorf("failed to update notifications flag: %w", err)
	}
	return nil
}

// SetUserLanguage updates a user's preferred language
func (s *Store) SetUserLanguage(userID int64, language string) error {
	_, err := s.DB.Exec(`UPDATE users SET language = ? WHERE id = ?`, language, userID)
	if err != nil {
		return fmt.Errorf("failed to update language: %w", err)
	}
	return nil
}
