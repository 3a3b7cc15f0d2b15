package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the database connection
type Store struct {
	DB *sql.DB
}

// NewStore creates a new Store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{DB: db}

	// Run migrations
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates all necessary tables
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id INTEGER UNIQUE,
		username TEXT NOT NULL UNIQUE,
		language TEXT DEFAULT 'en',
		notifications_enabled BOOLEAN DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_counters (
		user_id INTEGER PRIMARY KEY,
		total_count INTEGER NOT NULL DEFAULT 0,
		streak_count INTEGER NOT NULL DEFAULT 0,
		total_aura INTEGER NOT NULL DEFAULT 0,
		last_completed DATETIME,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS completions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		habit_id TEXT NOT NULL,
		completed_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS reminder_blobs (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, key)
	);

	CREATE TABLE IF NOT EXISTS scheduled_notifications (
		user_id INTEGER NOT NULL,
		identifier TEXT NOT NULL,
		habit_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		kind TEXT NOT NULL CHECK(kind IN ('calendar', 'one_shot')),
		hour INTEGER NOT NULL DEFAULT 0,
		minute INTEGER NOT NULL DEFAULT 0,
		weekday INTEGER,
		repeats BOOLEAN NOT NULL DEFAULT 0,
		next_fire_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, identifier),
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_scheduled_notifications_due
	ON scheduled_notifications(next_fire_at);

	CREATE TABLE IF NOT EXISTS notification_deliveries (
		user_id INTEGER NOT NULL,
		day TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, day),
		FOREIGN KEY(user_id) REFERENCES users(id)
	);
	`

	_, err := s.DB.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return s.migrateNotificationAttempts()
}

func (s *Store) migrateNotificationAttempts() error {
	_, err := s.DB.Exec(`ALTER TABLE scheduled_notifications ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`)
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return fmt.Errorf("failed to add attempts column: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.DB.Close()
}
