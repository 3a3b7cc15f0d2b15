package store

import (
	"database/sql"
	"fmt"
)

// Blob kinds used by the reminder engine. Each kind maps a key to one JSON
// document, replacing it wholesale on write.
const (
	BlobKindReminderState  = "reminder_state"
	BlobKindAnalytics      = "reminder_analytics"
	BlobKindGlobalSettings = "global_settings"
)

// GetBlob returns the stored JSON document for (kind, key), or nil when absent
func (s *Store) GetBlob(kind, key string) ([]byte, error) {
	var value []byte
	err := s.DB.QueryRow(
		`SELECT value FROM reminder_blobs WHERE kind = ? AND key = ?`, kind, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s/%s: %w", kind, key, err)
	}
	return value, nil
}

// SetBlob stores value for (kind, key), replacing any previous document
func (s *Store) SetBlob(kind, key string, value []byte) error {
	_, err := s.DB.Exec(
		`INSERT INTO reminder_blobs (kind, key, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(kind, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		kind, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set blob %s/%s: %w", kind, key, err)
	}
	return nil
}

// DeleteBlob removes the document for (kind, key) if it exists
func (s *Store) DeleteBlob(kind, key string) error {
	_, err := s.DB.Exec(`DELETE FROM reminder_blobs WHERE kind = ? AND key = ?`, kind, key)
	if err != nil {
		return fmt.Errorf("failed to delete blob %s/%s: %w", kind, key, err)
	}
	return nil
}

// ListBlobKeys returns all keys stored under kind with the given prefix
func (s *Store) ListBlobKeys(kind, prefix string) ([]string, error) {
	rows, err := s.DB.Query(
		`SELECT key FROM reminder_blobs WHERE kind = ? AND key LIKE ? ORDER BY key`,
		kind, prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list blob keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan blob key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
