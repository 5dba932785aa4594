package store

import (
	"database/sql"
	"time"
)

// Fixed blob keys. Each holds one JSON-serialized snapshot that is
// replaced wholesale on every write.
const (
	UnreadIndexKey = "unread_index"
	AuthSessionKey = "auth_session"
)

// PutBlob stores a snapshot under the given key, replacing any prior value.
func (db *DB) PutBlob(key string, value []byte) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO blobs (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetBlob returns the snapshot stored under key, or nil if absent.
func (db *DB) GetBlob(key string) ([]byte, error) {
	var value []byte
	err := db.QueryRow(`SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// DeleteBlob removes the snapshot stored under key, if any.
func (db *DB) DeleteBlob(key string) error {
	_, err := db.Exec(`DELETE FROM blobs WHERE key = ?`, key)
	return err
}
