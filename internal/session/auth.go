package session

import (
	"encoding/json"
	"fmt"

	"github.com/SrClauss/agapp-messaging/internal/store"
)

// Auth is the persisted authenticated session: who is logged in, with
// which token, acting in which role. Written and read atomically as one
// JSON snapshot under a fixed storage key.
type Auth struct {
	Token      string `json:"token"`
	UserID     string `json:"user_id"`
	ActiveRole string `json:"active_role"` // "client" or "professional"
}

// SaveAuth persists the session snapshot.
func SaveAuth(db *store.DB, a *Auth) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode auth session: %w", err)
	}
	if err := db.PutBlob(store.AuthSessionKey, data); err != nil {
		return fmt.Errorf("persist auth session: %w", err)
	}
	return nil
}

// LoadAuth returns the persisted session, or nil if none is stored.
func LoadAuth(db *store.DB) (*Auth, error) {
	data, err := db.GetBlob(store.AuthSessionKey)
	if err != nil {
		return nil, fmt.Errorf("read auth session: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var a Auth
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode auth session: %w", err)
	}
	return &a, nil
}

// ClearAuth removes the persisted session (logout).
func ClearAuth(db *store.DB) error {
	return db.DeleteBlob(store.AuthSessionKey)
}
