package model

import "time"

// ChatMessage is one message inside a conversation. Immutable once created;
// ids are compared to deduplicate socket- and REST-origin copies of the
// same message.
type ChatMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read,omitempty"`
}

// Contact is a conversation thread between a client and a professional.
// The backend is the source of truth; the client holds a read-through copy
// per open chat session.
type Contact struct {
	ID               string        `json:"_id"`
	ClientID         string        `json:"client_id"`
	ClientName       string        `json:"client_name"`
	ProfessionalID   string        `json:"professional_id"`
	ProfessionalName string        `json:"professional_name"`
	Status           string        `json:"status"`
	Messages         []ChatMessage `json:"messages"`
}

// Project is a service request published by a client.
type Project struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	CategoryID string `json:"category_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

// ContactStatusUpdate reports a conversation status change.
type ContactStatusUpdate struct {
	ContactID string `json:"contact_id"`
	Status    string `json:"status"`
}

// DeviceRegistration associates a push token with a device and session.
// Created once per login or token refresh; not retried indefinitely.
type DeviceRegistration struct {
	PushToken  string `json:"push_token"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	AuthToken  string `json:"-"`
}
