// Package event defines the wire protocol spoken over the persistent
// marketplace socket: outbound frames and the closed set of inbound
// event kinds.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/SrClauss/agapp-messaging/internal/model"
)

// Kind discriminates inbound frames by their wire "type" field.
type Kind string

const (
	KindNewMessage    Kind = "new_message"
	KindNewContact    Kind = "new_contact"
	KindNewProject    Kind = "new_project"
	KindContactUpdate Kind = "contact_update"

	// KindUnknown marks frames whose type the client does not understand.
	// They are routed, not dropped, so consumers can opt in to new server
	// kinds without a protocol change here.
	KindUnknown Kind = "unknown"
)

// Inbound is one parsed frame. Exactly one payload field is set for the
// known kinds; unknown kinds carry the raw frame instead.
type Inbound struct {
	Kind      Kind
	ContactID string

	Message       *model.ChatMessage
	Project       *model.Project
	ContactUpdate *model.ContactStatusUpdate

	// Raw holds the original frame for KindUnknown.
	Raw json.RawMessage
}

type envelope struct {
	Type      string                     `json:"type"`
	ContactID string                     `json:"contact_id"`
	Message   *model.ChatMessage         `json:"message"`
	Project   *model.Project             `json:"project"`
	Contact   *model.ContactStatusUpdate `json:"contact"`
}

// Parse decodes one frame into an Inbound event. Frames with an
// unrecognized type field parse successfully as KindUnknown; only
// malformed JSON or a missing type is an error.
func Parse(data []byte) (*Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("frame missing type field")
	}

	switch Kind(env.Type) {
	case KindNewMessage, KindNewContact:
		if env.Message == nil {
			return nil, fmt.Errorf("%s frame missing message", env.Type)
		}
		return &Inbound{Kind: Kind(env.Type), ContactID: env.ContactID, Message: env.Message}, nil
	case KindNewProject:
		if env.Project == nil {
			return nil, fmt.Errorf("new_project frame missing project")
		}
		return &Inbound{Kind: KindNewProject, Project: env.Project}, nil
	case KindContactUpdate:
		if env.Contact == nil {
			return nil, fmt.Errorf("contact_update frame missing contact")
		}
		return &Inbound{Kind: KindContactUpdate, ContactID: env.Contact.ContactID, ContactUpdate: env.Contact}, nil
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return &Inbound{Kind: KindUnknown, Raw: raw}, nil
	}
}

// SubscribeProjects is the control frame sent once after every successful open.
type SubscribeProjects struct {
	Type string `json:"type"`
}

// NewSubscribeProjects builds the subscribe_projects control frame.
func NewSubscribeProjects() SubscribeProjects {
	return SubscribeProjects{Type: "subscribe_projects"}
}

// OutboundChat is the frame for sending a chat message over the socket.
type OutboundChat struct {
	Type      string `json:"type"`
	ContactID string `json:"contact_id"`
	Content   string `json:"content"`
}

// NewOutboundChat builds a new_message frame for the given conversation.
func NewOutboundChat(contactID, content string) OutboundChat {
	return OutboundChat{Type: "new_message", ContactID: contactID, Content: content}
}
