// Package chat holds the per-conversation controller: an authoritative
// REST-backed message log, optimistic sending, and reconciliation of
// socket-delivered messages against server truth.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/SrClauss/agapp-messaging/internal/event"
	"github.com/SrClauss/agapp-messaging/internal/model"
	"github.com/SrClauss/agapp-messaging/internal/rest"
	"github.com/SrClauss/agapp-messaging/internal/router"
	"github.com/SrClauss/agapp-messaging/internal/unread"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned by Send for blank or whitespace-only drafts.
var ErrEmptyMessage = errors.New("message is empty")

// ChangeFunc is invoked after the message log changes, so the view can
// re-render and scroll to the newest message.
type ChangeFunc func()

// Session is a per-conversation controller, bound to one contact id
// while its view is active.
type Session struct {
	contactID   string
	localUserID string
	api         rest.Client
	router      *router.Router
	tracker     *unread.Tracker
	logger      *zap.Logger
	onChange    ChangeFunc

	mu       sync.Mutex
	messages []model.ChatMessage
	draft    string
	unsub    func()
}

// NewSession creates a controller for the given conversation. tracker
// and onChange may be nil.
func NewSession(contactID, localUserID string, api rest.Client, r *router.Router, tracker *unread.Tracker, onChange ChangeFunc, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		contactID:   contactID,
		localUserID: localUserID,
		api:         api,
		router:      r,
		tracker:     tracker,
		logger:      logger,
		onChange:    onChange,
	}
}

// Activate loads the conversation and wires the session to the socket
// stream. The REST fetch is the source of truth and replaces any local
// state; marking as read happens regardless of socket state.
func (s *Session) Activate(ctx context.Context) error {
	contact, err := s.api.GetContactDetails(ctx, s.contactID)
	if err != nil {
		return fmt.Errorf("activate %s: %w", s.contactID, err)
	}

	s.mu.Lock()
	s.messages = append([]model.ChatMessage(nil), contact.Messages...)
	if s.unsub == nil && s.router != nil {
		s.unsub = s.router.Handle(event.KindNewMessage, s.onSocketMessage)
	}
	s.mu.Unlock()
	s.notify()

	// Read acknowledgement is user-visible (badge), so the local index
	// is cleared synchronously; the backend call failing is tolerable.
	if err := s.api.MarkContactMessagesAsRead(ctx, s.contactID); err != nil {
		s.logger.Warn("failed to mark conversation as read", zap.String("contact_id", s.contactID), zap.Error(err))
	}
	if s.tracker != nil {
		s.tracker.MarkAsRead(s.contactID)
	}
	return nil
}

// Deactivate unsubscribes from the socket stream and drops the local
// log. In-flight REST calls are not cancelled; their results are
// discarded when they land.
func (s *Session) Deactivate() {
	s.mu.Lock()
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.messages = nil
	s.draft = ""
	s.mu.Unlock()
}

func (s *Session) onSocketMessage(evt event.Inbound) {
	if evt.ContactID != s.contactID || evt.Message == nil {
		return
	}

	s.mu.Lock()
	appended := false
	if !containsID(s.messages, evt.Message.ID) {
		s.messages = append(s.messages, *evt.Message)
		appended = true
	}
	s.mu.Unlock()

	if appended {
		s.notify()
	}
}

// SetDraft replaces the composer text.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Draft returns the current composer text.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Send posts the current draft. Blank drafts are rejected without a
// network call. The draft is cleared optimistically; on failure it is
// restored so the user can retry. On success the conversation is
// reconciled against server truth instead of trusting the socket echo —
// no optimistic append is ever made.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	text := strings.TrimSpace(s.draft)
	if text == "" {
		s.mu.Unlock()
		return ErrEmptyMessage
	}
	original := s.draft
	s.draft = ""
	s.mu.Unlock()

	if err := s.api.SendContactMessage(ctx, s.contactID, text); err != nil {
		s.mu.Lock()
		s.draft = original
		s.mu.Unlock()
		return fmt.Errorf("send to %s: %w", s.contactID, err)
	}

	if err := s.reconcile(ctx); err != nil {
		// The send itself succeeded; stale local state will catch up on
		// the next socket event or refetch.
		s.logger.Warn("post-send reconcile failed", zap.String("contact_id", s.contactID), zap.Error(err))
	}
	return nil
}

// reconcile replaces the local log with the server's copy. Runs after
// every successful send, so the authoritative order is always the
// server's; ids arriving via both socket and refetch collapse to one.
func (s *Session) reconcile(ctx context.Context) error {
	contact, err := s.api.GetContactDetails(ctx, s.contactID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.messages = append([]model.ChatMessage(nil), contact.Messages...)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Messages returns a copy of the current log in arrival order.
func (s *Session) Messages() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatMessage(nil), s.messages...)
}

// IsMine reports whether the message was authored by the local user.
// Display-only (bubble styling); unrelated to the unread index.
func (s *Session) IsMine(msg model.ChatMessage) bool {
	return msg.SenderID == s.localUserID
}

// ContactID returns the conversation this session is bound to.
func (s *Session) ContactID() string {
	return s.contactID
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func containsID(msgs []model.ChatMessage, id string) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}
