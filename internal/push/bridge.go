// Package push bridges inbound socket events to OS-level notifications
// and registers the device's push token with the backend.
package push

import (
	"context"

	"github.com/SrClauss/agapp-messaging/internal/event"
	"github.com/SrClauss/agapp-messaging/internal/model"
	"github.com/SrClauss/agapp-messaging/internal/rest"
	"github.com/SrClauss/agapp-messaging/internal/router"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification channel ids, created idempotently at app start.
const (
	ChannelMessages = "messages"
	ChannelDefault  = "default"
)

// TokenSource obtains the platform push token. Implementations return
// an empty token (and no error) when the device cannot receive pushes:
// simulators, or the user denying the permission prompt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Notifier is the platform notification surface.
type Notifier interface {
	// EnsureChannels creates the notification channels if missing.
	// Must be safe to call repeatedly.
	EnsureChannels() error
	// Display surfaces one local notification.
	Display(n Notification) error
}

// Notification is one OS-level notification and its tap-through payload.
type Notification struct {
	ChannelID string
	Title     string
	Body      string
	Data      map[string]string
}

// ConversationOpener resolves a notification tap into an open chat view.
type ConversationOpener interface {
	OpenConversation(contactID string)
}

// Bridge decides which inbound events surface as notifications and
// resolves tap-throughs back into conversations.
type Bridge struct {
	localUserID string
	deviceName  string
	api         rest.Client
	tokens      TokenSource
	notifier    Notifier
	opener      ConversationOpener
	logger      *zap.Logger
}

// NewBridge creates a bridge and ensures the notification channels
// exist. A channel-setup failure is logged, not fatal: delivery then
// degrades to socket-only while the app is foregrounded.
func NewBridge(localUserID, deviceName string, api rest.Client, tokens TokenSource, notifier Notifier, opener ConversationOpener, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		localUserID: localUserID,
		deviceName:  deviceName,
		api:         api,
		tokens:      tokens,
		notifier:    notifier,
		opener:      opener,
		logger:      logger,
	}
	if notifier != nil {
		if err := notifier.EnsureChannels(); err != nil {
			logger.Warn("failed to set up notification channels", zap.Error(err))
		}
	}
	return b
}

// RegisterToken obtains the platform push token and forwards it to the
// backend tagged with the session's auth token. Returns false — never
// an error — when the device has no token or registration fails.
func (b *Bridge) RegisterToken(ctx context.Context, authToken string) bool {
	tok, err := b.tokens.Token(ctx)
	if err != nil {
		b.logger.Warn("failed to obtain push token", zap.Error(err))
		return false
	}
	if tok == "" {
		b.logger.Info("push token unavailable, skipping registration")
		return false
	}

	reg := model.DeviceRegistration{
		PushToken:  tok,
		DeviceID:   uuid.NewString(),
		DeviceName: b.deviceName,
		AuthToken:  authToken,
	}
	if err := b.api.RegisterPushToken(ctx, reg); err != nil {
		b.logger.Warn("push token registration failed", zap.Error(err))
		return false
	}
	b.logger.Info("push token registered", zap.String("device_name", b.deviceName))
	return true
}

// Attach subscribes the bridge to chat events on the router. Returns an
// unsubscribe function.
func (b *Bridge) Attach(r *router.Router) func() {
	unsubMsg := r.Handle(event.KindNewMessage, b.OnInboundEvent)
	unsubContact := r.Handle(event.KindNewContact, b.OnInboundEvent)
	return func() {
		unsubMsg()
		unsubContact()
	}
}

// OnInboundEvent surfaces a local notification for chat events from
// other participants. Events echoing the local user's own messages are
// suppressed — the unread tracker ignores them too, so count and alert
// stay consistent.
func (b *Bridge) OnInboundEvent(evt event.Inbound) {
	if evt.Kind != event.KindNewMessage && evt.Kind != event.KindNewContact {
		return
	}
	if evt.Message == nil || evt.ContactID == "" {
		return
	}
	if evt.Message.SenderID == b.localUserID {
		return
	}
	if b.notifier == nil {
		return
	}

	title := "Nova mensagem"
	if evt.Kind == event.KindNewContact {
		title = "Novo contato"
	}
	err := b.notifier.Display(Notification{
		ChannelID: ChannelMessages,
		Title:     title,
		Body:      evt.Message.Content,
		Data: map[string]string{
			"type":       string(evt.Kind),
			"contact_id": evt.ContactID,
		},
	})
	if err != nil {
		b.logger.Warn("failed to display notification", zap.String("contact_id", evt.ContactID), zap.Error(err))
	}
}

// HandleTap resolves a delivered notification's payload into an open
// conversation. Payloads lacking a contact_id are ignored rather than
// causing a navigation error.
func (b *Bridge) HandleTap(data map[string]string) {
	contactID := data["contact_id"]
	if contactID == "" {
		b.logger.Warn("notification tap without contact_id, ignoring")
		return
	}
	if b.opener != nil {
		b.opener.OpenConversation(contactID)
	}
}
