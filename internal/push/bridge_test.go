package push

import (
	"context"
	"errors"
	"testing"

	"github.com/SrClauss/agapp-messaging/internal/event"
	"github.com/SrClauss/agapp-messaging/internal/model"
	"github.com/SrClauss/agapp-messaging/internal/router"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) Token(context.Context) (string, error) { return f.token, f.err }

type fakeNotifier struct {
	channels int
	shown    []Notification
	err      error
}

func (f *fakeNotifier) EnsureChannels() error { f.channels++; return nil }
func (f *fakeNotifier) Display(n Notification) error {
	if f.err != nil {
		return f.err
	}
	f.shown = append(f.shown, n)
	return nil
}

type fakeRegistrar struct {
	regs []model.DeviceRegistration
	err  error
}

func (f *fakeRegistrar) GetContactDetails(context.Context, string) (*model.Contact, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRegistrar) SendContactMessage(context.Context, string, string) error {
	return errors.New("not implemented")
}
func (f *fakeRegistrar) MarkContactMessagesAsRead(context.Context, string) error {
	return errors.New("not implemented")
}
func (f *fakeRegistrar) RegisterPushToken(_ context.Context, reg model.DeviceRegistration) error {
	if f.err != nil {
		return f.err
	}
	f.regs = append(f.regs, reg)
	return nil
}

type fakeOpener struct {
	opened []string
}

func (f *fakeOpener) OpenConversation(contactID string) { f.opened = append(f.opened, contactID) }

func newBridge(api *fakeRegistrar, tokens *fakeTokens, notifier *fakeNotifier, opener *fakeOpener) *Bridge {
	return NewBridge("client-001", "Pixel 8", api, tokens, notifier, opener, nil)
}

func TestRegisterToken(t *testing.T) {
	api := &fakeRegistrar{}
	b := newBridge(api, &fakeTokens{token: "expo-tok-1"}, &fakeNotifier{}, nil)

	if !b.RegisterToken(context.Background(), "auth-tok") {
		t.Fatal("RegisterToken() = false, want true")
	}
	if len(api.regs) != 1 {
		t.Fatalf("registrations = %d, want 1", len(api.regs))
	}
	reg := api.regs[0]
	if reg.PushToken != "expo-tok-1" || reg.DeviceName != "Pixel 8" || reg.AuthToken != "auth-tok" {
		t.Errorf("registration = %+v", reg)
	}
	if reg.DeviceID == "" {
		t.Error("DeviceID empty, want generated id")
	}
}

func TestRegisterTokenUnavailable(t *testing.T) {
	api := &fakeRegistrar{}

	// Simulator or denied permission: empty token, no error.
	b := newBridge(api, &fakeTokens{token: ""}, &fakeNotifier{}, nil)
	if b.RegisterToken(context.Background(), "auth-tok") {
		t.Error("RegisterToken() = true without a token")
	}
	if len(api.regs) != 0 {
		t.Error("registration attempted without a token")
	}
}

func TestRegisterTokenBackendFailure(t *testing.T) {
	api := &fakeRegistrar{err: errors.New("500")}
	b := newBridge(api, &fakeTokens{token: "tok"}, &fakeNotifier{}, nil)

	if b.RegisterToken(context.Background(), "auth-tok") {
		t.Error("RegisterToken() = true, want boolean failure")
	}
}

func TestChannelsEnsuredOnConstruction(t *testing.T) {
	n := &fakeNotifier{}
	newBridge(&fakeRegistrar{}, &fakeTokens{}, n, nil)
	if n.channels != 1 {
		t.Errorf("EnsureChannels called %d times, want 1", n.channels)
	}
}

func TestOwnSenderSuppressed(t *testing.T) {
	n := &fakeNotifier{}
	b := newBridge(&fakeRegistrar{}, &fakeTokens{}, n, nil)

	msg := model.ChatMessage{ID: "m1", SenderID: "client-001", Content: "mine"}
	b.OnInboundEvent(event.Inbound{Kind: event.KindNewMessage, ContactID: "c1", Message: &msg})

	if len(n.shown) != 0 {
		t.Errorf("notifications = %d, want 0 for own message", len(n.shown))
	}
}

func TestOtherSenderNotified(t *testing.T) {
	n := &fakeNotifier{}
	b := newBridge(&fakeRegistrar{}, &fakeTokens{}, n, nil)

	msg := model.ChatMessage{ID: "m1", SenderID: "prof-456", Content: "Olá!"}
	b.OnInboundEvent(event.Inbound{Kind: event.KindNewMessage, ContactID: "contact-123", Message: &msg})

	if len(n.shown) != 1 {
		t.Fatalf("notifications = %d, want 1", len(n.shown))
	}
	got := n.shown[0]
	if got.ChannelID != ChannelMessages {
		t.Errorf("channel = %q, want messages", got.ChannelID)
	}
	if got.Data["type"] != "new_message" || got.Data["contact_id"] != "contact-123" {
		t.Errorf("payload = %v", got.Data)
	}
}

func TestNonChatKindsIgnored(t *testing.T) {
	n := &fakeNotifier{}
	b := newBridge(&fakeRegistrar{}, &fakeTokens{}, n, nil)

	b.OnInboundEvent(event.Inbound{Kind: event.KindNewProject})
	b.OnInboundEvent(event.Inbound{Kind: event.KindUnknown})

	if len(n.shown) != 0 {
		t.Errorf("notifications = %d, want 0", len(n.shown))
	}
}

func TestHandleTap(t *testing.T) {
	opener := &fakeOpener{}
	b := newBridge(&fakeRegistrar{}, &fakeTokens{}, &fakeNotifier{}, opener)

	b.HandleTap(map[string]string{"type": "new_message", "contact_id": "contact-123"})
	if len(opener.opened) != 1 || opener.opened[0] != "contact-123" {
		t.Errorf("opened = %v", opener.opened)
	}

	// Payloads without a contact_id are ignored, never a navigation error.
	b.HandleTap(map[string]string{"type": "new_message"})
	b.HandleTap(nil)
	if len(opener.opened) != 1 {
		t.Errorf("opened = %v, want only the valid tap", opener.opened)
	}
}

func TestAttachRoutesChatKinds(t *testing.T) {
	n := &fakeNotifier{}
	b := newBridge(&fakeRegistrar{}, &fakeTokens{}, n, nil)
	r := router.New(nil)
	unsub := b.Attach(r)

	msg := model.ChatMessage{ID: "m1", SenderID: "prof-456", Content: "hi"}
	r.Dispatch(event.Inbound{Kind: event.KindNewMessage, ContactID: "c1", Message: &msg})
	r.Dispatch(event.Inbound{Kind: event.KindNewContact, ContactID: "c2", Message: &msg})

	if len(n.shown) != 2 {
		t.Errorf("notifications = %d, want 2", len(n.shown))
	}

	unsub()
	r.Dispatch(event.Inbound{Kind: event.KindNewMessage, ContactID: "c1", Message: &msg})
	if len(n.shown) != 2 {
		t.Errorf("notifications after unsubscribe = %d, want 2", len(n.shown))
	}
}
