package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SrClauss/agapp-messaging/internal/push"
	"github.com/SrClauss/agapp-messaging/internal/router"
	"github.com/SrClauss/agapp-messaging/internal/store"
	"github.com/SrClauss/agapp-messaging/internal/unread"
	"github.com/SrClauss/agapp-messaging/internal/ws"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// pipeConn feeds scripted frames into the manager's read loop.
type pipeConn struct {
	in   chan []byte
	done chan struct{}
	once sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{in: make(chan []byte, 8), done: make(chan struct{})}
}

func (c *pipeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.in:
		return websocket.TextMessage, f, nil
	case <-c.done:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *pipeConn) WriteMessage(int, []byte) error   { return nil }
func (c *pipeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	shown []push.Notification
}

func (n *recordingNotifier) EnsureChannels() error { return nil }
func (n *recordingNotifier) Display(notif push.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, notif)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.shown)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestInboundPipeline runs one frame through the full chain: socket
// read loop, router, unread tracker with its persisted snapshot, and
// the notification bridge.
func TestInboundPipeline(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "agapp-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	db, err := store.Open(filepath.Join(tmpDir, "agapp.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	r := router.New(nil)
	tracker := unread.NewTracker("client-001", db, &logBadge{logger: zap.NewNop()}, nil)
	tracker.Attach(r)

	notifier := &recordingNotifier{}
	bridge := push.NewBridge("client-001", "test-device", nil, envTokenSource{}, notifier, nil, nil)
	bridge.Attach(r)

	conn := newPipeConn()
	mgr := ws.NewManager(ws.Options{
		APIBaseURL: "http://api.test",
		Dial:       func(string) (ws.Conn, error) { return conn, nil },
	}, r, nil)
	if err := mgr.Connect("client-001", "tok"); err != nil {
		t.Fatal(err)
	}
	defer mgr.Disconnect()

	// A message from the professional raises the count and a notification.
	conn.in <- []byte(`{"type":"new_message","contact_id":"contact-123","message":{"id":"m1","sender_id":"prof-456","content":"Olá!"}}`)
	waitFor(t, "unread count", func() bool { return tracker.CountFor("contact-123") == 1 })
	waitFor(t, "notification", func() bool { return notifier.count() == 1 })

	// An echo of the client's own message changes nothing.
	conn.in <- []byte(`{"type":"new_message","contact_id":"contact-123","message":{"id":"m2","sender_id":"client-001","content":"resposta"}}`)
	time.Sleep(20 * time.Millisecond)
	if got := tracker.CountFor("contact-123"); got != 1 {
		t.Errorf("count after own echo = %d, want 1", got)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications after own echo = %d, want 1", notifier.count())
	}

	// The snapshot survives a cold start.
	restarted := unread.NewTracker("client-001", db, nil, nil)
	if got := restarted.CountFor("contact-123"); got != 1 {
		t.Errorf("count after reload = %d, want 1", got)
	}
}
