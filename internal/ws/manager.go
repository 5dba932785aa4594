// Package ws owns the persistent duplex connection to the marketplace
// backend: dialing, capped exponential-backoff reconnection, outbound
// frames and fan-out of parsed inbound events.
package ws

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/SrClauss/agapp-messaging/internal/event"
	"github.com/SrClauss/agapp-messaging/internal/router"
	"github.com/SrClauss/agapp-messaging/internal/status"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Conn is the subset of a websocket connection the manager uses.
// *websocket.Conn satisfies it; tests substitute scripted connections.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens one connection to the given ws(s) URL.
type DialFunc func(rawURL string) (Conn, error)

func gorillaDial(rawURL string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options tunes the manager. Zero values fall back to the backend's
// expectations: 2s backoff base, 5 attempts, gorilla dialer.
type Options struct {
	APIBaseURL  string
	BaseDelay   time.Duration
	MaxAttempts int
	Dial        DialFunc
}

// Manager owns at most one open connection per authenticated session.
type Manager struct {
	opts    Options
	router  *router.Router
	machine *status.Machine
	logger  *zap.Logger

	mu          sync.Mutex
	conn        Conn
	userID      string
	token       string
	attempts    int
	intentional bool
	retry       *time.Timer
}

// NewManager creates a manager dispatching parsed events to r.
func NewManager(opts Options, r *router.Router, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Dial == nil {
		opts.Dial = gorillaDial
	}
	m := &Manager{
		opts:   opts,
		router: r,
		logger: logger,
	}
	m.machine = status.NewMachine(func(from, to status.State) {
		logger.Info("connection state changed",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	})
	return m
}

// State returns the current connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// IsConnected reports whether the connection is open.
func (m *Manager) IsConnected() bool {
	return m.machine.Current() == status.Open
}

// DeriveURL rewrites the HTTP(S) API base to its WS(S) equivalent and
// appends the per-user socket path with the token as a query parameter.
func DeriveURL(apiBase, userID, token string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("api base url has unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + userID
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect opens the connection for the given session. A call while the
// connection is already open for the same session is a no-op, not a
// reconnection. On success the attempt counter resets and the
// subscribe_projects control frame is sent.
func (m *Manager) Connect(userID, authToken string) error {
	m.mu.Lock()
	switch m.machine.Current() {
	case status.Open:
		if m.userID == userID {
			m.mu.Unlock()
			return nil
		}
		// Session changed underneath us: drop the old connection first.
		m.teardownLocked()
	case status.Connecting:
		m.mu.Unlock()
		return fmt.Errorf("connect already in progress")
	}

	if m.retry != nil {
		// An explicit connect supersedes any pending backoff timer.
		m.retry.Stop()
		m.retry = nil
	}
	m.userID = userID
	m.token = authToken
	m.intentional = false
	if err := m.machine.Transition(status.Connecting); err != nil {
		m.mu.Unlock()
		return err
	}

	wsURL, err := DeriveURL(m.opts.APIBaseURL, userID, authToken)
	if err != nil {
		_ = m.machine.Transition(status.Closed)
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	c, err := m.opts.Dial(wsURL)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.intentional {
		if c != nil {
			_ = c.Close()
		}
		return nil
	}
	if err != nil {
		m.logger.Warn("connection failed", zap.Error(err))
		_ = m.machine.Transition(status.Reconnecting)
		m.scheduleReconnectLocked()
		return err
	}

	m.conn = c
	m.attempts = 0
	_ = m.machine.Transition(status.Open)
	m.sendLocked(event.NewSubscribeProjects())
	go m.readLoop(c)
	return nil
}

// Disconnect closes the connection intentionally: the pending reconnect
// timer (if any) is cancelled, session identity and attempt counter are
// cleared, and no reconnection is scheduled afterwards.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intentional = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.userID = ""
	m.token = ""
	m.attempts = 0

	if m.conn != nil {
		_ = m.machine.Transition(status.Closing)
		_ = m.conn.Close()
		// The read loop observes the close and finishes the transition.
		return
	}
	if cur := m.machine.Current(); cur != status.Closed {
		_ = m.machine.Transition(status.Closed)
	}
}

// teardownLocked drops the current connection without scheduling a
// reconnect. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	if m.conn != nil {
		c := m.conn
		m.conn = nil // the stale read loop sees the swap and exits quietly
		_ = c.Close()
	}
	_ = m.machine.Transition(status.Closing)
	_ = m.machine.Transition(status.Closed)
}

// Send serializes v and writes it while the connection is open. When it
// is not, the frame is dropped and logged: callers must not assume
// delivery.
func (m *Manager) Send(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendLocked(v)
}

// SendChatMessage sends a new_message frame for the given conversation.
func (m *Manager) SendChatMessage(contactID, content string) {
	m.Send(event.NewOutboundChat(contactID, content))
}

func (m *Manager) sendLocked(v any) {
	if m.conn == nil || m.machine.Current() != status.Open {
		m.logger.Warn("dropping outbound frame, connection not open",
			zap.String("state", string(m.machine.Current())))
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("failed to encode outbound frame", zap.Error(err))
		return
	}
	_ = m.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Warn("failed to write frame", zap.Error(err))
	}
}

// readLoop parses each inbound frame into one event and dispatches it.
// Malformed frames are dropped and logged; later frames are unaffected.
func (m *Manager) readLoop(c Conn) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			m.handleClose(c, err)
			return
		}
		evt, perr := event.Parse(data)
		if perr != nil {
			m.logger.Warn("dropping malformed frame", zap.Error(perr))
			continue
		}
		m.router.Dispatch(*evt)
	}
}

func (m *Manager) handleClose(c Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != c {
		// A newer connection replaced this one.
		return
	}
	m.conn = nil

	if m.intentional {
		_ = m.machine.Transition(status.Closed)
		return
	}

	m.logger.Warn("connection lost", zap.Error(err))
	_ = m.machine.Transition(status.Reconnecting)
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer for the next attempt,
// or gives up once the cap is reached. Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.opts.MaxAttempts {
		m.logger.Warn("reconnect attempts exhausted, staying closed",
			zap.Int("attempts", m.attempts))
		_ = m.machine.Transition(status.Closed)
		return
	}

	delay := backoffDelay(m.opts.BaseDelay, m.attempts)
	m.logger.Info("scheduling reconnect",
		zap.Int("attempt", m.attempts),
		zap.Duration("delay", delay),
	)
	m.attempts++
	m.retry = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.intentional {
			m.mu.Unlock()
			return
		}
		userID, token := m.userID, m.token
		m.mu.Unlock()
		_ = m.Connect(userID, token)
	})
}

// backoffDelay returns base * 2^attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}
