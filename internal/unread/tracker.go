// Package unread maintains the per-conversation unread index and the
// derived badge count, persisting a snapshot on every mutation.
package unread

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/SrClauss/agapp-messaging/internal/event"
	"github.com/SrClauss/agapp-messaging/internal/model"
	"github.com/SrClauss/agapp-messaging/internal/router"
	"github.com/SrClauss/agapp-messaging/internal/store"
	"go.uber.org/zap"
)

// Entry summarizes the unread state of one conversation.
type Entry struct {
	Count         int       `json:"count"`
	LastMessage   string    `json:"last_message"`
	LastSender    string    `json:"last_sender"`
	LastTimestamp time.Time `json:"last_timestamp"`
}

// Index maps conversation id to its unread entry. Treated as immutable:
// every mutation builds a fresh map that replaces the previous one, so
// readers never observe a half-updated structure.
type Index map[string]Entry

// Blobs is the durable snapshot storage the tracker writes through to.
type Blobs interface {
	GetBlob(key string) ([]byte, error)
	PutBlob(key string, value []byte) error
}

// BadgeSink receives the externally visible total unread count.
type BadgeSink interface {
	SetBadgeCount(n int)
}

// Tracker is the sole writer of the unread index. The in-memory index
// is authoritative; the persisted copy is best-effort and only read at
// cold start.
type Tracker struct {
	localUserID string
	blobs       Blobs
	badge       BadgeSink
	logger      *zap.Logger

	// mu sequences mutations so a second one cannot race the first's
	// write-through; the index itself is replaced wholesale, never
	// mutated in place.
	mu    sync.RWMutex
	index Index
}

// NewTracker creates a tracker and loads the persisted index. A read or
// decode failure yields an empty index, never an error.
func NewTracker(localUserID string, blobs Blobs, badge BadgeSink, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		localUserID: localUserID,
		blobs:       blobs,
		badge:       badge,
		logger:      logger,
		index:       Index{},
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	data, err := t.blobs.GetBlob(store.UnreadIndexKey)
	if err != nil {
		t.logger.Warn("failed to read unread index, starting empty", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		t.logger.Warn("failed to decode unread index, starting empty", zap.Error(err))
		return
	}
	t.index = idx
	t.pushBadge()
}

// Attach subscribes the tracker to chat events on the router. Returns
// an unsubscribe function.
func (t *Tracker) Attach(r *router.Router) func() {
	unsubMsg := r.Handle(event.KindNewMessage, t.onEvent)
	unsubContact := r.Handle(event.KindNewContact, t.onEvent)
	return func() {
		unsubMsg()
		unsubContact()
	}
}

func (t *Tracker) onEvent(evt event.Inbound) {
	if evt.Message == nil || evt.ContactID == "" {
		return
	}
	t.OnInboundMessage(evt.ContactID, *evt.Message)
}

// OnInboundMessage records one inbound message. Messages authored by
// the local user are ignored entirely: an echo of our own send must not
// count against us.
func (t *Tracker) OnInboundMessage(contactID string, msg model.ChatMessage) {
	if msg.SenderID == t.localUserID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.index.clone()
	entry := next[contactID]
	entry.Count++
	entry.LastMessage = msg.Content
	entry.LastSender = msg.SenderID
	entry.LastTimestamp = msg.CreatedAt
	next[contactID] = entry

	t.replace(next)
}

// MarkAsRead removes the conversation's entry and persists the change
// before returning, so the badge updates synchronously with the UI
// action that triggered it.
func (t *Tracker) MarkAsRead(contactID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[contactID]; !ok {
		return
	}
	next := t.index.clone()
	delete(next, contactID)
	t.replace(next)
}

// CountFor returns the unread count for one conversation.
func (t *Tracker) CountFor(contactID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index[contactID].Count
}

// TotalUnread returns the sum of all entry counts. This is the number
// shown on the OS badge.
func (t *Tracker) TotalUnread() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total()
}

func (t *Tracker) total() int {
	total := 0
	for _, e := range t.index {
		total += e.Count
	}
	return total
}

// Snapshot returns a copy of the current index.
func (t *Tracker) Snapshot() Index {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.clone()
}

// replace installs the new snapshot, persists it write-through and
// pushes the derived badge count. Persistence failures are logged and
// swallowed; the in-memory index stays authoritative.
func (t *Tracker) replace(next Index) {
	t.index = next

	data, err := json.Marshal(next)
	if err != nil {
		t.logger.Error("failed to encode unread index", zap.Error(err))
	} else if err := t.blobs.PutBlob(store.UnreadIndexKey, data); err != nil {
		t.logger.Warn("failed to persist unread index", zap.Error(err))
	}

	t.pushBadge()
}

func (t *Tracker) pushBadge() {
	if t.badge != nil {
		t.badge.SetBadgeCount(t.total())
	}
}

func (idx Index) clone() Index {
	next := make(Index, len(idx)+1)
	for k, v := range idx {
		next[k] = v
	}
	return next
}
