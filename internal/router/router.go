// Package router fans inbound socket events out to registered handlers.
// It carries no business logic of its own.
package router

import (
	"sync"

	"github.com/SrClauss/agapp-messaging/internal/event"
	"go.uber.org/zap"
)

// Handler receives one inbound event. Handlers run on the connection's
// read goroutine, one dispatch at a time; they must not block.
type Handler func(event.Inbound)

// Router dispatches each inbound event to every handler subscribed for
// its kind. Unknown kinds are dispatched like any other, so consumers
// decide what to ignore.
type Router struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	next   int
	logger *zap.Logger
}

type subscription struct {
	kind event.Kind // empty = all kinds
	fn   Handler
}

// New creates an empty router.
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Handle registers fn for events of the given kind; an empty kind
// subscribes to every event. Returns an unsubscribe function that is
// safe to call from inside a handler.
func (r *Router) Handle(kind event.Kind, fn Handler) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.subs[id] = &subscription{kind: kind, fn: fn}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Dispatch routes one event. The handler set is snapshotted first, so
// handlers may unsubscribe themselves (or others) mid-round without
// corrupting iteration. A panicking handler is recovered and logged;
// the remaining handlers still run.
func (r *Router) Dispatch(evt event.Inbound) {
	r.mu.RLock()
	matched := make([]Handler, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.kind == "" || sub.kind == evt.Kind {
			matched = append(matched, sub.fn)
		}
	}
	r.mu.RUnlock()

	for _, fn := range matched {
		r.invoke(fn, evt)
	}
}

func (r *Router) invoke(fn Handler, evt event.Inbound) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked",
				zap.String("kind", string(evt.Kind)),
				zap.Any("panic", rec),
			)
		}
	}()
	fn(evt)
}
