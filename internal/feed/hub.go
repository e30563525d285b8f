// Package feed broadcasts record-table change events to active sessions.
package feed

import (
	"sync"
	"time"
)

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event describes one mutation of the record table. Consumers do not diff
// against it; any event means "reload the whole snapshot".
type Event struct {
	Action   Action    `json:"action"`
	RecordID string    `json:"recordId"`
	At       time.Time `json:"at"`
}

// Subscription is the handle returned by Subscribe. Callers must call
// Unsubscribe on teardown.
type Subscription struct {
	C   <-chan Event
	hub *Hub
	ch  chan Event
}

func (s *Subscription) Unsubscribe() {
	s.hub.unsubscribe(s.ch)
}

// Hub fans mutation events out to every subscribed session.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Subscribe() *Subscription {
	// Buffer of one: every event triggers the same full reload, so events
	// queued behind an unconsumed one carry no extra information.
	ch := make(chan Event, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return &Subscription{C: ch, hub: h, ch: ch}
	}
	h.subs[ch] = struct{}{}
	return &Subscription{C: ch, hub: h, ch: ch}
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish delivers event to every subscriber without blocking. A subscriber
// with a pending event is skipped: the reload its pending event triggers
// starts after this publish, so it will observe this mutation too.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close tears down every subscription. Further publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
