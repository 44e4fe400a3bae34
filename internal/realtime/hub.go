package realtime

import (
	"context"
	"sync"
	"time"

	"expensetracker/internal/logger"
)

const subscriberBuffer = 16

// Subscription is a live feed of events for one owner and collection.
// Close must be called to release it; it is safe to call more than once.
type Subscription struct {
	UserID     string
	Collection Collection

	events chan Event
	hub    *Hub
	once   sync.Once
}

// Events returns the channel events are delivered on. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes and closes the event channel.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub is the in-process event router. The zero value is not usable; use NewHub.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in one owner's collection. Subscribing to a
// closed hub returns a subscription whose channel is already closed.
func (h *Hub) Subscribe(userID string, collection Collection) *Subscription {
	s := &Subscription{
		UserID:     userID,
		Collection: collection,
		events:     make(chan Event, subscriberBuffer),
		hub:        h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.events)
		s.once.Do(func() {})
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish delivers e to every matching subscriber without blocking. A
// subscriber whose buffer is full misses the event; since events only
// trigger a snapshot re-read, a pending event already covers it.
func (h *Hub) Publish(_ context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.UserID != e.UserID || s.Collection != e.Collection {
			continue
		}
		select {
		case s.events <- e:
		default:
			logger.Named("realtime").Debugw("subscriber buffer full, coalescing event",
				"user_id", e.UserID, "collection", e.Collection)
		}
	}
	return nil
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later Subscribe calls get closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.events)
		delete(h.subs, s)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.events)
	}
}
