// Package realtime fans document change events out to live subscribers.
// Subscribers treat every event as a cue to re-read a full snapshot; events
// carry no document payload.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Collection names a document collection that can be subscribed to.
type Collection string

const (
	Wallets      Collection = "wallets"
	Transactions Collection = "transactions"
	Goals        Collection = "goals"
	Users        Collection = "users"
)

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(s); c {
	case Wallets, Transactions, Goals, Users:
		return c, nil
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// Action is the kind of write that produced an event.
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// Event announces a committed write to one owner's collection.
type Event struct {
	UserID     string     `json:"user_id"`
	Collection Collection `json:"collection"`
	Action     Action     `json:"action"`
	ID         string     `json:"id"`
	At         time.Time  `json:"at"`
}

// Publisher accepts change events after a write commits.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

func encodeEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.UserID == "" {
		return Event{}, fmt.Errorf("decode event: missing user_id")
	}
	if _, err := ParseCollection(string(e.Collection)); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
