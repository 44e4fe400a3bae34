package services

import (
	"context"
	"time"

	"expensetracker/internal/logger"
	"expensetracker/internal/realtime"
)

// publish announces a committed write. Delivery failures are logged and never
// undo the write.
func publish(events realtime.Publisher, userID string, collection realtime.Collection, action realtime.Action, id string) {
	if events == nil {
		return
	}
	e := realtime.Event{
		UserID:     userID,
		Collection: collection,
		Action:     action,
		ID:         id,
		At:         time.Now().UTC(),
	}
	if err := events.Publish(context.Background(), e); err != nil {
		logger.Get().Warnw("failed to publish change event",
			"error", err,
			"collection", collection,
			"action", action,
			"id", id,
		)
	}
}

func publisherOrNop(events realtime.Publisher) realtime.Publisher {
	if events == nil {
		return realtime.Nop{}
	}
	return events
}
