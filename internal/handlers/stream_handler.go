package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/logger"
	"expensetracker/internal/pagination"
	"expensetracker/internal/realtime"
	"expensetracker/internal/services"
)

const defaultHeartbeat = 25 * time.Second

// Subscriber hands out live change feeds.
type Subscriber interface {
	Subscribe(userID string, collection realtime.Collection) *realtime.Subscription
}

// Snapshotter reads the current contents of one owner's collection.
type Snapshotter interface {
	Snapshot(userID string, collection realtime.Collection) (interface{}, error)
}

// ServiceSnapshots reads collection snapshots through the services layer.
// List collections return their newest page at the maximum page size.
type ServiceSnapshots struct {
	Users        services.UserServicer
	Wallets      services.WalletServicer
	Transactions services.TransactionServicer
	Goals        services.GoalServicer
}

var snapshotPage = pagination.PageRequest{Page: 1, PageSize: pagination.MaxPageSize}

// Snapshot implements Snapshotter.
func (s ServiceSnapshots) Snapshot(userID string, collection realtime.Collection) (interface{}, error) {
	switch collection {
	case realtime.Users:
		user, err := s.Users.GetUserByID(userID)
		if err != nil {
			return nil, err
		}
		return toUserResponse(user), nil
	case realtime.Wallets:
		return s.Wallets.GetUserWallets(userID, snapshotPage)
	case realtime.Transactions:
		return s.Transactions.GetUserTransactions(userID, snapshotPage, services.TransactionFilter{})
	case realtime.Goals:
		return s.Goals.GetUserGoals(userID, snapshotPage, nil)
	}
	return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown collection")
}

// StreamHandler pushes collection snapshots to clients over server-sent events.
type StreamHandler struct {
	subscriber  Subscriber
	snapshotter Snapshotter
	heartbeat   time.Duration
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(subscriber Subscriber, snapshotter Snapshotter) *StreamHandler {
	return &StreamHandler{subscriber: subscriber, snapshotter: snapshotter, heartbeat: defaultHeartbeat}
}

// Stream subscribes to a collection
// @Summary     Subscribe to a collection
// @Description Server-sent event stream. A "snapshot" event with the full collection is sent on connect and again after every change. Browsers may pass the access token as the access_token query parameter.
// @Tags        stream
// @Produce     text/event-stream
// @Security    BearerAuth
// @Param       collection path string true "wallets, transactions, goals or users"
// @Success     200 {string} string "Event stream"
// @Failure     400 {object} ErrorResponse "Unknown collection"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /stream/{collection} [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	collection, err := realtime.ParseCollection(c.Param("collection"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	sub := h.subscriber.Subscribe(userID, collection)
	defer sub.Close()

	log := logger.Named("stream").With("user_id", userID, "collection", collection)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.sendSnapshot(c, userID, collection, log)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debugw("stream closed by client")
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			h.sendSnapshot(c, userID, collection, log)
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

func (h *StreamHandler) sendSnapshot(c *gin.Context, userID string, collection realtime.Collection, log *zap.SugaredLogger) {
	data, err := h.snapshotter.Snapshot(userID, collection)
	if err != nil {
		log.Warnw("snapshot failed", "error", err)
		c.SSEvent("error", ErrorDetail{Code: apperrors.CodeOf(err), Message: "snapshot unavailable"})
	} else {
		c.SSEvent("snapshot", data)
	}
	c.Writer.Flush()
}
