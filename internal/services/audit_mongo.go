package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expensetracker/internal/uuid"
)

// AuditCollection is the document collection audit events are written to.
const AuditCollection = "audit_logs"

// DocumentStore is the subset of *mongo.Collection the audit sink needs.
type DocumentStore interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// mongoAuditService writes audit events to a document store, keeping the
// audit trail off the primary database.
type mongoAuditService struct {
	store   DocumentStore
	timeout time.Duration
	now     func() time.Time
}

// NewMongoAuditService creates an AuditServicer backed by store.
func NewMongoAuditService(store DocumentStore) AuditServicer {
	return &mongoAuditService{store: store, timeout: 5 * time.Second, now: time.Now}
}

// Log implements AuditServicer. Failures are logged, never returned.
func (s *mongoAuditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := newAuditEntry(userID, action, resourceType, resourceID, ipAddress, changes)
	entry.ID = uuid.New()
	entry.CreatedAt = s.now().UTC()
	entry.UpdatedAt = entry.CreatedAt

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.store.InsertOne(ctx, entry); err != nil {
		logAuditFailure(err, entry)
	}
}

// ConnectMongo connects to uri and verifies the server is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}
