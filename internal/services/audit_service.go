package services

import (
	"encoding/json"

	"expensetracker/internal/logger"
	"expensetracker/internal/models"

	"gorm.io/gorm"
)

// auditService records audit events in the relational store.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := newAuditEntry(userID, action, resourceType, resourceID, ipAddress, changes)

	if err := s.db.Create(entry).Error; err != nil {
		logAuditFailure(err, entry)
	}
}

func newAuditEntry(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) *models.AuditLog {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	return &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
	}
}

func logAuditFailure(err error, entry *models.AuditLog) {
	logger.Get().Errorw("failed to create audit log entry",
		"error", err,
		"user_id", entry.UserID,
		"action", entry.Action,
		"resource_type", entry.ResourceType,
		"resource_id", entry.ResourceID,
	)
}
