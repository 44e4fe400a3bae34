package models

import (
	"time"

	"expensetracker/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables. The bson tags let the same
// struct be written to the document-store audit sink.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-" bson:"-"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}
