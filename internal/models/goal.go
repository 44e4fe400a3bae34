package models

import "time"

// Goal is a savings target funded from a wallet. It transitions from active
// to completed exactly once.
type Goal struct {
	Base
	UserID        string     `gorm:"type:uuid;not null;index" json:"user_id"`
	WalletID      string     `gorm:"type:uuid;not null;index" json:"wallet_id"`
	Title         string     `gorm:"not null" json:"title"`
	Description   string     `json:"description"`
	TargetAmount  int64      `gorm:"type:bigint;not null" json:"target_amount"`
	TargetDate    time.Time  `gorm:"not null" json:"target_date"`
	Image         string     `json:"image,omitempty"`
	Completed     bool       `gorm:"not null;default:false;index" json:"completed"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
}
