package models

// Wallet is a named money container with a running balance and lifetime
// income/expense totals. All amounts are minor units (cents).
type Wallet struct {
	Base
	UserID        string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string `gorm:"not null" json:"name"`
	Image         string `json:"image,omitempty"`
	Amount        int64  `gorm:"type:bigint;not null;default:0" json:"amount"`
	TotalIncome   int64  `gorm:"type:bigint;not null;default:0" json:"total_income"`
	TotalExpenses int64  `gorm:"type:bigint;not null;default:0" json:"total_expenses"`
}
