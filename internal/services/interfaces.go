package services

import (
	"time"

	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/stats"
)

// ProfileUpdateFields holds the optional profile fields a user may change.
type ProfileUpdateFields struct {
	Name  *string
	Image *string
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(name, email, password string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	ClearRefreshTokenHash(userID string) error
	UpdateProfile(userID string, fields ProfileUpdateFields) (*models.User, error)
}

// WalletUpdateFields holds the optional wallet fields a user may change.
// Balances are never edited directly.
type WalletUpdateFields struct {
	Name  *string
	Image *string
}

// WalletServicer defines the contract for wallet-related business logic.
type WalletServicer interface {
	CreateWallet(userID, name, image string, initialAmount int64) (*models.Wallet, error)
	GetUserWallets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Wallet], error)
	GetWalletByID(userID, walletID string) (*models.Wallet, error)
	UpdateWallet(userID, walletID string, fields WalletUpdateFields) (*models.Wallet, error)
	DeleteWallet(userID, walletID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate *time.Time
	ToDate   *time.Time
	Type     *models.TransactionType
	WalletID *string
	// Search matches category, type, description, or an exact amount.
	Search string
}

// TransactionUpdateFields is a partial transaction. Nil fields keep their
// stored value.
type TransactionUpdateFields struct {
	WalletID    *string
	Type        *models.TransactionType
	Amount      *int64
	Category    *string
	Description *string
	Date        *time.Time
	Image       *string
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID, walletID string, transactionType models.TransactionType, amount int64, category, description string, date time.Time, image string) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetWalletTransactions(userID, walletID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// GoalUpdateFields holds the optional goal fields editable while a goal is active.
type GoalUpdateFields struct {
	WalletID     *string
	Title        *string
	Description  *string
	TargetAmount *int64
	TargetDate   *time.Time
	Image        *string
}

// GoalCompletion is the result of completing a goal.
type GoalCompletion struct {
	Goal   *models.Goal   `json:"goal"`
	Wallet *models.Wallet `json:"wallet"`
}

// GoalProgress compares a goal with its funding wallet.
type GoalProgress struct {
	GoalID       string  `json:"goal_id"`
	TargetAmount int64   `json:"target_amount"`
	WalletAmount int64   `json:"wallet_amount"`
	Remaining    int64   `json:"remaining"`
	Percentage   float64 `json:"percentage"`
	DaysLeft     int     `json:"days_left"`
	CanComplete  bool    `json:"can_complete"`
	Completed    bool    `json:"completed"`
}

// GoalServicer defines the contract for goal-related business logic.
type GoalServicer interface {
	CreateGoal(userID, walletID, title, description string, targetAmount int64, targetDate time.Time, image string) (*models.Goal, error)
	GetUserGoals(userID string, page pagination.PageRequest, completed *bool) (*pagination.PageResponse[models.Goal], error)
	GetGoalByID(userID, goalID string) (*models.Goal, error)
	UpdateGoal(userID, goalID string, fields GoalUpdateFields) (*models.Goal, error)
	DeleteGoal(userID, goalID string) error
	CompleteGoal(userID, goalID string) (*GoalCompletion, error)
	GetGoalProgress(userID, goalID string) (*GoalProgress, error)
}

// StatisticsReport is the bucketed income/expense summary of one period.
type StatisticsReport struct {
	Period       stats.Period         `json:"period"`
	From         time.Time            `json:"from"`
	To           time.Time            `json:"to"`
	Buckets      []stats.Bucket       `json:"buckets"`
	Chart        []stats.ChartPoint   `json:"chart"`
	Transactions []models.Transaction `json:"transactions"`
}

// StatisticsServicer defines the contract for spend/earn statistics.
type StatisticsServicer interface {
	GetStatistics(userID string, period stats.Period, walletID string) (*StatisticsReport, error)
	GetHighlights(userID, walletID string) (*stats.Highlights, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
