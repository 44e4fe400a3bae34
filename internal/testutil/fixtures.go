package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"expensetracker/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     "Test User",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestWallet creates an empty wallet.
func CreateTestWallet(t *testing.T, db *gorm.DB, userID string) *models.Wallet {
	t.Helper()
	return CreateTestWalletWithAmount(t, db, userID, 0)
}

// CreateTestWalletWithAmount creates a wallet holding amount cents. The
// totals stay zero and no transaction is written, so use the wallet service
// when the balance must match the wallet's transactions.
func CreateTestWalletWithAmount(t *testing.T, db *gorm.DB, userID string, amount int64) *models.Wallet {
	t.Helper()

	wallet := &models.Wallet{
		UserID: userID,
		Name:   fmt.Sprintf("Test Wallet %d", nextID()),
		Amount: amount,
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("failed to create test wallet: %v", err)
	}
	return wallet
}

// CreateTestTransaction inserts a transaction row dated now. It does not
// touch the wallet; use the transaction service when balances matter.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, walletID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()
	return CreateTestTransactionAt(t, db, userID, walletID, txType, amount, time.Now())
}

// CreateTestTransactionAt is CreateTestTransaction with an explicit date.
func CreateTestTransactionAt(t *testing.T, db *gorm.DB, userID, walletID string, txType models.TransactionType, amount int64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:   userID,
		WalletID: walletID,
		Type:     txType,
		Amount:   amount,
		Date:     date,
	}
	if txType == models.TransactionTypeExpense {
		tx.Category = "general"
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestGoal creates an active goal funded from walletID.
func CreateTestGoal(t *testing.T, db *gorm.DB, userID, walletID string, target int64) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		UserID:       userID,
		WalletID:     walletID,
		Title:        fmt.Sprintf("Test Goal %d", nextID()),
		TargetAmount: target,
		TargetDate:   time.Now().AddDate(0, 3, 0),
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}
