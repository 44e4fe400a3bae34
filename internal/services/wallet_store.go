package services

import (
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
)

// lockWallet loads an owner's wallet with a row lock held until tx ends.
func lockWallet(tx *gorm.DB, userID, walletID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", walletID, userID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &wallet, nil
}

// lockWallets locks every distinct wallet id in ascending order so two
// concurrent updates touching the same pair cannot deadlock.
func lockWallets(tx *gorm.DB, userID string, walletIDs ...string) (map[string]*models.Wallet, error) {
	ids := make([]string, 0, len(walletIDs))
	seen := make(map[string]bool, len(walletIDs))
	for _, id := range walletIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	wallets := make(map[string]*models.Wallet, len(ids))
	for _, id := range ids {
		w, err := lockWallet(tx, userID, id)
		if err != nil {
			return nil, err
		}
		wallets[id] = w
	}
	return wallets, nil
}

// saveBalances persists the balance columns of w. A map is used so zero
// values are written.
func saveBalances(tx *gorm.DB, w *models.Wallet) error {
	err := tx.Model(w).Updates(map[string]interface{}{
		"amount":         w.Amount,
		"total_income":   w.TotalIncome,
		"total_expenses": w.TotalExpenses,
	}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
