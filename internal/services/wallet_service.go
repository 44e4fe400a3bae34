package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/ledger"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/realtime"
)

// walletService handles wallet-related business logic.
type walletService struct {
	db     *gorm.DB
	events realtime.Publisher
}

// NewWalletService creates a new WalletServicer.
func NewWalletService(db *gorm.DB, events realtime.Publisher) WalletServicer {
	return &walletService{db: db, events: publisherOrNop(events)}
}

// OpeningBalanceDescription labels the income booked for a wallet's opening balance.
const OpeningBalanceDescription = "Opening balance"

// CreateWallet creates a wallet. A positive opening balance is booked as an
// income transaction in the same database transaction, so the balance always
// equals the net of the wallet's transactions.
func (s *walletService) CreateWallet(userID, name, image string, initialAmount int64) (*models.Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "wallet name is required")
	}
	if initialAmount < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "initial amount cannot be negative")
	}
	if initialAmount > ledger.MaxAmount {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "initial amount is too large")
	}

	wallet := &models.Wallet{
		UserID: userID,
		Name:   name,
		Image:  image,
	}
	var opening *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if initialAmount > 0 {
			ledger.Apply(wallet, models.TransactionTypeIncome, initialAmount)
		}
		if err := tx.Create(wallet).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if initialAmount == 0 {
			return nil
		}
		opening = &models.Transaction{
			UserID:      userID,
			WalletID:    wallet.ID,
			Type:        models.TransactionTypeIncome,
			Amount:      initialAmount,
			Description: OpeningBalanceDescription,
			Date:        time.Now().UTC(),
		}
		if err := tx.Create(opening).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, userID, realtime.Wallets, realtime.Created, wallet.ID)
	if opening != nil {
		publish(s.events, userID, realtime.Transactions, realtime.Created, opening.ID)
	}
	return wallet, nil
}

// GetUserWallets retrieves a paginated list of wallets, newest first.
func (s *walletService) GetUserWallets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Wallet], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Wallet{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var wallets []models.Wallet
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&wallets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(wallets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetWalletByID retrieves a wallet by ID for a specific user
func (s *walletService) GetWalletByID(userID, walletID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.Where("id = ? AND user_id = ?", walletID, userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &wallet, nil
}

// UpdateWallet changes a wallet's name and/or image.
func (s *walletService) UpdateWallet(userID, walletID string, fields WalletUpdateFields) (*models.Wallet, error) {
	wallet, err := s.GetWalletByID(userID, walletID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "wallet name cannot be empty")
		}
		updates["name"] = name
	}
	if fields.Image != nil {
		updates["image"] = *fields.Image
	}

	if len(updates) > 0 {
		if err := s.db.Model(wallet).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Reload to get fresh data
		if err := s.db.Where("id = ?", wallet.ID).First(wallet).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		publish(s.events, userID, realtime.Wallets, realtime.Updated, wallet.ID)
	}

	return wallet, nil
}

// DeleteWallet deletes a wallet together with every transaction that
// references it.
func (s *walletService) DeleteWallet(userID, walletID string) error {
	var deletedTxIDs []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		wallet, err := lockWallet(tx, userID, walletID)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Transaction{}).
			Where("wallet_id = ? AND user_id = ?", walletID, userID).
			Pluck("id", &deletedTxIDs).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("wallet_id = ? AND user_id = ?", walletID, userID).
			Delete(&models.Transaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(wallet).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range deletedTxIDs {
		publish(s.events, userID, realtime.Transactions, realtime.Deleted, id)
	}
	publish(s.events, userID, realtime.Wallets, realtime.Deleted, walletID)
	return nil
}
