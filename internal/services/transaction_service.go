package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/ledger"
	"expensetracker/internal/models"
	"expensetracker/internal/money"
	"expensetracker/internal/pagination"
	"expensetracker/internal/realtime"
)

// transactionService reconciles transactions with their wallets. Every write
// runs in one database transaction with the affected wallet rows locked.
type transactionService struct {
	db            *gorm.DB
	walletService WalletServicer
	events        realtime.Publisher
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, walletService WalletServicer, events realtime.Publisher) TransactionServicer {
	return &transactionService{
		db:            db,
		walletService: walletService,
		events:        publisherOrNop(events),
	}
}

// CreateTransaction records an income or expense and applies it to the wallet.
func (s *transactionService) CreateTransaction(
	userID string,
	walletID string,
	transactionType models.TransactionType,
	amount int64,
	category string,
	description string,
	date time.Time,
	image string,
) (*models.Transaction, error) {
	transaction := &models.Transaction{
		UserID:      userID,
		WalletID:    walletID,
		Type:        transactionType,
		Amount:      amount,
		Category:    strings.TrimSpace(category),
		Description: description,
		Date:        date,
		Image:       image,
	}
	entry := ledger.EntryOf(transaction)
	if err := ledger.Validate(entry); err != nil {
		return nil, err
	}

	// Default date to now if not provided
	if transaction.Date.IsZero() {
		transaction.Date = time.Now()
	}
	transaction.Date = transaction.Date.UTC()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		wallet, err := lockWallet(tx, userID, walletID)
		if err != nil {
			return err
		}
		if err := ledger.Create(wallet, entry); err != nil {
			return err
		}
		if err := saveBalances(tx, wallet); err != nil {
			return err
		}
		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, userID, realtime.Wallets, realtime.Updated, walletID)
	publish(s.events, userID, realtime.Transactions, realtime.Created, transaction.ID)
	return transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's transactions.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetWalletTransactions lists the transactions of one wallet owned by the user.
func (s *transactionService) GetWalletTransactions(userID, walletID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if _, err := s.walletService.GetWalletByID(userID, walletID); err != nil {
		return nil, err
	}
	filter.WalletID = &walletID
	return s.GetUserTransactions(userID, page, filter)
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.WalletID != nil {
		q = q.Where("wallet_id = ?", *f.WalletID)
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		like := "%" + search + "%"
		cond := "LOWER(category) LIKE ? OR LOWER(type) LIKE ? OR LOWER(description) LIKE ?"
		args := []interface{}{like, like, like}
		if cents, err := money.Parse(search); err == nil {
			cond += " OR amount = ?"
			args = append(args, cents)
		}
		q = q.Where("("+cond+")", args...)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	return findTransaction(s.db, userID, transactionID)
}

func findTransaction(db *gorm.DB, userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction merges fields onto the stored transaction. When the
// wallet, type or amount changes, the old effect is reverted and the new one
// applied; if any touched wallet would go negative nothing is persisted.
func (s *transactionService) UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error) {
	var (
		result  *models.Transaction
		touched []string
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		stored, err := findTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}

		next := *stored
		mergeTransaction(&next, fields)

		old, updated := ledger.EntryOf(stored), ledger.EntryOf(&next)
		if err := ledger.Validate(updated); err != nil {
			return err
		}

		if ledger.Changed(old, updated) {
			wallets, err := lockWallets(tx, userID, old.WalletID, updated.WalletID)
			if err != nil {
				return err
			}
			from, to := wallets[old.WalletID], wallets[updated.WalletID]
			if err := ledger.Rebalance(from, to, old, updated); err != nil {
				return err
			}
			for id, w := range wallets {
				if err := saveBalances(tx, w); err != nil {
					return err
				}
				touched = append(touched, id)
			}
		}

		if err := tx.Save(&next).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range touched {
		publish(s.events, userID, realtime.Wallets, realtime.Updated, id)
	}
	publish(s.events, userID, realtime.Transactions, realtime.Updated, result.ID)
	return result, nil
}

func mergeTransaction(t *models.Transaction, f TransactionUpdateFields) {
	if f.WalletID != nil {
		t.WalletID = *f.WalletID
	}
	if f.Type != nil {
		t.Type = *f.Type
	}
	if f.Amount != nil {
		t.Amount = *f.Amount
	}
	if f.Category != nil {
		t.Category = strings.TrimSpace(*f.Category)
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Date != nil && !f.Date.IsZero() {
		t.Date = f.Date.UTC()
	}
	if f.Image != nil {
		t.Image = *f.Image
	}
}

// DeleteTransaction reverts a transaction's effect and deletes it. Deleting
// income that has already been spent is refused.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	var walletID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		transaction, err := findTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		walletID = transaction.WalletID

		wallet, err := lockWallet(tx, userID, transaction.WalletID)
		if err != nil {
			return err
		}
		if err := ledger.Remove(wallet, ledger.EntryOf(transaction)); err != nil {
			return err
		}
		if err := saveBalances(tx, wallet); err != nil {
			return err
		}
		if err := tx.Delete(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	publish(s.events, userID, realtime.Wallets, realtime.Updated, walletID)
	publish(s.events, userID, realtime.Transactions, realtime.Deleted, transactionID)
	return nil
}
