// Package ledger holds the wallet balance arithmetic shared by the
// transaction reconciler and the goal tracker. It never touches storage;
// callers load and persist wallets inside their own database transaction.
package ledger

import (
	"fmt"
	"math"
	"strings"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
	"expensetracker/internal/money"
)

// MaxAmount caps a single entry or opening balance, in cents.
const MaxAmount int64 = 1_000_000_000_000_000

var errOverflow = apperrors.WithMessage(apperrors.ErrInvalidInput, "amount would overflow the wallet balance")

// Entry is the part of a transaction that affects a wallet.
type Entry struct {
	WalletID string
	Type     models.TransactionType
	Amount   int64
	Category string
}

// EntryOf extracts the ledger-relevant fields of t.
func EntryOf(t *models.Transaction) Entry {
	return Entry{WalletID: t.WalletID, Type: t.Type, Amount: t.Amount, Category: t.Category}
}

// Validate checks the mandatory fields of an entry. It runs before any
// storage access.
func Validate(e Entry) error {
	if e.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if e.Amount > MaxAmount {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount is too large")
	}
	if e.WalletID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "wallet_id is required")
	}
	if e.Type == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "type is required")
	}
	if !e.Type.Valid() {
		return apperrors.ErrInvalidTransactionType
	}
	if e.Type == models.TransactionTypeExpense && strings.TrimSpace(e.Category) == "" {
		return apperrors.ErrCategoryRequired
	}
	return nil
}

// Effect is the signed change an entry makes to a wallet balance.
func Effect(t models.TransactionType, amount int64) int64 {
	if t == models.TransactionTypeExpense {
		return -amount
	}
	return amount
}

// Apply adds the entry's effect to w and bumps the matching total.
func Apply(w *models.Wallet, t models.TransactionType, amount int64) {
	w.Amount += Effect(t, amount)
	switch t {
	case models.TransactionTypeIncome:
		w.TotalIncome += amount
	case models.TransactionTypeExpense:
		w.TotalExpenses += amount
	}
}

// Revert is the inverse of Apply.
func Revert(w *models.Wallet, t models.TransactionType, amount int64) {
	w.Amount -= Effect(t, amount)
	switch t {
	case models.TransactionTypeIncome:
		w.TotalIncome -= amount
	case models.TransactionTypeExpense:
		w.TotalExpenses -= amount
	}
}

// overflows reports whether applying amount of type t to w would wrap the
// balance or the matching total past MaxInt64.
func overflows(w *models.Wallet, t models.TransactionType, amount int64) bool {
	total := w.TotalIncome
	if t == models.TransactionTypeExpense {
		total = w.TotalExpenses
	}
	if amount > math.MaxInt64-total {
		return true
	}
	return t == models.TransactionTypeIncome && amount > math.MaxInt64-w.Amount
}

// CheckNonNegative fails with ErrInsufficientBalance if any wallet balance is below zero.
func CheckNonNegative(wallets ...*models.Wallet) error {
	for _, w := range wallets {
		if w.Amount < 0 {
			return apperrors.ErrInsufficientBalance
		}
	}
	return nil
}

// Create applies a new entry to w. An expense larger than the balance is
// rejected and w is left untouched.
func Create(w *models.Wallet, e Entry) error {
	if e.Type == models.TransactionTypeExpense && w.Amount-e.Amount < 0 {
		return apperrors.WithMessage(apperrors.ErrInsufficientBalance,
			fmt.Sprintf("Wallet balance %s is not enough for an expense of %s", money.Format(w.Amount), money.Format(e.Amount)))
	}
	if overflows(w, e.Type, e.Amount) {
		return errOverflow
	}
	Apply(w, e.Type, e.Amount)
	return nil
}

// Remove reverts a stored entry from w. Reverting an income that has already
// been spent would leave a negative balance, so it is rejected and w is
// restored.
func Remove(w *models.Wallet, e Entry) error {
	Revert(w, e.Type, e.Amount)
	if err := CheckNonNegative(w); err != nil {
		Apply(w, e.Type, e.Amount)
		return err
	}
	return nil
}

// Rebalance moves a transaction's effect from old on from to next on to.
// from and to may be the same wallet, in which case the revert lands before
// the balance check. On failure both wallets are restored.
func Rebalance(from, to *models.Wallet, old, next Entry) error {
	fromSnap, toSnap := *from, *to

	Revert(from, old.Type, old.Amount)
	if overflows(to, next.Type, next.Amount) {
		*from = fromSnap
		*to = toSnap
		return errOverflow
	}
	Apply(to, next.Type, next.Amount)

	if err := CheckNonNegative(from, to); err != nil {
		*from = fromSnap
		*to = toSnap
		return err
	}
	return nil
}

// Changed reports whether an edit touches wallet balances at all.
func Changed(old, next Entry) bool {
	return old.WalletID != next.WalletID || old.Type != next.Type || old.Amount != next.Amount
}

// Withdraw deducts amount for a completed goal. With clamp the balance floors
// at zero; without it an under-funded withdrawal is rejected. The full amount
// is always booked to TotalExpenses.
func Withdraw(w *models.Wallet, amount int64, clamp bool) error {
	if w.Amount < amount {
		if !clamp {
			return apperrors.ErrInsufficientBalance
		}
		w.Amount = 0
	} else {
		w.Amount -= amount
	}
	w.TotalExpenses += amount
	return nil
}
