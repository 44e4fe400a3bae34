package services

import (
	"math/rand"
	"testing"
	"time"

	"gorm.io/gorm"

	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/realtime"
	"expensetracker/internal/testutil"
)

const (
	income  = models.TransactionTypeIncome
	expense = models.TransactionTypeExpense
)

func newTransactionService(db *gorm.DB, events realtime.Publisher) TransactionServicer {
	return NewTransactionService(db, NewWalletService(db, events), events)
}

func TestCreateTransaction(t *testing.T) {
	t.Run("income_increases_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		events := &recordingPublisher{}
		txSvc := newTransactionService(db, events)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, user.ID)

		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, income, 5000, "", "Salary", time.Now(), "")
		testutil.AssertNoError(t, err)

		if tx.ID == "" {
			t.Fatal("expected a transaction ID")
		}
		assertBalances(t, reloadWallet(t, db, wallet.ID), 5000, 5000, 0)
		if !events.has(realtime.Transactions, realtime.Created, tx.ID) {
			t.Error("expected a transactions/created event")
		}
		if !events.has(realtime.Wallets, realtime.Updated, wallet.ID) {
			t.Error("expected a wallets/updated event")
		}
	})

	t.Run("expense_decreases_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWalletWithAmount(t, db, user.ID, 10000)

		_, err := txSvc.CreateTransaction(user.ID, wallet.ID, expense, 3000, "food", "Lunch", time.Now(), "")
		testutil.AssertNoError(t, err)

		assertBalances(t, reloadWallet(t, db, wallet.ID), 7000, 0, 3000)
	})

	t.Run("expense_over_balance_leaves_state_unchanged", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		events := &recordingPublisher{}
		txSvc := newTransactionService(db, events)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWalletWithAmount(t, db, user.ID, 1000)

		_, err := txSvc.CreateTransaction(user.ID, wallet.ID, expense, 1001, "rent", "", time.Now(), "")
		testutil.AssertAppError(t, err, "INSUFFICIENT_BALANCE")

		assertBalances(t, reloadWallet(t, db, wallet.ID), 1000, 0, 0)
		var count int64
		db.Model(&models.Transaction{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no transaction persisted, got %d", count)
		}
		if events.count() != 0 {
			t.Errorf("expected no events, got %d", events.count())
		}
	})

	t.Run("validation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, user.ID)

		cases := []struct {
			name     string
			walletID string
			typ      models.TransactionType
			amount   int64
			category string
			code     string
		}{
			{"zero_amount", wallet.ID, income, 0, "", "INVALID_INPUT"},
			{"negative_amount", wallet.ID, income, -100, "", "INVALID_INPUT"},
			{"missing_wallet", "", income, 100, "", "INVALID_INPUT"},
			{"missing_type", wallet.ID, "", 100, "", "INVALID_INPUT"},
			{"unknown_type", wallet.ID, "transfer", 100, "", "INVALID_TRANSACTION_TYPE"},
			{"expense_without_category", wallet.ID, expense, 100, "", "CATEGORY_REQUIRED"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := txSvc.CreateTransaction(user.ID, tc.walletID, tc.typ, tc.amount, tc.category, "", time.Now(), "")
				testutil.AssertAppError(t, err, tc.code)
			})
		}
	})

	t.Run("wrong_user_wallet", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, owner.ID)

		_, err := txSvc.CreateTransaction(other.ID, wallet.ID, income, 100, "", "", time.Now(), "")
		testutil.AssertAppError(t, err, "WALLET_NOT_FOUND")
	})

	t.Run("default_date_when_zero", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, user.ID)

		before := time.Now().Add(-time.Second)
		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, income, 100, "", "", time.Time{}, "")
		testutil.AssertNoError(t, err)
		if tx.Date.Before(before) {
			t.Errorf("expected date defaulted to now, got %s", tx.Date)
		}
	})
}

func TestUpdateTransaction(t *testing.T) {
	t.Run("same_wallet_reverts_before_check", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWalletWithAmount(t, db, user.ID, 10000)

		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, expense, 8000, "rent", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		updated, err := txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{Amount: ptr(int64(10000))})
		testutil.AssertNoError(t, err)
		if updated.Amount != 10000 {
			t.Errorf("expected amount 10000, got %d", updated.Amount)
		}
		assertBalances(t, reloadWallet(t, db, wallet.ID), 0, 0, 10000)
	})

	t.Run("move_between_wallets", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		events := &recordingPublisher{}
		txSvc := newTransactionService(db, events)
		user := testutil.CreateTestUser(t, db)
		a := testutil.CreateTestWalletWithAmount(t, db, user.ID, 10000)
		b := testutil.CreateTestWalletWithAmount(t, db, user.ID, 5000)

		tx, err := txSvc.CreateTransaction(user.ID, a.ID, expense, 3000, "food", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{WalletID: ptr(b.ID)})
		testutil.AssertNoError(t, err)

		assertBalances(t, reloadWallet(t, db, a.ID), 10000, 0, 0)
		assertBalances(t, reloadWallet(t, db, b.ID), 2000, 0, 3000)
		if !events.has(realtime.Wallets, realtime.Updated, b.ID) {
			t.Error("expected an event for the target wallet")
		}
	})

	t.Run("move_rejected_when_target_short", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		a := testutil.CreateTestWalletWithAmount(t, db, user.ID, 10000)
		b := testutil.CreateTestWalletWithAmount(t, db, user.ID, 1000)

		tx, err := txSvc.CreateTransaction(user.ID, a.ID, expense, 3000, "food", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{WalletID: ptr(b.ID)})
		testutil.AssertAppError(t, err, "INSUFFICIENT_BALANCE")

		assertBalances(t, reloadWallet(t, db, a.ID), 7000, 0, 3000)
		assertBalances(t, reloadWallet(t, db, b.ID), 1000, 0, 0)
		stored, _ := txSvc.GetTransactionByID(user.ID, tx.ID)
		if stored.WalletID != a.ID {
			t.Error("transaction must stay on the original wallet")
		}
	})

	t.Run("type_flip", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWalletWithAmount(t, db, user.ID, 10000)

		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, income, 2000, "", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{Type: ptr(expense), Category: ptr("bills")})
		testutil.AssertNoError(t, err)
		assertBalances(t, reloadWallet(t, db, wallet.ID), 8000, 0, 2000)
	})

	t.Run("type_flip_needs_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWalletWithAmount(t, db, user.ID, 10000)

		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, income, 2000, "", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{Type: ptr(expense)})
		testutil.AssertAppError(t, err, "CATEGORY_REQUIRED")
		assertBalances(t, reloadWallet(t, db, wallet.ID), 12000, 2000, 0)
	})

	t.Run("description_only_keeps_wallet", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		events := &recordingPublisher{}
		txSvc := newTransactionService(db, events)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, user.ID)

		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, income, 2000, "", "old", time.Now(), "")
		testutil.AssertNoError(t, err)
		before := events.count()

		updated, err := txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{Description: ptr("new")})
		testutil.AssertNoError(t, err)
		if updated.Description != "new" {
			t.Errorf("expected description updated, got %q", updated.Description)
		}
		assertBalances(t, reloadWallet(t, db, wallet.ID), 2000, 2000, 0)
		if events.count() != before+1 {
			t.Errorf("expected only a transactions/updated event, got %d new", events.count()-before)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)

		_, err := txSvc.UpdateTransaction(user.ID, "0190c6b2-0000-7000-8000-000000000000", TransactionUpdateFields{})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestDeleteTransaction(t *testing.T) {
	t.Run("income_reversal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, user.ID)

		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, income, 5000, "", "Income", time.Now(), "")
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, txSvc.DeleteTransaction(user.ID, tx.ID))
		assertBalances(t, reloadWallet(t, db, wallet.ID), 0, 0, 0)

		_, err = txSvc.GetTransactionByID(user.ID, tx.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("expense_reversal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWalletWithAmount(t, db, user.ID, 10000)

		tx, err := txSvc.CreateTransaction(user.ID, wallet.ID, expense, 3000, "food", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, txSvc.DeleteTransaction(user.ID, tx.ID))
		assertBalances(t, reloadWallet(t, db, wallet.ID), 10000, 0, 0)
	})

	t.Run("spent_income_refused", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, user.ID)

		in, err := txSvc.CreateTransaction(user.ID, wallet.ID, income, 5000, "", "", time.Now(), "")
		testutil.AssertNoError(t, err)
		_, err = txSvc.CreateTransaction(user.ID, wallet.ID, expense, 4000, "rent", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		err = txSvc.DeleteTransaction(user.ID, in.ID)
		testutil.AssertAppError(t, err, "INSUFFICIENT_BALANCE")
		assertBalances(t, reloadWallet(t, db, wallet.ID), 1000, 5000, 4000)

		_, err = txSvc.GetTransactionByID(user.ID, in.ID)
		testutil.AssertNoError(t, err)
	})

	t.Run("wrong_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		txSvc := newTransactionService(db, nil)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		wallet := testutil.CreateTestWallet(t, db, owner.ID)

		tx, err := txSvc.CreateTransaction(owner.ID, wallet.ID, income, 100, "", "", time.Now(), "")
		testutil.AssertNoError(t, err)

		err = txSvc.DeleteTransaction(other.ID, tx.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

// TestCashWalletScenario walks the reference example end to end.
func TestCashWalletScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	wallets := NewWalletService(db, nil)
	txSvc := NewTransactionService(db, wallets, nil)
	user := testutil.CreateTestUser(t, db)

	cash, err := wallets.CreateWallet(user.ID, "Cash", "", 10000)
	testutil.AssertNoError(t, err)

	salary, err := txSvc.CreateTransaction(user.ID, cash.ID, income, 5000, "", "", time.Now(), "")
	testutil.AssertNoError(t, err)
	assertBalances(t, reloadWallet(t, db, cash.ID), 15000, 15000, 0)

	lunch, err := txSvc.CreateTransaction(user.ID, cash.ID, expense, 3000, "food", "", time.Now(), "")
	testutil.AssertNoError(t, err)
	assertBalances(t, reloadWallet(t, db, cash.ID), 12000, 15000, 3000)

	_, err = txSvc.UpdateTransaction(user.ID, lunch.ID, TransactionUpdateFields{Amount: ptr(int64(20000))})
	testutil.AssertAppError(t, err, "INSUFFICIENT_BALANCE")
	assertBalances(t, reloadWallet(t, db, cash.ID), 12000, 15000, 3000)

	testutil.AssertNoError(t, txSvc.DeleteTransaction(user.ID, salary.ID))
	assertBalances(t, reloadWallet(t, db, cash.ID), 7000, 10000, 3000)
}

// TestReconcilerInvariant runs random creates, edits and deletes over two
// wallets and checks each balance against its live transactions.
func TestReconcilerInvariant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	txSvc := newTransactionService(db, nil)
	user := testutil.CreateTestUser(t, db)
	ids := []string{
		testutil.CreateTestWallet(t, db, user.ID).ID,
		testutil.CreateTestWallet(t, db, user.ID).ID,
	}

	rng := rand.New(rand.NewSource(11))
	var live []string
	for i := 0; i < 150; i++ {
		typ := income
		if rng.Intn(2) == 0 {
			typ = expense
		}
		walletID := ids[rng.Intn(2)]
		amount := int64(rng.Intn(900) + 1)

		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			if tx, err := txSvc.CreateTransaction(user.ID, walletID, typ, amount, "misc", "", time.Now(), ""); err == nil {
				live = append(live, tx.ID)
			}
		case op == 1:
			id := live[rng.Intn(len(live))]
			_, _ = txSvc.UpdateTransaction(user.ID, id, TransactionUpdateFields{
				WalletID: &walletID, Type: &typ, Amount: &amount, Category: ptr("misc"),
			})
		default:
			idx := rng.Intn(len(live))
			if txSvc.DeleteTransaction(user.ID, live[idx]) == nil {
				live = append(live[:idx], live[idx+1:]...)
			}
		}
	}

	for _, id := range ids {
		var rows []models.Transaction
		db.Where("wallet_id = ?", id).Find(&rows)
		var net, in, out int64
		for _, r := range rows {
			if r.Type == income {
				net += r.Amount
				in += r.Amount
			} else {
				net -= r.Amount
				out += r.Amount
			}
		}
		w := reloadWallet(t, db, id)
		assertBalances(t, w, net, in, out)
		if w.Amount < 0 {
			t.Errorf("wallet %s went negative", id)
		}
	}
}

func TestGetUserTransactions(t *testing.T) {
	seed := func(t *testing.T) (*gorm.DB, TransactionServicer, string, []string) {
		db := testutil.SetupTestDB(t)
		txSvc := newTransactionService(db, nil)
		user := testutil.CreateTestUser(t, db)
		a := testutil.CreateTestWalletWithAmount(t, db, user.ID, 100000)
		b := testutil.CreateTestWalletWithAmount(t, db, user.ID, 100000)
		base := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

		mk := func(walletID string, typ models.TransactionType, amount int64, category, desc string, day int) {
			_, err := txSvc.CreateTransaction(user.ID, walletID, typ, amount, category, desc, base.AddDate(0, 0, day), "")
			testutil.AssertNoError(t, err)
		}
		mk(a.ID, income, 250000, "", "March salary", 0)
		mk(a.ID, expense, 1250, "Food", "Groceries", 1)
		mk(b.ID, expense, 4000, "Transport", "Train pass", 2)
		mk(b.ID, income, 1999, "", "Refund", 3)
		return db, txSvc, user.ID, []string{a.ID, b.ID}
	}

	t.Run("orders_by_date_desc", func(t *testing.T) {
		db, txSvc, userID, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		page, err := txSvc.GetUserTransactions(userID, pagination.PageRequest{}, TransactionFilter{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 4 {
			t.Fatalf("expected 4 transactions, got %d", page.TotalItems)
		}
		for i := 1; i < len(page.Data); i++ {
			if page.Data[i].Date.After(page.Data[i-1].Date) {
				t.Fatal("expected date-descending order")
			}
		}
	})

	t.Run("paginates_correctly", func(t *testing.T) {
		db, txSvc, userID, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		page, err := txSvc.GetUserTransactions(userID, pagination.PageRequest{Page: 2, PageSize: 3}, TransactionFilter{})
		testutil.AssertNoError(t, err)
		if len(page.Data) != 1 || page.TotalPages != 2 {
			t.Errorf("expected 1 item on page 2 of 2, got %d items, %d pages", len(page.Data), page.TotalPages)
		}
	})

	t.Run("filters_by_type", func(t *testing.T) {
		db, txSvc, userID, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		page, err := txSvc.GetUserTransactions(userID, pagination.PageRequest{}, TransactionFilter{Type: ptr(expense)})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 2 {
			t.Errorf("expected 2 expenses, got %d", page.TotalItems)
		}
	})

	t.Run("filters_by_wallet", func(t *testing.T) {
		db, txSvc, userID, wallets := seed(t)
		defer testutil.TeardownTestDB(t, db)

		page, err := txSvc.GetWalletTransactions(userID, wallets[1], pagination.PageRequest{}, TransactionFilter{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 2 {
			t.Errorf("expected 2 transactions in wallet b, got %d", page.TotalItems)
		}
	})

	t.Run("filters_by_date_range", func(t *testing.T) {
		db, txSvc, userID, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		from := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, time.March, 3, 23, 59, 59, 0, time.UTC)
		page, err := txSvc.GetUserTransactions(userID, pagination.PageRequest{}, TransactionFilter{FromDate: &from, ToDate: &to})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 2 {
			t.Errorf("expected 2 transactions in range, got %d", page.TotalItems)
		}
	})

	t.Run("search_text", func(t *testing.T) {
		db, txSvc, userID, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		for query, want := range map[string]int64{
			"food":    1, // category, case-insensitive
			"train":   1, // description
			"income":  2, // type
			"19.99":   1, // amount
			"$2,500":  1, // formatted amount
			"nothing": 0,
		} {
			page, err := txSvc.GetUserTransactions(userID, pagination.PageRequest{}, TransactionFilter{Search: query})
			testutil.AssertNoError(t, err)
			if page.TotalItems != want {
				t.Errorf("search %q: expected %d, got %d", query, want, page.TotalItems)
			}
		}
	})

	t.Run("user_isolation", func(t *testing.T) {
		db, txSvc, _, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)
		other := testutil.CreateTestUser(t, db)

		page, err := txSvc.GetUserTransactions(other.ID, pagination.PageRequest{}, TransactionFilter{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 0 {
			t.Errorf("expected no transactions for another user, got %d", page.TotalItems)
		}
	})

	t.Run("unknown_wallet", func(t *testing.T) {
		db, txSvc, userID, _ := seed(t)
		defer testutil.TeardownTestDB(t, db)

		_, err := txSvc.GetWalletTransactions(userID, "0190c6b2-0000-7000-8000-000000000000", pagination.PageRequest{}, TransactionFilter{})
		testutil.AssertAppError(t, err, "WALLET_NOT_FOUND")
	})
}
