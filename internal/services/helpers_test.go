package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"expensetracker/internal/models"
	"expensetracker/internal/realtime"
)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) has(collection realtime.Collection, action realtime.Action, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Collection == collection && e.Action == action && e.ID == id {
			return true
		}
	}
	return false
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// reloadWallet reads a wallet straight from the database.
func reloadWallet(t *testing.T, db *gorm.DB, id string) models.Wallet {
	t.Helper()
	var w models.Wallet
	if err := db.Where("id = ?", id).First(&w).Error; err != nil {
		t.Fatalf("failed to reload wallet %s: %v", id, err)
	}
	return w
}

func assertBalances(t *testing.T, w models.Wallet, amount, income, expenses int64) {
	t.Helper()
	if w.Amount != amount || w.TotalIncome != income || w.TotalExpenses != expenses {
		t.Errorf("expected amount=%d income=%d expenses=%d, got amount=%d income=%d expenses=%d",
			amount, income, expenses, w.Amount, w.TotalIncome, w.TotalExpenses)
	}
}

func ptr[T any](v T) *T { return &v }
