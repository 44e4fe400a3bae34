package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
	"expensetracker/internal/stats"
)

// statisticsService builds bucketed income/expense views over transactions.
type statisticsService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewStatisticsService creates a new StatisticsServicer. Bucket boundaries
// are computed in loc.
func NewStatisticsService(db *gorm.DB, loc *time.Location) StatisticsServicer {
	if loc == nil {
		loc = time.UTC
	}
	return &statisticsService{db: db, loc: loc, now: time.Now}
}

// GetStatistics aggregates the user's transactions, optionally for one
// wallet, into the buckets of period.
func (s *statisticsService) GetStatistics(userID string, period stats.Period, walletID string) (*StatisticsReport, error) {
	firstYear := 0
	if period == stats.Yearly {
		year, err := s.firstYear(userID, walletID)
		if err != nil {
			return nil, err
		}
		firstYear = year
	}

	window := stats.NewWindow(period, s.now(), s.loc, firstYear)

	var transactions []models.Transaction
	if err := s.scoped(userID, walletID).
		Where("date >= ? AND date < ?", window.From.UTC(), window.To.UTC()).
		Order("date DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	buckets := window.Aggregate(transactions)
	return &StatisticsReport{
		Period:       period,
		From:         window.From,
		To:           window.To,
		Buckets:      buckets,
		Chart:        stats.Chart(buckets),
		Transactions: transactions,
	}, nil
}

// GetHighlights reports the best and worst weekday of the current month and
// month of all time.
func (s *statisticsService) GetHighlights(userID, walletID string) (*stats.Highlights, error) {
	var transactions []models.Transaction
	if err := s.scoped(userID, walletID).Order("date ASC").Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	h := stats.ComputeHighlights(transactions, s.now(), s.loc)
	return &h, nil
}

func (s *statisticsService) scoped(userID, walletID string) *gorm.DB {
	q := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if walletID != "" {
		q = q.Where("wallet_id = ?", walletID)
	}
	return q
}

// firstYear returns the year of the earliest transaction, or 0 with none.
func (s *statisticsService) firstYear(userID, walletID string) (int, error) {
	var first models.Transaction
	err := s.scoped(userID, walletID).Order("date ASC").First(&first).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return first.Date.In(s.loc).Year(), nil
}
