package services

import (
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"expensetracker/internal/config"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/ledger"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/realtime"
)

// goalService handles savings goals and their completion against a wallet.
type goalService struct {
	db            *gorm.DB
	walletService WalletServicer
	events        realtime.Publisher
	clamp         bool
	now           func() time.Time
}

// NewGoalService creates a new GoalServicer. policy is config.GoalPolicyClamp
// or config.GoalPolicyReject; anything else clamps.
func NewGoalService(db *gorm.DB, walletService WalletServicer, events realtime.Publisher, policy string) GoalServicer {
	return &goalService{
		db:            db,
		walletService: walletService,
		events:        publisherOrNop(events),
		clamp:         policy != config.GoalPolicyReject,
		now:           time.Now,
	}
}

// CreateGoal creates an active goal funded from one of the user's wallets.
func (s *goalService) CreateGoal(userID, walletID, title, description string, targetAmount int64, targetDate time.Time, image string) (*models.Goal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal title is required")
	}
	if targetAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be greater than zero")
	}
	if targetDate.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target date is required")
	}
	if _, err := s.walletService.GetWalletByID(userID, walletID); err != nil {
		return nil, err
	}

	goal := &models.Goal{
		UserID:       userID,
		WalletID:     walletID,
		Title:        title,
		Description:  description,
		TargetAmount: targetAmount,
		TargetDate:   targetDate.UTC(),
		Image:        image,
	}
	if err := s.db.Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	publish(s.events, userID, realtime.Goals, realtime.Created, goal.ID)
	return goal, nil
}

// GetUserGoals retrieves a paginated list of goals, optionally filtered by state.
func (s *goalService) GetUserGoals(userID string, page pagination.PageRequest, completed *bool) (*pagination.PageResponse[models.Goal], error) {
	page.Defaults()

	base := s.db.Model(&models.Goal{}).Where("user_id = ?", userID)
	if completed != nil {
		base = base.Where("completed = ?", *completed)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var goals []models.Goal
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(goals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGoalByID retrieves a goal by ID for a specific user
func (s *goalService) GetGoalByID(userID, goalID string) (*models.Goal, error) {
	return findGoal(s.db, userID, goalID)
}

func findGoal(db *gorm.DB, userID, goalID string) (*models.Goal, error) {
	var goal models.Goal
	if err := db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// UpdateGoal edits an active goal. Completed goals are frozen.
func (s *goalService) UpdateGoal(userID, goalID string, fields GoalUpdateFields) (*models.Goal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Completed {
		return nil, apperrors.ErrGoalCompleted
	}

	updates := make(map[string]interface{})
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal title cannot be empty")
		}
		updates["title"] = title
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.TargetAmount != nil {
		if *fields.TargetAmount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be greater than zero")
		}
		updates["target_amount"] = *fields.TargetAmount
	}
	if fields.TargetDate != nil && !fields.TargetDate.IsZero() {
		updates["target_date"] = fields.TargetDate.UTC()
	}
	if fields.Image != nil {
		updates["image"] = *fields.Image
	}
	if fields.WalletID != nil && *fields.WalletID != goal.WalletID {
		if _, err := s.walletService.GetWalletByID(userID, *fields.WalletID); err != nil {
			return nil, err
		}
		updates["wallet_id"] = *fields.WalletID
	}

	if len(updates) > 0 {
		if err := s.db.Model(goal).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Where("id = ?", goal.ID).First(goal).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		publish(s.events, userID, realtime.Goals, realtime.Updated, goal.ID)
	}

	return goal, nil
}

// DeleteGoal removes an active goal. It has no wallet effect.
func (s *goalService) DeleteGoal(userID, goalID string) error {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return err
	}
	if goal.Completed {
		return apperrors.ErrGoalCompleted
	}

	if err := s.db.Delete(goal).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	publish(s.events, userID, realtime.Goals, realtime.Deleted, goalID)
	return nil
}

// CompleteGoal withdraws the target amount from the funding wallet and marks
// the goal completed. A goal completes exactly once.
func (s *goalService) CompleteGoal(userID, goalID string) (*GoalCompletion, error) {
	var result GoalCompletion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		goal, err := findGoal(tx.Clauses(clause.Locking{Strength: "UPDATE"}), userID, goalID)
		if err != nil {
			return err
		}
		if goal.Completed {
			return apperrors.ErrGoalAlreadyCompleted
		}

		wallet, err := lockWallet(tx, userID, goal.WalletID)
		if err != nil {
			return err
		}
		if err := ledger.Withdraw(wallet, goal.TargetAmount, s.clamp); err != nil {
			return err
		}
		if err := saveBalances(tx, wallet); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := tx.Model(goal).Updates(map[string]interface{}{
			"completed":      true,
			"completed_date": now,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		goal.Completed = true
		goal.CompletedDate = &now

		result = GoalCompletion{Goal: goal, Wallet: wallet}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, userID, realtime.Wallets, realtime.Updated, result.Wallet.ID)
	publish(s.events, userID, realtime.Goals, realtime.Updated, result.Goal.ID)
	return &result, nil
}

// GetGoalProgress reports how far the funding wallet is from the target.
func (s *goalService) GetGoalProgress(userID, goalID string) (*GoalProgress, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	progress := &GoalProgress{
		GoalID:       goal.ID,
		TargetAmount: goal.TargetAmount,
		Completed:    goal.Completed,
	}
	if goal.Completed {
		progress.Percentage = 100
		return progress, nil
	}

	wallet, err := s.walletService.GetWalletByID(userID, goal.WalletID)
	if err != nil {
		return nil, err
	}
	progress.WalletAmount = wallet.Amount
	progress.Remaining = max(goal.TargetAmount-wallet.Amount, 0)
	progress.CanComplete = wallet.Amount >= goal.TargetAmount
	progress.Percentage = math.Min(float64(wallet.Amount)/float64(goal.TargetAmount)*100, 100)
	progress.DaysLeft = daysUntil(s.now(), goal.TargetDate)

	return progress, nil
}

// daysUntil counts started days from now to target, never below zero.
func daysUntil(now, target time.Time) int {
	d := target.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
