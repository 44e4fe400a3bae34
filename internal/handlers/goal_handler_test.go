package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/services"
)

func setupGoalRouter(handler *GoalHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/goals", handler.CreateGoal)
	auth.GET("/goals", handler.GetUserGoals)
	auth.GET("/goals/:id", handler.GetGoalByID)
	auth.PUT("/goals/:id", handler.UpdateGoal)
	auth.DELETE("/goals/:id", handler.DeleteGoal)
	auth.POST("/goals/:id/complete", handler.CompleteGoal)
	auth.GET("/goals/:id/progress", handler.GetGoalProgress)
	return r
}

func TestGoalHandler_CreateGoal(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var gotTarget int64
		var gotDate time.Time
		goalSvc := &mockGoalService{
			createGoalFn: func(userID, walletID, title, _ string, target int64, date time.Time, _ string) (*models.Goal, error) {
				gotTarget, gotDate = target, date
				return &models.Goal{Base: models.Base{ID: testOtherID}, UserID: userID, WalletID: walletID, Title: title, TargetAmount: target, TargetDate: date}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals",
			`{"wallet_id":"`+testWalletID+`","title":"Bike","target_amount":20000,"target_date":"2025-12-31"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotTarget != 20000 || gotDate.Year() != 2025 || gotDate.Month() != time.December {
			t.Errorf("unexpected target %d / %v", gotTarget, gotDate)
		}
	})

	t.Run("returns 400 on missing target date", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals", `{"wallet_id":"`+testWalletID+`","title":"Bike","target_amount":20000}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on non-positive target", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals", `{"wallet_id":"`+testWalletID+`","title":"Bike","target_amount":-5,"target_date":"2025-12-31"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGoalHandler_GetUserGoals(t *testing.T) {
	t.Run("parses completed filter", func(t *testing.T) {
		var got *bool
		goalSvc := &mockGoalService{
			getUserGoalsFn: func(_ string, _ pagination.PageRequest, completed *bool) (*pagination.PageResponse[models.Goal], error) {
				got = completed
				resp := pagination.NewPageResponse([]models.Goal{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/goals?completed=true", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got == nil || !*got {
			t.Errorf("expected completed=true, got %v", got)
		}
	})

	t.Run("rejects bad completed value", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/goals?completed=maybe", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGoalHandler_UpdateGoal(t *testing.T) {
	t.Run("returns 409 for completed goal", func(t *testing.T) {
		goalSvc := &mockGoalService{
			updateGoalFn: func(string, string, services.GoalUpdateFields) (*models.Goal, error) {
				return nil, apperrors.ErrGoalCompleted
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/goals/"+testOtherID, `{"title":"Car"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GOAL_COMPLETED")
	})

	t.Run("parses target date", func(t *testing.T) {
		var got services.GoalUpdateFields
		goalSvc := &mockGoalService{
			updateGoalFn: func(_, id string, fields services.GoalUpdateFields) (*models.Goal, error) {
				got = fields
				return &models.Goal{Base: models.Base{ID: id}}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/goals/"+testOtherID, `{"target_date":"2026-06-01T00:00:00Z"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.TargetDate == nil || got.TargetDate.Year() != 2026 || got.Title != nil {
			t.Errorf("unexpected fields %+v", got)
		}
	})
}

func TestGoalHandler_CompleteGoal(t *testing.T) {
	t.Run("returns goal and wallet", func(t *testing.T) {
		goalSvc := &mockGoalService{
			completeGoalFn: func(_, id string) (*services.GoalCompletion, error) {
				return &services.GoalCompletion{
					Goal:   &models.Goal{Base: models.Base{ID: id}, Completed: true},
					Wallet: &models.Wallet{Base: models.Base{ID: testWalletID}, Amount: 300},
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupGoalRouter(NewGoalHandler(goalSvc, audit))

		rec := doRequest(r, "POST", "/goals/"+testOtherID+"/complete", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["goal"].(map[string]interface{})["completed"] != true {
			t.Error("expected completed goal")
		}
		if result["wallet"].(map[string]interface{})["amount"] != float64(300) {
			t.Error("expected wallet amount 300")
		}
		if len(audit.actions) != 1 || audit.actions[0] != "COMPLETE_GOAL" {
			t.Errorf("expected COMPLETE_GOAL audit, got %v", audit.actions)
		}
	})

	t.Run("returns 409 when already completed", func(t *testing.T) {
		goalSvc := &mockGoalService{
			completeGoalFn: func(string, string) (*services.GoalCompletion, error) {
				return nil, apperrors.ErrGoalAlreadyCompleted
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals/"+testOtherID+"/complete", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GOAL_ALREADY_COMPLETED")
	})
}

func TestGoalHandler_GetGoalProgress(t *testing.T) {
	goalSvc := &mockGoalService{
		getGoalProgressFn: func(_, id string) (*services.GoalProgress, error) {
			return &services.GoalProgress{GoalID: id, TargetAmount: 200, WalletAmount: 150, Remaining: 50, Percentage: 75}, nil
		},
	}
	r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/goals/"+testOtherID+"/progress", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	progress := parseJSON(t, rec)["progress"].(map[string]interface{})
	if progress["percentage"] != float64(75) || progress["remaining"] != float64(50) {
		t.Errorf("unexpected progress %v", progress)
	}
}
