package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/handlers"
	"expensetracker/internal/imagehost"
	"expensetracker/internal/logger"
	"expensetracker/internal/models"
	"expensetracker/internal/realtime"
	"expensetracker/internal/services"
	"expensetracker/internal/testutil"
	"expensetracker/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	config.Set(&config.Config{JWTSecret: "test-secret", JWTExpirationDur: 15 * time.Minute})
}

// testApp holds the full application stack over an in-memory database.
type testApp struct {
	Router *gin.Engine
	Hub    *realtime.Hub
}

func setupApp(t *testing.T, policy string) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	uploader, err := imagehost.NewLocal(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("failed to create image host: %v", err)
	}

	userService := services.NewUserService(db, hub, cache.NewLRU[models.User](16, time.Minute))
	walletService := services.NewWalletService(db, hub)
	transactionService := services.NewTransactionService(db, walletService, hub)
	goalService := services.NewGoalService(db, walletService, hub, policy)
	statisticsService := services.NewStatisticsService(db, time.UTC)
	auditService := services.NewAuditService(db)

	engine := New(Handlers{
		Auth:        handlers.NewAuthHandler(userService, auditService),
		Wallet:      handlers.NewWalletHandler(walletService, auditService),
		Transaction: handlers.NewTransactionHandler(transactionService, auditService),
		Goal:        handlers.NewGoalHandler(goalService, auditService),
		Statistics:  handlers.NewStatisticsHandler(statisticsService),
		Image:       handlers.NewImageHandler(uploader),
		Stream: handlers.NewStreamHandler(hub, handlers.ServiceSnapshots{
			Users: userService, Wallets: walletService, Transactions: transactionService, Goals: goalService,
		}),
	}, Options{DisableRequestLog: true})

	return &testApp{Router: engine, Hub: hub}
}

func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// registerUser registers a user and returns the access and refresh tokens.
func (app *testApp) registerUser(t *testing.T, email string) (string, string) {
	t.Helper()
	body := fmt.Sprintf(`{"name":"Test User","email":%q,"password":"password123"}`, email)
	rec := app.request(http.MethodPost, "/api/v1/auth/register", body, "")
	expectStatus(t, rec, http.StatusCreated)
	result := parseJSON(t, rec)
	return result["token"].(string), result["refresh_token"].(string)
}

func (app *testApp) createWallet(t *testing.T, token string, initial int64) string {
	t.Helper()
	rec := app.request(http.MethodPost, "/api/v1/wallets",
		fmt.Sprintf(`{"name":"Main","initial_amount":%d}`, initial), token)
	expectStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["wallet"].(map[string]interface{})["id"].(string)
}

func (app *testApp) wallet(t *testing.T, token, id string) map[string]interface{} {
	t.Helper()
	rec := app.request(http.MethodGet, "/api/v1/wallets/"+id, "", token)
	expectStatus(t, rec, http.StatusOK)
	return parseJSON(t, rec)["wallet"].(map[string]interface{})
}

func TestHealth(t *testing.T) {
	app := setupApp(t, config.GoalPolicyClamp)
	rec := app.request(http.MethodGet, "/api/health", "", "")
	expectStatus(t, rec, http.StatusOK)
	if parseJSON(t, rec)["status"] != "ok" {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t, config.GoalPolicyClamp)
	for _, path := range []string{"/api/v1/wallets", "/api/v1/goals", "/api/v1/statistics/weekly", "/api/v1/profile"} {
		rec := app.request(http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestWalletTransactionFlow(t *testing.T) {
	app := setupApp(t, config.GoalPolicyClamp)
	token, _ := app.registerUser(t, "flow@test.com")
	walletID := app.createWallet(t, token, 10000)

	// Income then expense.
	rec := app.request(http.MethodPost, "/api/v1/transactions",
		fmt.Sprintf(`{"wallet_id":%q,"type":"income","amount":5000,"description":"Salary"}`, walletID), token)
	expectStatus(t, rec, http.StatusCreated)

	rec = app.request(http.MethodPost, "/api/v1/transactions",
		fmt.Sprintf(`{"wallet_id":%q,"type":"expense","amount":3000,"category":"food"}`, walletID), token)
	expectStatus(t, rec, http.StatusCreated)
	expenseID := parseJSON(t, rec)["transaction"].(map[string]interface{})["id"].(string)

	w := app.wallet(t, token, walletID)
	if w["amount"].(float64) != 12000 {
		t.Errorf("expected amount 12000, got %v", w["amount"])
	}
	if w["total_income"].(float64) != 15000 || w["total_expenses"].(float64) != 3000 {
		t.Errorf("unexpected totals: income=%v expenses=%v", w["total_income"], w["total_expenses"])
	}

	// An expense larger than the balance is refused and changes nothing.
	rec = app.request(http.MethodPost, "/api/v1/transactions",
		fmt.Sprintf(`{"wallet_id":%q,"type":"expense","amount":50000,"category":"rent"}`, walletID), token)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if code := parseJSON(t, rec)["error"].(map[string]interface{})["code"]; code != "INSUFFICIENT_BALANCE" {
		t.Errorf("expected INSUFFICIENT_BALANCE, got %v", code)
	}
	if w := app.wallet(t, token, walletID); w["amount"].(float64) != 12000 {
		t.Errorf("rejected expense moved the balance to %v", w["amount"])
	}

	// Deleting the expense hands the money back.
	rec = app.request(http.MethodDelete, "/api/v1/transactions/"+expenseID, "", token)
	expectStatus(t, rec, http.StatusOK)
	w = app.wallet(t, token, walletID)
	if w["amount"].(float64) != 15000 || w["total_expenses"].(float64) != 0 {
		t.Errorf("after delete: amount=%v expenses=%v", w["amount"], w["total_expenses"])
	}

	rec = app.request(http.MethodGet, "/api/v1/wallets/"+walletID+"/transactions", "", token)
	expectStatus(t, rec, http.StatusOK)
	// The opening balance and the salary remain.
	if total := parseJSON(t, rec)["total_items"].(float64); total != 2 {
		t.Errorf("expected 2 remaining transactions, got %v", total)
	}
}

func TestWalletsAreScopedToOwner(t *testing.T) {
	app := setupApp(t, config.GoalPolicyClamp)
	owner, _ := app.registerUser(t, "owner@test.com")
	other, _ := app.registerUser(t, "other@test.com")
	walletID := app.createWallet(t, owner, 100)

	rec := app.request(http.MethodGet, "/api/v1/wallets/"+walletID, "", other)
	expectStatus(t, rec, http.StatusNotFound)

	rec = app.request(http.MethodPost, "/api/v1/transactions",
		fmt.Sprintf(`{"wallet_id":%q,"type":"income","amount":5}`, walletID), other)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestGoalCompletionFlow(t *testing.T) {
	t.Run("clamp", func(t *testing.T) {
		app := setupApp(t, config.GoalPolicyClamp)
		token, _ := app.registerUser(t, "clamp@test.com")
		walletID := app.createWallet(t, token, 3000)

		rec := app.request(http.MethodPost, "/api/v1/goals",
			fmt.Sprintf(`{"wallet_id":%q,"title":"Bike","target_amount":5000,"target_date":"2030-01-01"}`, walletID), token)
		expectStatus(t, rec, http.StatusCreated)
		goalID := parseJSON(t, rec)["goal"].(map[string]interface{})["id"].(string)

		rec = app.request(http.MethodPost, "/api/v1/goals/"+goalID+"/complete", "", token)
		expectStatus(t, rec, http.StatusOK)
		result := parseJSON(t, rec)
		if result["goal"].(map[string]interface{})["completed"] != true {
			t.Errorf("goal not completed: %v", result["goal"])
		}
		if amount := result["wallet"].(map[string]interface{})["amount"].(float64); amount != 0 {
			t.Errorf("expected clamped balance 0, got %v", amount)
		}

		rec = app.request(http.MethodPost, "/api/v1/goals/"+goalID+"/complete", "", token)
		expectStatus(t, rec, http.StatusConflict)
	})

	t.Run("reject", func(t *testing.T) {
		app := setupApp(t, config.GoalPolicyReject)
		token, _ := app.registerUser(t, "reject@test.com")
		walletID := app.createWallet(t, token, 3000)

		rec := app.request(http.MethodPost, "/api/v1/goals",
			fmt.Sprintf(`{"wallet_id":%q,"title":"Bike","target_amount":5000,"target_date":"2030-01-01"}`, walletID), token)
		expectStatus(t, rec, http.StatusCreated)
		goalID := parseJSON(t, rec)["goal"].(map[string]interface{})["id"].(string)

		rec = app.request(http.MethodPost, "/api/v1/goals/"+goalID+"/complete", "", token)
		expectStatus(t, rec, http.StatusUnprocessableEntity)
		if w := app.wallet(t, token, walletID); w["amount"].(float64) != 3000 {
			t.Errorf("rejected completion moved the balance to %v", w["amount"])
		}

		rec = app.request(http.MethodGet, "/api/v1/goals/"+goalID+"/progress", "", token)
		expectStatus(t, rec, http.StatusOK)
		progress := parseJSON(t, rec)["progress"].(map[string]interface{})
		if progress["can_complete"] != false || progress["remaining"].(float64) != 2000 {
			t.Errorf("unexpected progress: %v", progress)
		}
	})
}

func TestStatisticsFlow(t *testing.T) {
	app := setupApp(t, config.GoalPolicyClamp)
	token, _ := app.registerUser(t, "stats@test.com")
	walletID := app.createWallet(t, token, 0)

	for _, body := range []string{
		fmt.Sprintf(`{"wallet_id":%q,"type":"income","amount":4000}`, walletID),
		fmt.Sprintf(`{"wallet_id":%q,"type":"expense","amount":1500,"category":"food"}`, walletID),
	} {
		expectStatus(t, app.request(http.MethodPost, "/api/v1/transactions", body, token), http.StatusCreated)
	}

	rec := app.request(http.MethodGet, "/api/v1/statistics/weekly", "", token)
	expectStatus(t, rec, http.StatusOK)
	report := parseJSON(t, rec)
	buckets := report["buckets"].([]interface{})
	if len(buckets) != 7 {
		t.Fatalf("expected 7 daily buckets, got %d", len(buckets))
	}
	today := buckets[len(buckets)-1].(map[string]interface{})
	if today["income"].(float64) != 4000 || today["expense"].(float64) != 1500 {
		t.Errorf("unexpected today bucket: %v", today)
	}

	rec = app.request(http.MethodGet, "/api/v1/statistics/monthly?wallet_id="+walletID, "", token)
	expectStatus(t, rec, http.StatusOK)
	if n := len(parseJSON(t, rec)["buckets"].([]interface{})); n != 12 {
		t.Errorf("expected 12 monthly buckets, got %d", n)
	}

	rec = app.request(http.MethodGet, "/api/v1/statistics/highlights", "", token)
	expectStatus(t, rec, http.StatusOK)
	highlights := parseJSON(t, rec)["highlights"].(map[string]interface{})
	if _, ok := highlights["most_profitable_month"]; !ok {
		t.Errorf("missing most_profitable_month: %v", highlights)
	}

	rec = app.request(http.MethodGet, "/api/v1/statistics/weekly?wallet_id=not-a-uuid", "", token)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestRefreshAndLogoutFlow(t *testing.T) {
	app := setupApp(t, config.GoalPolicyClamp)
	_, refresh := app.registerUser(t, "refresh@test.com")

	rec := app.request(http.MethodPost, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refresh), "")
	expectStatus(t, rec, http.StatusOK)
	result := parseJSON(t, rec)
	access := result["token"].(string)
	rotated := result["refresh_token"].(string)

	// The old refresh token was rotated out.
	rec = app.request(http.MethodPost, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refresh), "")
	expectStatus(t, rec, http.StatusUnauthorized)

	expectStatus(t, app.request(http.MethodPost, "/api/v1/auth/logout", "", access), http.StatusOK)

	rec = app.request(http.MethodPost, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, rotated), "")
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestCORSPreflight(t *testing.T) {
	app := setupApp(t, config.GoalPolicyClamp)
	rec := app.request(http.MethodOptions, "/api/v1/wallets", "", "")
	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}
