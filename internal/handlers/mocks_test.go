package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"expensetracker/internal/config"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/services"
	"expensetracker/internal/validator"
)

const (
	testUserID   = "0190a8f4-0000-7000-8000-000000000001"
	testWalletID = "0190a8f4-0000-7000-8000-0000000000a1"
	testOtherID  = "0190a8f4-0000-7000-8000-0000000000b2"
)

// --- mock user service ---

type mockUserService struct {
	createUserFn            func(name, email, password string) (*models.User, error)
	getUserByEmailFn        func(email string) (*models.User, error)
	getUserByIDFn           func(id string) (*models.User, error)
	attemptLoginFn          func(email, password string) (*models.User, error)
	storeRefreshTokenHashFn func(userID, tokenHash string) error
	getRefreshTokenHashFn   func(userID string) (string, error)
	clearRefreshTokenHashFn func(userID string) error
	updateProfileFn         func(userID string, fields services.ProfileUpdateFields) (*models.User, error)
}

func (m *mockUserService) CreateUser(name, email, password string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(name, email, password)
	}
	return &models.User{Base: models.Base{ID: testUserID}, Name: name, Email: email}, nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}, Email: "test@example.com", Name: "Test User"}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool { return true }

func (m *mockUserService) AttemptLogin(email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
}

func (m *mockUserService) StoreRefreshTokenHash(userID, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

func (m *mockUserService) ClearRefreshTokenHash(userID string) error {
	if m.clearRefreshTokenHashFn != nil {
		return m.clearRefreshTokenHashFn(userID)
	}
	return nil
}

func (m *mockUserService) UpdateProfile(userID string, fields services.ProfileUpdateFields) (*models.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(userID, fields)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

// --- mock wallet service ---

type mockWalletService struct {
	createWalletFn   func(userID, name, image string, initialAmount int64) (*models.Wallet, error)
	getUserWalletsFn func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Wallet], error)
	getWalletByIDFn  func(userID, walletID string) (*models.Wallet, error)
	updateWalletFn   func(userID, walletID string, fields services.WalletUpdateFields) (*models.Wallet, error)
	deleteWalletFn   func(userID, walletID string) error
}

func (m *mockWalletService) CreateWallet(userID, name, image string, initialAmount int64) (*models.Wallet, error) {
	if m.createWalletFn != nil {
		return m.createWalletFn(userID, name, image, initialAmount)
	}
	return &models.Wallet{Base: models.Base{ID: testWalletID}, UserID: userID, Name: name, Amount: initialAmount}, nil
}

func (m *mockWalletService) GetUserWallets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Wallet], error) {
	if m.getUserWalletsFn != nil {
		return m.getUserWalletsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Wallet{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockWalletService) GetWalletByID(userID, walletID string) (*models.Wallet, error) {
	if m.getWalletByIDFn != nil {
		return m.getWalletByIDFn(userID, walletID)
	}
	return &models.Wallet{Base: models.Base{ID: walletID}, UserID: userID}, nil
}

func (m *mockWalletService) UpdateWallet(userID, walletID string, fields services.WalletUpdateFields) (*models.Wallet, error) {
	if m.updateWalletFn != nil {
		return m.updateWalletFn(userID, walletID, fields)
	}
	return &models.Wallet{Base: models.Base{ID: walletID}, UserID: userID}, nil
}

func (m *mockWalletService) DeleteWallet(userID, walletID string) error {
	if m.deleteWalletFn != nil {
		return m.deleteWalletFn(userID, walletID)
	}
	return nil
}

// --- mock transaction service ---

type mockTransactionService struct {
	createTransactionFn     func(userID, walletID string, transactionType models.TransactionType, amount int64, category, description string, date time.Time, image string) (*models.Transaction, error)
	getUserTransactionsFn   func(userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getWalletTransactionsFn func(userID, walletID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn    func(userID, transactionID string) (*models.Transaction, error)
	updateTransactionFn     func(userID, transactionID string, fields services.TransactionUpdateFields) (*models.Transaction, error)
	deleteTransactionFn     func(userID, transactionID string) error
}

func (m *mockTransactionService) CreateTransaction(userID, walletID string, transactionType models.TransactionType, amount int64, category, description string, date time.Time, image string) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(userID, walletID, transactionType, amount, category, description, date, image)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getUserTransactionsFn != nil {
		return m.getUserTransactionsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetWalletTransactions(userID, walletID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getWalletTransactionsFn != nil {
		return m.getWalletTransactionsFn(userID, walletID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(userID, transactionID)
	}
	return &models.Transaction{Base: models.Base{ID: transactionID}, UserID: userID}, nil
}

func (m *mockTransactionService) UpdateTransaction(userID, transactionID string, fields services.TransactionUpdateFields) (*models.Transaction, error) {
	if m.updateTransactionFn != nil {
		return m.updateTransactionFn(userID, transactionID, fields)
	}
	return &models.Transaction{Base: models.Base{ID: transactionID}}, nil
}

func (m *mockTransactionService) DeleteTransaction(userID, transactionID string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(userID, transactionID)
	}
	return nil
}

// --- mock goal service ---

type mockGoalService struct {
	createGoalFn      func(userID, walletID, title, description string, targetAmount int64, targetDate time.Time, image string) (*models.Goal, error)
	getUserGoalsFn    func(userID string, page pagination.PageRequest, completed *bool) (*pagination.PageResponse[models.Goal], error)
	getGoalByIDFn     func(userID, goalID string) (*models.Goal, error)
	updateGoalFn      func(userID, goalID string, fields services.GoalUpdateFields) (*models.Goal, error)
	deleteGoalFn      func(userID, goalID string) error
	completeGoalFn    func(userID, goalID string) (*services.GoalCompletion, error)
	getGoalProgressFn func(userID, goalID string) (*services.GoalProgress, error)
}

func (m *mockGoalService) CreateGoal(userID, walletID, title, description string, targetAmount int64, targetDate time.Time, image string) (*models.Goal, error) {
	if m.createGoalFn != nil {
		return m.createGoalFn(userID, walletID, title, description, targetAmount, targetDate, image)
	}
	return &models.Goal{}, nil
}

func (m *mockGoalService) GetUserGoals(userID string, page pagination.PageRequest, completed *bool) (*pagination.PageResponse[models.Goal], error) {
	if m.getUserGoalsFn != nil {
		return m.getUserGoalsFn(userID, page, completed)
	}
	resp := pagination.NewPageResponse([]models.Goal{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockGoalService) GetGoalByID(userID, goalID string) (*models.Goal, error) {
	if m.getGoalByIDFn != nil {
		return m.getGoalByIDFn(userID, goalID)
	}
	return &models.Goal{Base: models.Base{ID: goalID}}, nil
}

func (m *mockGoalService) UpdateGoal(userID, goalID string, fields services.GoalUpdateFields) (*models.Goal, error) {
	if m.updateGoalFn != nil {
		return m.updateGoalFn(userID, goalID, fields)
	}
	return &models.Goal{Base: models.Base{ID: goalID}}, nil
}

func (m *mockGoalService) DeleteGoal(userID, goalID string) error {
	if m.deleteGoalFn != nil {
		return m.deleteGoalFn(userID, goalID)
	}
	return nil
}

func (m *mockGoalService) CompleteGoal(userID, goalID string) (*services.GoalCompletion, error) {
	if m.completeGoalFn != nil {
		return m.completeGoalFn(userID, goalID)
	}
	return &services.GoalCompletion{Goal: &models.Goal{}, Wallet: &models.Wallet{}}, nil
}

func (m *mockGoalService) GetGoalProgress(userID, goalID string) (*services.GoalProgress, error) {
	if m.getGoalProgressFn != nil {
		return m.getGoalProgressFn(userID, goalID)
	}
	return &services.GoalProgress{GoalID: goalID}, nil
}

// --- mock audit service ---

type mockAuditService struct {
	actions []string
}

func (m *mockAuditService) Log(_, action, _, _, _ string, _ map[string]interface{}) {
	m.actions = append(m.actions, action)
}

// verify interface compliance
var (
	_ services.UserServicer        = (*mockUserService)(nil)
	_ services.WalletServicer      = (*mockWalletService)(nil)
	_ services.TransactionServicer = (*mockTransactionService)(nil)
	_ services.GoalServicer        = (*mockGoalService)(nil)
	_ services.AuditServicer       = (*mockAuditService)(nil)
)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
	config.Set(&config.Config{JWTSecret: "test-secret", JWTExpirationDur: 15 * time.Minute})
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertSuccess(t *testing.T, result map[string]interface{}) {
	t.Helper()
	if result["success"] != true {
		t.Errorf("expected success=true, got %v in %v", result["success"], result)
	}
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	if result["success"] != false {
		t.Errorf("expected success=false, got %v", result["success"])
	}
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
