package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/haldiram/distribution/internal/inventory/repository"
	"github.com/haldiram/distribution/internal/inventory/service"
	"github.com/haldiram/distribution/internal/testutil"
)

func setupStockTest(t *testing.T) (*testutil.TestEnv, *service.LotService) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	ledger := service.NewLedgerService(db, repos)
	lots := service.NewLotService(db, repos, ledger)
	report := service.NewReportService(repos)

	stockH := NewStockHandler(ledger, report)
	batchH := NewBatchHandler(lots)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/stock/levels/:productId", stockH.GetLevel)
	api.POST("/stock/movements", stockH.ApplyMovement)
	api.POST("/stock/movements/:id/reverse", stockH.ReverseMovement)
	api.POST("/stock/levels/set", stockH.SetAbsolute)
	api.POST("/batches", batchH.CreateBatch)
	api.POST("/allocations", batchH.Allocate)

	return &testutil.TestEnv{DB: db, Router: router, T: t}, lots
}

func TestStockMovementEndpoints(t *testing.T) {
	env, _ := setupStockTest(t)
	token := testutil.StaffToken()
	testutil.SeedProduct(t, env.DB, "prod-001", "SKU-001", 50, 12)

	// Apply an IN movement.
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/stock/movements", map[string]interface{}{
		"product_id": "prod-001",
		"quantity":   10,
		"kind":       "IN",
		"reference":  "manual",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	movementID := resp["data"].(map[string]interface{})["id"].(string)

	// Level reflects it.
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/stock/levels/prod-001", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["quantity"].(float64) != 10 {
		t.Fatalf("expected quantity 10, got %v", resp["data"])
	}

	// Reverse it.
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/stock/movements/"+movementID+"/reverse",
		map[string]interface{}{"reason": "typo"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// A second reversal conflicts.
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/stock/movements/"+movementID+"/reverse",
		map[string]interface{}{"reason": "again"}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestNegativeStockResponseCode(t *testing.T) {
	env, _ := setupStockTest(t)
	token := testutil.StaffToken()
	testutil.SeedProduct(t, env.DB, "prod-001", "SKU-001", 50, 12)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/stock/movements", map[string]interface{}{
		"product_id": "prod-001",
		"quantity":   -5,
		"kind":       "OUT",
	}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40902 {
		t.Fatalf("expected code 40902, got %v", resp["code"])
	}
}

func TestInsufficientStockResponseCode(t *testing.T) {
	env, _ := setupStockTest(t)
	token := testutil.StaffToken()
	testutil.SeedProduct(t, env.DB, "prod-001", "SKU-001", 50, 12)

	expire := time.Now().AddDate(0, 0, 30).Format(time.RFC3339)
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/batches", map[string]interface{}{
		"product_id":  "prod-001",
		"quantity":    3,
		"expire_date": expire,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/allocations", map[string]interface{}{
		"product_id": "prod-001",
		"quantity":   5,
		"strategy":   "FIFO",
		"reference":  "order:test",
	}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40901 {
		t.Fatalf("expected code 40901, got %v", resp["code"])
	}
}

func TestUnauthorizedRequestRejected(t *testing.T) {
	env, _ := setupStockTest(t)

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/stock/levels/prod-001", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
