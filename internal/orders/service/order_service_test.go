package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haldiram/distribution/internal/audit"
	catentity "github.com/haldiram/distribution/internal/catalog/entity"
	catrepo "github.com/haldiram/distribution/internal/catalog/repository"
	"github.com/haldiram/distribution/internal/errs"
	invent "github.com/haldiram/distribution/internal/inventory/entity"
	invrepo "github.com/haldiram/distribution/internal/inventory/repository"
	invsvc "github.com/haldiram/distribution/internal/inventory/service"
	"github.com/haldiram/distribution/internal/orders/entity"
	"github.com/haldiram/distribution/internal/orders/repository"
	"github.com/haldiram/distribution/internal/testutil"
	"gorm.io/gorm"
)

type orderTestEnv struct {
	db     *gorm.DB
	orders *OrderService
	lots   *invsvc.LotService
	ledger *invsvc.LedgerService
}

func setupOrderTest(t *testing.T) *orderTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	invRepos := invrepo.NewRepositories(db)
	ledger := invsvc.NewLedgerService(db, invRepos)
	lots := invsvc.NewLotService(db, invRepos, ledger)

	ordRepos := repository.NewRepositories(db)
	catRepos := catrepo.NewRepositories(db)
	auditRepo := audit.NewRepository(db)

	return &orderTestEnv{
		db:     db,
		orders: NewOrderService(db, ordRepos, catRepos, lots, auditRepo),
		lots:   lots,
		ledger: ledger,
	}
}

func (e *orderTestEnv) seedStock(t *testing.T, productID string, qty int) {
	t.Helper()
	expire := time.Now().AddDate(0, 0, 30)
	_, err := e.lots.CreateBatch(context.Background(), "seeder", &invsvc.CreateBatchRequest{
		ProductID:  productID,
		Quantity:   qty,
		ExpireDate: &expire,
	})
	if err != nil {
		t.Fatalf("seed stock failed: %v", err)
	}
}

func TestCreateOrderUsesMasterPrices(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	testutil.SeedProduct(t, env.db, "prod-002", "SKU-002", 20, 5)

	order, err := env.orders.Create(context.Background(), "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{
			{ProductID: "prod-001", Quantity: 2},
			{ProductID: "prod-002", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != entity.OrderStatusPlaced {
		t.Fatalf("expected placed, got %s", order.Status)
	}
	if order.Total != 2*50+3*20 {
		t.Fatalf("expected total 160, got %v", order.Total)
	}
	if order.OrderCode == "" {
		t.Fatal("expected generated order code")
	}

	// Audit entry written with the creation.
	var logs []audit.Log
	env.db.Where("entity_type = ? AND entity_id = ?", "order", order.ID).Find(&logs)
	if len(logs) != 1 || logs[0].Action != "create" {
		t.Fatalf("expected single create audit entry, got %+v", logs)
	}
}

func TestCreateOrderRejectsInactiveProduct(t *testing.T) {
	env := setupOrderTest(t)
	product := testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	product.Active = false
	env.db.Save(product)

	_, err := env.orders.Create(context.Background(), "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{{ProductID: "prod-001", Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected error for inactive product")
	}
}

func TestOrderFullLifecycle(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	testutil.SeedVehicle(t, env.db, "veh-1", "MH-12-AB-1234")
	env.seedStock(t, "prod-001", 20)
	ctx := context.Background()

	order, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{{ProductID: "prod-001", Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	vehicleID := "veh-1"
	if order, err = env.orders.Confirm(ctx, "staff-1", catentity.RoleStaff, order.ID, &vehicleID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if order.Status != entity.OrderStatusConfirmed || order.VehicleID == nil {
		t.Fatalf("confirm state wrong: %s", order.Status)
	}

	if order, err = env.orders.CheckPayment(ctx, "acct-1", catentity.RoleAccountant, order.ID); err != nil {
		t.Fatalf("payment check failed: %v", err)
	}

	if order, err = env.orders.Process(ctx, "staff-1", catentity.RoleStaff, order.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if order.Status != entity.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", order.Status)
	}

	// Allocation drained the level.
	qty, _ := env.ledger.GetLevel(ctx, "prod-001")
	if qty != 15 {
		t.Fatalf("expected level 15 after processing, got %d", qty)
	}

	if order, err = env.orders.Ship(ctx, "staff-1", catentity.RoleStaff, order.ID); err != nil {
		t.Fatalf("ship failed: %v", err)
	}
	if order, err = env.orders.Receive(ctx, "cust-1", catentity.RoleVendor, order.ID); err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if order.Status != entity.OrderStatusReceived {
		t.Fatalf("expected received, got %s", order.Status)
	}

	// Full trail recorded.
	var count int64
	env.db.Model(&audit.Log{}).Where("entity_type = ? AND entity_id = ?", "order", order.ID).Count(&count)
	if count != 6 {
		t.Fatalf("expected 6 audit entries, got %d", count)
	}
}

func TestProcessShortfallRollsBackAllLines(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	testutil.SeedProduct(t, env.db, "prod-002", "SKU-002", 20, 5)
	env.seedStock(t, "prod-001", 10)
	env.seedStock(t, "prod-002", 2) // not enough for the second line
	ctx := context.Background()

	order, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{
			{ProductID: "prod-001", Quantity: 5},
			{ProductID: "prod-002", Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err = env.orders.Confirm(ctx, "staff-1", catentity.RoleStaff, order.ID, nil); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	_, err = env.orders.Process(ctx, "staff-1", catentity.RoleStaff, order.ID)
	var insErr *errs.InsufficientStockError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insErr.ProductID != "prod-002" {
		t.Fatalf("expected shortfall on prod-002, got %s", insErr.ProductID)
	}

	// The first line's allocation must not survive the failure.
	qty1, _ := env.ledger.GetLevel(ctx, "prod-001")
	qty2, _ := env.ledger.GetLevel(ctx, "prod-002")
	if qty1 != 10 || qty2 != 2 {
		t.Fatalf("stock consumed by failed process: [%d %d]", qty1, qty2)
	}

	// Order stays confirmed and no OUT movements were kept.
	reloaded, _ := env.orders.Get(ctx, order.ID)
	if reloaded.Status != entity.OrderStatusConfirmed {
		t.Fatalf("expected confirmed after failed process, got %s", reloaded.Status)
	}
	movements, err := invrepo.NewMovementRepository(env.db).FindByReference(ctx, "order:"+order.ID)
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movements) != 0 {
		t.Fatalf("expected no surviving movements, got %d", len(movements))
	}
}

func TestTransitionTableEnforced(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	order, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{{ProductID: "prod-001", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Cannot ship straight from placed.
	_, err = env.orders.Ship(ctx, "staff-1", catentity.RoleStaff, order.ID)
	var transErr *errs.InvalidStateTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
	if transErr.From != entity.OrderStatusPlaced || transErr.Event != "ship" {
		t.Fatalf("unexpected detail: %+v", transErr)
	}

	// Cancelled is terminal.
	if _, err = env.orders.Cancel(ctx, "cust-1", catentity.RoleVendor, order.ID, "changed mind"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	_, err = env.orders.Confirm(ctx, "staff-1", catentity.RoleStaff, order.ID, nil)
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidStateTransitionError out of cancelled, got %v", err)
	}
}

func TestCancelOwnershipEnforced(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	order, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{{ProductID: "prod-001", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = env.orders.Cancel(ctx, "cust-2", catentity.RoleVendor, order.ID, "")
	var forbErr *errs.ForbiddenError
	if !errors.As(err, &forbErr) {
		t.Fatalf("expected ForbiddenError for foreign cancel, got %v", err)
	}

	// Staff may cancel anyone's order.
	if _, err = env.orders.Cancel(ctx, "staff-1", catentity.RoleStaff, order.ID, "out of area"); err != nil {
		t.Fatalf("staff cancel failed: %v", err)
	}
}

func TestReturnCreatesQuarantineLots(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	env.seedStock(t, "prod-001", 10)
	ctx := context.Background()

	order, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{{ProductID: "prod-001", Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err = env.orders.Confirm(ctx, "staff-1", catentity.RoleStaff, order.ID, nil); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err = env.orders.Process(ctx, "staff-1", catentity.RoleStaff, order.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if _, err = env.orders.Ship(ctx, "staff-1", catentity.RoleStaff, order.ID); err != nil {
		t.Fatalf("ship failed: %v", err)
	}

	order, err = env.orders.Return(ctx, "cust-1", catentity.RoleVendor, order.ID, "damaged in transit")
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if order.Status != entity.OrderStatusReturned {
		t.Fatalf("expected returned, got %s", order.Status)
	}

	// Stock came back as a fresh no-expiry lot.
	qty, _ := env.ledger.GetLevel(ctx, "prod-001")
	if qty != 10 {
		t.Fatalf("expected level 10 after return, got %d", qty)
	}
	var lot invent.StockBatch
	if err := env.db.Where("batch_no LIKE ?", "RET-"+order.OrderCode+"-%").First(&lot).Error; err != nil {
		t.Fatalf("expected quarantine lot: %v", err)
	}
	if lot.ExpireDate != nil {
		t.Fatal("quarantine lot must have no expiry")
	}
	if lot.Quantity != 4 || !lot.Active {
		t.Fatalf("quarantine lot wrong: [%d %v]", lot.Quantity, lot.Active)
	}
}

func TestUpdateItemsRecordsHistory(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	testutil.SeedProduct(t, env.db, "prod-002", "SKU-002", 20, 5)
	ctx := context.Background()

	order, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{{ProductID: "prod-001", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Change quantity and add a product.
	order, err = env.orders.UpdateItems(ctx, "cust-1", catentity.RoleVendor, order.ID, &UpdateItemsRequest{
		Items: []OrderLine{
			{ProductID: "prod-001", Quantity: 5},
			{ProductID: "prod-002", Quantity: 1},
		},
		Reason: "customer called",
	})
	if err != nil {
		t.Fatalf("update items failed: %v", err)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.Total != 5*50+1*20 {
		t.Fatalf("expected total 270, got %v", order.Total)
	}

	history, err := env.orders.ItemHistory(ctx, order.ID)
	if err != nil {
		t.Fatalf("item history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	for _, h := range history {
		switch h.ProductID {
		case "prod-001":
			if h.OldQty != 2 || h.NewQty != 5 {
				t.Fatalf("prod-001 history wrong: %d -> %d", h.OldQty, h.NewQty)
			}
		case "prod-002":
			if h.OldQty != 0 || h.NewQty != 1 {
				t.Fatalf("prod-002 history wrong: %d -> %d", h.OldQty, h.NewQty)
			}
		default:
			t.Fatalf("unexpected history row for %s", h.ProductID)
		}
	}
}

func TestDuplicateItemLinesRejected(t *testing.T) {
	env := setupOrderTest(t)
	testutil.SeedProduct(t, env.db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	var valErr *errs.ValidationError
	_, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{
			{ProductID: "prod-001", Quantity: 2},
			{ProductID: "prod-001", Quantity: 3},
		},
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError for duplicate create lines, got %v", err)
	}

	order, err := env.orders.Create(ctx, "cust-1", catentity.RoleVendor, &CreateOrderRequest{
		Items: []OrderLine{{ProductID: "prod-001", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A repeated line would double-count its subtotal in the recompute.
	_, err = env.orders.UpdateItems(ctx, "cust-1", catentity.RoleVendor, order.ID, &UpdateItemsRequest{
		Items: []OrderLine{
			{ProductID: "prod-001", Quantity: 4},
			{ProductID: "prod-001", Quantity: 4},
		},
		Reason: "fat finger",
	})
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError for duplicate update lines, got %v", err)
	}

	reloaded, _ := env.orders.Get(ctx, order.ID)
	if reloaded.Total != 100 {
		t.Fatalf("total should be untouched, got %v", reloaded.Total)
	}
}
