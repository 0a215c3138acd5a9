package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/haldiram/distribution/internal/errs"
	"github.com/haldiram/distribution/internal/inventory/entity"
	"github.com/haldiram/distribution/internal/inventory/repository"
	"github.com/haldiram/distribution/internal/testutil"
	"gorm.io/gorm"
)

func setupLotTest(t *testing.T) (*gorm.DB, *LedgerService, *LotService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ledger := NewLedgerService(db, repos)
	lots := NewLotService(db, repos, ledger)
	return db, ledger, lots
}

func mustCreateBatch(t *testing.T, lots *LotService, productID string, qty int, expire *time.Time) *entity.StockBatch {
	t.Helper()
	batch, err := lots.CreateBatch(context.Background(), "actor-1", &CreateBatchRequest{
		ProductID:  productID,
		Quantity:   qty,
		ExpireDate: expire,
	})
	if err != nil {
		t.Fatalf("create batch failed: %v", err)
	}
	return batch
}

func daysFromNow(d int) *time.Time {
	ts := time.Now().AddDate(0, 0, d)
	return &ts
}

func TestCreateBatchCreditsLedger(t *testing.T) {
	db, ledger, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)

	batch := mustCreateBatch(t, lots, "prod-001", 12, daysFromNow(30))
	if batch.BatchNo == "" {
		t.Fatal("expected generated batch number")
	}

	qty, err := ledger.GetLevel(context.Background(), "prod-001")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if qty != 12 {
		t.Fatalf("expected level 12, got %d", qty)
	}

	// The IN movement carries the lot linkage.
	var movement entity.StockMovement
	if err := db.Where("reference = ?", "batch:"+batch.ID).First(&movement).Error; err != nil {
		t.Fatalf("expected IN movement for batch: %v", err)
	}
	if movement.BatchID == nil || *movement.BatchID != batch.ID {
		t.Fatal("movement not linked to batch")
	}
}

func TestCreateBatchRejectsExpiredDate(t *testing.T) {
	db, _, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)

	past := time.Now().AddDate(0, 0, -1)
	_, err := lots.CreateBatch(context.Background(), "actor-1", &CreateBatchRequest{
		ProductID:  "prod-001",
		Quantity:   5,
		ExpireDate: &past,
	})
	var valErr *errs.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAllocateFIFOSpansLots(t *testing.T) {
	db, ledger, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	// Earlier expiry must drain first.
	first := mustCreateBatch(t, lots, "prod-001", 5, daysFromNow(10))
	second := mustCreateBatch(t, lots, "prod-001", 10, daysFromNow(40))

	allocations, err := lots.Allocate(ctx, "actor-1", "prod-001", 8, Strategy{Kind: StrategyFIFO}, "order:test")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].BatchID != first.ID || allocations[0].Quantity != 5 {
		t.Fatalf("first allocation wrong: %+v", allocations[0])
	}
	if allocations[1].BatchID != second.ID || allocations[1].Quantity != 3 {
		t.Fatalf("second allocation wrong: %+v", allocations[1])
	}

	// The drained lot stays active at zero; the second holds the remainder.
	var b1, b2 entity.StockBatch
	db.First(&b1, "id = ?", first.ID)
	db.First(&b2, "id = ?", second.ID)
	if b1.Quantity != 0 || !b1.Active {
		t.Fatalf("expected first lot [0 active], got [%d %v]", b1.Quantity, b1.Active)
	}
	if b2.Quantity != 7 || !b2.Active {
		t.Fatalf("expected second lot [7 active], got [%d %v]", b2.Quantity, b2.Active)
	}

	qty, _ := ledger.GetLevel(ctx, "prod-001")
	if qty != 7 {
		t.Fatalf("expected level 7, got %d", qty)
	}
}

func TestAllocateFIFOPrefersExpiringOverOlder(t *testing.T) {
	db, _, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)

	// No-expiry lot created first must still lose to a dated lot.
	undated := mustCreateBatch(t, lots, "prod-001", 5, nil)
	dated := mustCreateBatch(t, lots, "prod-001", 5, daysFromNow(15))

	allocations, err := lots.Allocate(context.Background(), "actor-1", "prod-001", 5, Strategy{Kind: StrategyFIFO}, "order:test")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if allocations[0].BatchID != dated.ID {
		t.Fatalf("expected dated lot consumed first, got %s (undated %s)", allocations[0].BatchID, undated.ID)
	}
}

func TestAllocateInsufficientIsAllOrNothing(t *testing.T) {
	db, ledger, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	first := mustCreateBatch(t, lots, "prod-001", 5, daysFromNow(10))
	second := mustCreateBatch(t, lots, "prod-001", 3, daysFromNow(40))

	_, err := lots.Allocate(ctx, "actor-1", "prod-001", 10, Strategy{Kind: StrategyFIFO}, "order:test")
	var insErr *errs.InsufficientStockError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insErr.Requested != 10 || insErr.Available != 8 {
		t.Fatalf("unexpected detail: requested=%d available=%d", insErr.Requested, insErr.Available)
	}
	if insErr.Shortfall() != 2 {
		t.Fatalf("expected shortfall 2, got %d", insErr.Shortfall())
	}

	// Nothing may have been consumed.
	var b1, b2 entity.StockBatch
	db.First(&b1, "id = ?", first.ID)
	db.First(&b2, "id = ?", second.ID)
	if b1.Quantity != 5 || b2.Quantity != 3 {
		t.Fatalf("lots touched by failed allocation: [%d %d]", b1.Quantity, b2.Quantity)
	}
	qty, _ := ledger.GetLevel(ctx, "prod-001")
	if qty != 8 {
		t.Fatalf("expected level 8, got %d", qty)
	}
}

func TestAllocateSpecificLot(t *testing.T) {
	db, _, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)

	mustCreateBatch(t, lots, "prod-001", 5, daysFromNow(10))
	target := mustCreateBatch(t, lots, "prod-001", 5, daysFromNow(40))

	allocations, err := lots.Allocate(context.Background(), "actor-1", "prod-001", 4,
		Strategy{Kind: StrategySpecific, BatchID: target.ID}, "order:test")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if len(allocations) != 1 || allocations[0].BatchID != target.ID {
		t.Fatalf("expected single allocation from target lot, got %+v", allocations)
	}

	_, err = lots.Allocate(context.Background(), "actor-1", "prod-001", 4,
		Strategy{Kind: StrategySpecific, BatchID: "no-such-lot"}, "order:test")
	var nfErr *errs.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError for unknown lot, got %v", err)
	}
}

func TestAllocateLIFO(t *testing.T) {
	db, _, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)

	mustCreateBatch(t, lots, "prod-001", 5, nil)
	time.Sleep(10 * time.Millisecond)
	newest := mustCreateBatch(t, lots, "prod-001", 5, nil)

	allocations, err := lots.Allocate(context.Background(), "actor-1", "prod-001", 3,
		Strategy{Kind: StrategyLIFO}, "order:test")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if allocations[0].BatchID != newest.ID {
		t.Fatalf("expected newest lot consumed first under LIFO")
	}
}

func TestReverseAllocationRestoresLots(t *testing.T) {
	db, ledger, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	first := mustCreateBatch(t, lots, "prod-001", 5, daysFromNow(10))
	second := mustCreateBatch(t, lots, "prod-001", 10, daysFromNow(40))

	if _, err := lots.Allocate(ctx, "actor-1", "prod-001", 8, Strategy{Kind: StrategyFIFO}, "order:abc"); err != nil {
		t.Fatalf("allocate failed: %v", err)
	}

	reversals, err := lots.ReverseAllocation(ctx, "actor-2", "order:abc", "order cancelled")
	if err != nil {
		t.Fatalf("reverse allocation failed: %v", err)
	}
	if len(reversals) != 2 {
		t.Fatalf("expected 2 reversals, got %d", len(reversals))
	}

	var b1, b2 entity.StockBatch
	db.First(&b1, "id = ?", first.ID)
	db.First(&b2, "id = ?", second.ID)
	if b1.Quantity != 5 || b2.Quantity != 10 {
		t.Fatalf("lots not restored: [%d %d]", b1.Quantity, b2.Quantity)
	}
	qty, _ := ledger.GetLevel(ctx, "prod-001")
	if qty != 15 {
		t.Fatalf("expected level 15, got %d", qty)
	}

	// A second reversal pass must fail per-movement.
	_, err = lots.ReverseAllocation(ctx, "actor-2", "order:abc", "again")
	var revErr *errs.AlreadyReversedError
	if !errors.As(err, &revErr) {
		t.Fatalf("expected AlreadyReversedError, got %v", err)
	}
}

func TestRetireBatch(t *testing.T) {
	db, ledger, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	batch := mustCreateBatch(t, lots, "prod-001", 9, daysFromNow(2))

	retired, err := lots.RetireBatch(ctx, "actor-1", batch.ID, "failed inspection")
	if err != nil {
		t.Fatalf("retire failed: %v", err)
	}
	if retired.Quantity != 0 || retired.Active {
		t.Fatalf("expected retired lot [0 inactive], got [%d %v]", retired.Quantity, retired.Active)
	}

	qty, _ := ledger.GetLevel(ctx, "prod-001")
	if qty != 0 {
		t.Fatalf("expected level 0, got %d", qty)
	}

	// Retiring again is rejected.
	_, err = lots.RetireBatch(ctx, "actor-1", batch.ID, "")
	var valErr *errs.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// A retired lot is never eligible for allocation.
	_, err = lots.Allocate(ctx, "actor-1", "prod-001", 1, Strategy{Kind: StrategySpecific, BatchID: batch.ID}, "order:test")
	var nfErr *errs.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError for retired lot, got %v", err)
	}
}

func TestRetirementMovementNotReversible(t *testing.T) {
	db, ledger, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	batch := mustCreateBatch(t, lots, "prod-001", 9, nil)
	if _, err := lots.RetireBatch(ctx, "actor-1", batch.ID, "damaged"); err != nil {
		t.Fatalf("retire failed: %v", err)
	}

	var movement entity.StockMovement
	if err := db.Where("reference = ?", "retire:"+batch.ID).First(&movement).Error; err != nil {
		t.Fatalf("expected retirement movement: %v", err)
	}

	_, err := ledger.Reverse(ctx, movement.ID, "actor-2", "changed my mind")
	var valErr *errs.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError for retirement reversal, got %v", err)
	}
}

func TestGetSummary(t *testing.T) {
	db, _, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)

	mustCreateBatch(t, lots, "prod-001", 5, daysFromNow(3))
	mustCreateBatch(t, lots, "prod-001", 10, daysFromNow(60))

	summary, err := lots.GetSummary(context.Background(), "prod-001")
	if err != nil {
		t.Fatalf("get summary failed: %v", err)
	}
	if summary.Quantity != 15 {
		t.Fatalf("expected quantity 15, got %d", summary.Quantity)
	}
	if summary.ActiveLots != 2 {
		t.Fatalf("expected 2 active lots, got %d", summary.ActiveLots)
	}
	if summary.ExpiringSoon != 1 {
		t.Fatalf("expected 1 expiring lot, got %d", summary.ExpiringSoon)
	}
}

func TestConcurrentAllocationsNeverOversell(t *testing.T) {
	db, ledger, lots := setupLotTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	mustCreateBatch(t, lots, "prod-001", 10, daysFromNow(30))

	// Two allocations of 7 against 10 on hand: the row locks must serialize
	// them so exactly one wins and the loser sees the post-win availability.
	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		ref := fmt.Sprintf("order:race-%d", i)
		go func(reference string) {
			<-start
			_, err := lots.Allocate(context.Background(), "actor-1", "prod-001", 7, Strategy{Kind: StrategyFIFO}, reference)
			results <- err
		}(ref)
	}
	close(start)

	var wins, shortfalls int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			wins++
			continue
		}
		var insErr *errs.InsufficientStockError
		if !errors.As(err, &insErr) {
			t.Fatalf("expected InsufficientStockError for the loser, got %v", err)
		}
		if insErr.Available != 3 {
			t.Fatalf("loser should see post-win availability 3, got %d", insErr.Available)
		}
		shortfalls++
	}
	if wins != 1 || shortfalls != 1 {
		t.Fatalf("expected exactly one winner and one shortfall, got %d/%d", wins, shortfalls)
	}

	qty, err := ledger.GetLevel(context.Background(), "prod-001")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if qty != 3 {
		t.Fatalf("expected level 3 after one allocation, got %d", qty)
	}
	var negatives int64
	db.Model(&entity.StockLevel{}).Where("quantity < 0").Count(&negatives)
	if negatives != 0 {
		t.Fatalf("found %d negative stock levels", negatives)
	}
}
