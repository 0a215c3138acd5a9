package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/haldiram/distribution/internal/errs"
	"github.com/haldiram/distribution/internal/inventory/entity"
	"github.com/haldiram/distribution/internal/inventory/repository"
	"github.com/haldiram/distribution/internal/testutil"
	"gorm.io/gorm"
)

func setupLedgerTest(t *testing.T) (*gorm.DB, *LedgerService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return db, NewLedgerService(db, repos)
}

func TestApplyMovementUpdatesLevel(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001",
		Quantity:  10,
		Kind:      entity.MovementIn,
		Reference: "seed",
	})
	if err != nil {
		t.Fatalf("apply IN failed: %v", err)
	}

	_, err = svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001",
		Quantity:  -4,
		Kind:      entity.MovementOut,
		Reference: "pick",
	})
	if err != nil {
		t.Fatalf("apply OUT failed: %v", err)
	}

	qty, err := svc.GetLevel(ctx, "prod-001")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if qty != 6 {
		t.Fatalf("expected level 6, got %d", qty)
	}
}

func TestApplyMovementRejectsNegativeStock(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	if _, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001", Quantity: 5, Kind: entity.MovementIn,
	}); err != nil {
		t.Fatalf("apply IN failed: %v", err)
	}

	_, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001", Quantity: -6, Kind: entity.MovementOut,
	})
	var negErr *errs.NegativeStockError
	if !errors.As(err, &negErr) {
		t.Fatalf("expected NegativeStockError, got %v", err)
	}
	if negErr.Current != 5 || negErr.Delta != -6 {
		t.Fatalf("unexpected error detail: current=%d delta=%d", negErr.Current, negErr.Delta)
	}

	// Level must be untouched after the rejected movement.
	qty, _ := svc.GetLevel(ctx, "prod-001")
	if qty != 5 {
		t.Fatalf("expected level 5 after rejection, got %d", qty)
	}
}

func TestApplyMovementUnknownProduct(t *testing.T) {
	_, svc := setupLedgerTest(t)

	qty, err := svc.GetLevel(context.Background(), "no-such-product")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if qty != 0 {
		t.Fatalf("expected zero level for unknown product, got %d", qty)
	}
}

func TestReverseRoundTrip(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	original, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001", Quantity: 8, Kind: entity.MovementIn,
	})
	if err != nil {
		t.Fatalf("apply IN failed: %v", err)
	}

	reversal, err := svc.Reverse(ctx, original.ID, "actor-2", "keyed in error")
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if reversal.Kind != entity.MovementReverse {
		t.Fatalf("expected REVERSE kind, got %s", reversal.Kind)
	}
	if reversal.Quantity != -8 {
		t.Fatalf("expected negated quantity -8, got %d", reversal.Quantity)
	}
	if reversal.ReversalOf == nil || *reversal.ReversalOf != original.ID {
		t.Fatalf("reversal does not point at original")
	}

	qty, _ := svc.GetLevel(ctx, "prod-001")
	if qty != 0 {
		t.Fatalf("expected level 0 after round trip, got %d", qty)
	}
}

func TestReverseTwiceRejected(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	original, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001", Quantity: 8, Kind: entity.MovementIn,
	})
	if err != nil {
		t.Fatalf("apply IN failed: %v", err)
	}

	if _, err := svc.Reverse(ctx, original.ID, "actor-2", ""); err != nil {
		t.Fatalf("first reverse failed: %v", err)
	}

	_, err = svc.Reverse(ctx, original.ID, "actor-2", "")
	var revErr *errs.AlreadyReversedError
	if !errors.As(err, &revErr) {
		t.Fatalf("expected AlreadyReversedError, got %v", err)
	}

	qty, _ := svc.GetLevel(ctx, "prod-001")
	if qty != 0 {
		t.Fatalf("expected level 0, got %d", qty)
	}
}

func TestReverseUnknownMovement(t *testing.T) {
	_, svc := setupLedgerTest(t)

	_, err := svc.Reverse(context.Background(), "no-such-movement", "actor-1", "")
	var nfErr *errs.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSetAbsolute(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	if _, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001", Quantity: 10, Kind: entity.MovementIn,
	}); err != nil {
		t.Fatalf("apply IN failed: %v", err)
	}

	movement, err := svc.SetAbsolute(ctx, "prod-001", 3, "actor-1", "stocktake")
	if err != nil {
		t.Fatalf("set absolute failed: %v", err)
	}
	if movement.Kind != entity.MovementAdjust {
		t.Fatalf("expected ADJUST kind, got %s", movement.Kind)
	}
	if movement.Quantity != -7 {
		t.Fatalf("expected delta -7, got %d", movement.Quantity)
	}

	qty, _ := svc.GetLevel(ctx, "prod-001")
	if qty != 3 {
		t.Fatalf("expected level 3, got %d", qty)
	}
}

func TestSetAbsoluteSameValueIsNoOp(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	if _, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
		ProductID: "prod-001", Quantity: 10, Kind: entity.MovementIn,
	}); err != nil {
		t.Fatalf("apply IN failed: %v", err)
	}

	_, err := svc.SetAbsolute(ctx, "prod-001", 10, "actor-1", "stocktake")
	var noopErr *errs.NoOpError
	if !errors.As(err, &noopErr) {
		t.Fatalf("expected NoOpError, got %v", err)
	}

	// No movement may be written for the no-op.
	var count int64
	db.Model(&entity.StockMovement{}).Where("kind = ?", entity.MovementAdjust).Count(&count)
	if count != 0 {
		t.Fatalf("expected no ADJUST movements, found %d", count)
	}
}

func TestSetAbsoluteRejectsNegativeTarget(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)

	_, err := svc.SetAbsolute(context.Background(), "prod-001", -1, "actor-1", "")
	var valErr *errs.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestConcurrentFirstUseCreatesOneLevel(t *testing.T) {
	db, svc := setupLedgerTest(t)
	testutil.SeedProduct(t, db, "prod-001", "SKU-001", 50, 12)
	ctx := context.Background()

	// Both receipts race on the lazy level create; the insert conflict must
	// fall through to the locked row, never surface as a duplicate-key error.
	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(n int) {
			<-start
			_, err := svc.ApplyMovement(ctx, "actor-1", &ApplyMovementRequest{
				ProductID: "prod-001",
				Quantity:  5,
				Kind:      entity.MovementIn,
				Reference: fmt.Sprintf("seed-%d", n),
			})
			results <- err
		}(i)
	}
	close(start)
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Fatalf("concurrent first receipt failed: %v", err)
		}
	}

	qty, err := svc.GetLevel(ctx, "prod-001")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if qty != 10 {
		t.Fatalf("expected level 10, got %d", qty)
	}
	var levels int64
	db.Model(&entity.StockLevel{}).Where("product_id = ?", "prod-001").Count(&levels)
	if levels != 1 {
		t.Fatalf("expected a single level row, got %d", levels)
	}
}
