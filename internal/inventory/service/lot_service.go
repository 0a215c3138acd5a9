package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haldiram/distribution/internal/errs"
	"github.com/haldiram/distribution/internal/inventory/entity"
	"github.com/haldiram/distribution/internal/inventory/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Allocation strategies
const (
	StrategyFIFO     = "FIFO"
	StrategyLIFO     = "LIFO"
	StrategySpecific = "SPECIFIC"
)

// Strategy names how lots are selected to satisfy an allocation. SPECIFIC
// consumes only from the named lot.
type Strategy struct {
	Kind    string `json:"kind"`
	BatchID string `json:"batch_id,omitempty"`
}

// Allocation one lot's contribution to a satisfied request.
type Allocation struct {
	BatchID    string `json:"batch_id"`
	MovementID string `json:"movement_id"`
	Quantity   int    `json:"quantity"`
}

// LotService owns expiry-dated lots and the allocation engine that consumes
// them. All quantity effects flow through the ledger so the aggregate level
// stays reconciled with lot contents.
type LotService struct {
	db        *gorm.DB
	batchRepo *repository.BatchRepository
	ledger    *LedgerService
	cache     *SummaryCache
}

func NewLotService(db *gorm.DB, repos *repository.Repositories, ledger *LedgerService) *LotService {
	return &LotService{
		db:        db,
		batchRepo: repos.Batch,
		ledger:    ledger,
	}
}

func (s *LotService) SetCache(cache *SummaryCache) {
	s.cache = cache
}

// CreateBatchRequest a received lot.
type CreateBatchRequest struct {
	ProductID  string     `json:"product_id" binding:"required"`
	Quantity   int        `json:"quantity" binding:"required"`
	Unit       string     `json:"unit"`
	ExpireDate *time.Time `json:"expire_date"`
	Notes      string     `json:"notes"`
}

// CreateBatch records a new lot and credits the ledger in one transaction.
func (s *LotService) CreateBatch(ctx context.Context, actorID string, req *CreateBatchRequest) (*entity.StockBatch, error) {
	if req.Quantity <= 0 {
		return nil, &errs.ValidationError{Field: "quantity", Reason: "must be > 0"}
	}
	if req.ExpireDate != nil && req.ExpireDate.Before(time.Now()) {
		return nil, &errs.ValidationError{Field: "expire_date", Reason: "already expired"}
	}

	batchNo, err := s.batchRepo.GenerateBatchNo(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate batch no: %w", err)
	}

	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}
	batch := &entity.StockBatch{
		ID:         uuid.New().String()[:32],
		BatchNo:    batchNo,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Unit:       unit,
		ExpireDate: req.ExpireDate,
		Active:     true,
		CreatedBy:  actorID,
		Notes:      req.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		_, err := s.ledger.ApplyMovementTx(tx, actorID, &ApplyMovementRequest{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Kind:      entity.MovementIn,
			Reference: "batch:" + batch.ID,
			Notes:     req.Notes,
			BatchID:   &batch.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.ProductID)
	return batch, nil
}

// ReceiveLotTx records an incoming quantity as a fresh lot inside the
// caller's transaction: PO receipts and order returns (quarantine lots, no
// expiry). The batch number is caller-supplied so multi-line operations stay
// collision-free without a sequence round-trip.
func (s *LotService) ReceiveLotTx(tx *gorm.DB, actorID, productID string, quantity int, batchNo string, expireDate *time.Time, reference, notes string) error {
	if quantity <= 0 {
		return &errs.ValidationError{Field: "quantity", Reason: "must be > 0"}
	}
	batch := &entity.StockBatch{
		ID:         uuid.New().String()[:32],
		BatchNo:    batchNo,
		ProductID:  productID,
		Quantity:   quantity,
		Unit:       "pcs",
		ExpireDate: expireDate,
		Active:     true,
		CreatedBy:  actorID,
		Notes:      notes,
	}
	if err := tx.Create(batch).Error; err != nil {
		return fmt.Errorf("create lot: %w", err)
	}
	if reference == "" {
		reference = "batch:" + batch.ID
	}
	_, err := s.ledger.ApplyMovementTx(tx, actorID, &ApplyMovementRequest{
		ProductID: productID,
		Quantity:  quantity,
		Kind:      entity.MovementIn,
		Reference: reference,
		Notes:     notes,
		BatchID:   &batch.ID,
	})
	return err
}

func (s *LotService) GetBatch(ctx context.Context, id string) (*entity.StockBatch, error) {
	return s.batchRepo.FindByID(ctx, id)
}

func (s *LotService) ListBatches(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.StockBatch, int64, error) {
	return s.batchRepo.FindAll(ctx, page, pageSize, filters)
}

// ListActiveLots active non-empty lots for a product in consumption order.
func (s *LotService) ListActiveLots(ctx context.Context, productID string) ([]entity.StockBatch, error) {
	return s.batchRepo.FindActiveByProduct(ctx, productID)
}

func (s *LotService) ExpiringSoon(ctx context.Context, days int) ([]entity.StockBatch, error) {
	if days <= 0 {
		days = 7
	}
	return s.batchRepo.FindExpiringSoon(ctx, days)
}

// Allocate consumes lots to satisfy the requested quantity. All-or-nothing
// per call: a shortfall rolls back every decrement and reports
// InsufficientStockError.
func (s *LotService) Allocate(ctx context.Context, actorID, productID string, quantity int, strategy Strategy, reference string) ([]Allocation, error) {
	var allocations []Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		allocations, err = s.AllocateTx(tx, actorID, productID, quantity, strategy, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)
	return allocations, nil
}

// AllocateTx transactional form used by order processing to allocate several
// lines in one transaction. Eligible lot rows are locked up front so two
// concurrent allocations cannot both take the same units.
func (s *LotService) AllocateTx(tx *gorm.DB, actorID, productID string, quantity int, strategy Strategy, reference string) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, &errs.ValidationError{Field: "quantity", Reason: "must be > 0"}
	}

	lots, err := s.lockEligibleLots(tx, productID, strategy)
	if err != nil {
		return nil, err
	}

	available := 0
	for _, lot := range lots {
		available += lot.Quantity
	}
	if available < quantity {
		return nil, &errs.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: available,
		}
	}

	var allocations []Allocation
	remaining := quantity
	for i := range lots {
		if remaining == 0 {
			break
		}
		lot := &lots[i]
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}

		lot.Quantity -= take
		if err := tx.Save(lot).Error; err != nil {
			return nil, fmt.Errorf("decrement lot %s: %w", lot.ID, err)
		}

		movement, err := s.ledger.ApplyMovementTx(tx, actorID, &ApplyMovementRequest{
			ProductID: productID,
			Quantity:  -take,
			Kind:      entity.MovementOut,
			Reference: reference,
			BatchID:   &lot.ID,
		})
		if err != nil {
			return nil, err
		}

		allocations = append(allocations, Allocation{
			BatchID:    lot.ID,
			MovementID: movement.ID,
			Quantity:   take,
		})
		remaining -= take
	}
	return allocations, nil
}

// ReverseAllocation restores every lot consumed under a correlation id by
// reversing its OUT movements, all in one transaction.
func (s *LotService) ReverseAllocation(ctx context.Context, actorID, reference, reason string) ([]entity.StockMovement, error) {
	var reversals []entity.StockMovement
	var productID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var outs []entity.StockMovement
		err := tx.Where("reference = ? AND kind = ?", reference, entity.MovementOut).
			Order("created_at ASC").
			Find(&outs).Error
		if err != nil {
			return err
		}
		if len(outs) == 0 {
			return &errs.NotFoundError{Resource: "allocation", ID: reference}
		}
		for _, out := range outs {
			reversal, err := s.ledger.ReverseTx(tx, out.ID, actorID, reason)
			if err != nil {
				return err
			}
			reversals = append(reversals, *reversal)
			productID = out.ProductID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)
	return reversals, nil
}

// RetireBatch removes a lot's remaining quantity from stock and deactivates
// it. Final: retirement movements are not reversible.
func (s *LotService) RetireBatch(ctx context.Context, actorID, batchID, reason string) (*entity.StockBatch, error) {
	var retired *entity.StockBatch
	var productID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch entity.StockBatch
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", batchID).
			First(&batch).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return &errs.NotFoundError{Resource: "batch", ID: batchID}
			}
			return err
		}
		if !batch.Active {
			return &errs.ValidationError{Field: "batch_id", Reason: "batch already retired"}
		}

		if batch.Quantity > 0 {
			_, err := s.ledger.ApplyMovementTx(tx, actorID, &ApplyMovementRequest{
				ProductID: batch.ProductID,
				Quantity:  -batch.Quantity,
				Kind:      entity.MovementOut,
				Reference: "retire:" + batch.ID,
				Notes:     reason,
				BatchID:   &batch.ID,
			})
			if err != nil {
				return err
			}
		}

		batch.Quantity = 0
		batch.Active = false
		if err := tx.Save(&batch).Error; err != nil {
			return err
		}
		retired = &batch
		productID = batch.ProductID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)
	return retired, nil
}

// GetSummary read-through cached stock snapshot for one product.
func (s *LotService) GetSummary(ctx context.Context, productID string) (*ProductSummary, error) {
	if summary, ok := s.cache.Get(ctx, productID); ok {
		return summary, nil
	}

	quantity, err := s.ledger.GetLevel(ctx, productID)
	if err != nil {
		return nil, err
	}
	lots, err := s.batchRepo.FindActiveByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, 7)
	expiring := 0
	for _, lot := range lots {
		if lot.ExpireDate != nil && lot.ExpireDate.Before(cutoff) {
			expiring++
		}
	}

	summary := &ProductSummary{
		ProductID:    productID,
		Quantity:     quantity,
		ActiveLots:   len(lots),
		ExpiringSoon: expiring,
	}
	s.cache.Set(ctx, summary)
	return summary, nil
}

// lockEligibleLots loads and locks the lots an allocation may touch, in
// consumption order for the strategy.
func (s *LotService) lockEligibleLots(tx *gorm.DB, productID string, strategy Strategy) ([]entity.StockBatch, error) {
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND active = true AND quantity > 0", productID)

	switch strategy.Kind {
	case StrategyFIFO, "":
		query = query.Order("expire_date ASC NULLS LAST, created_at ASC")
	case StrategyLIFO:
		query = query.Order("created_at DESC")
	case StrategySpecific:
		if strategy.BatchID == "" {
			return nil, &errs.ValidationError{Field: "batch_id", Reason: "required for SPECIFIC strategy"}
		}
		query = query.Where("id = ?", strategy.BatchID)
	default:
		return nil, &errs.ValidationError{Field: "strategy", Reason: "unknown strategy " + strategy.Kind}
	}

	var lots []entity.StockBatch
	if err := query.Find(&lots).Error; err != nil {
		return nil, err
	}
	if strategy.Kind == StrategySpecific && len(lots) == 0 {
		return nil, &errs.NotFoundError{Resource: "batch", ID: strategy.BatchID}
	}
	return lots, nil
}

func (s *LotService) invalidate(ctx context.Context, productID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, productID)
	}
}
