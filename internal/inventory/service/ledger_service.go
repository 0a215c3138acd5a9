package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/haldiram/distribution/internal/errs"
	"github.com/haldiram/distribution/internal/inventory/entity"
	"github.com/haldiram/distribution/internal/inventory/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns the aggregate stock level per product and the
// append-only movement log. Every quantity change goes through
// ApplyMovement so the level and the log cannot drift apart.
type LedgerService struct {
	db           *gorm.DB
	levelRepo    *repository.LevelRepository
	movementRepo *repository.MovementRepository
	cache        *SummaryCache
}

func NewLedgerService(db *gorm.DB, repos *repository.Repositories) *LedgerService {
	return &LedgerService{
		db:           db,
		levelRepo:    repos.Level,
		movementRepo: repos.Movement,
	}
}

// SetCache injects the redis summary cache. Optional; nil disables caching.
func (s *LedgerService) SetCache(cache *SummaryCache) {
	s.cache = cache
}

// GetLevel returns the current on-hand quantity. Products that never
// received stock report zero.
func (s *LedgerService) GetLevel(ctx context.Context, productID string) (int, error) {
	level, err := s.levelRepo.FindByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	if level == nil {
		return 0, nil
	}
	return level.Quantity, nil
}

// ApplyMovementRequest one signed ledger entry.
type ApplyMovementRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required"` // signed delta
	Kind      string  `json:"kind" binding:"required"`
	Reference string  `json:"reference"`
	Notes     string  `json:"notes"`
	BatchID   *string `json:"-"`
	// reversalOf is only set by Reverse
	reversalOf *string
}

// ApplyMovement atomically updates the level and appends the movement.
func (s *LedgerService) ApplyMovement(ctx context.Context, actorID string, req *ApplyMovementRequest) (*entity.StockMovement, error) {
	var movement *entity.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		movement, err = s.ApplyMovementTx(tx, actorID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.ProductID)
	return movement, nil
}

// ApplyMovementTx is the transactional form used by the lot store and the
// workflow services to compose multi-row mutations. The caller owns the
// transaction; the product's level row is locked for its duration.
func (s *LedgerService) ApplyMovementTx(tx *gorm.DB, actorID string, req *ApplyMovementRequest) (*entity.StockMovement, error) {
	if req.Quantity == 0 {
		return nil, &errs.ValidationError{Field: "quantity", Reason: "must be non-zero"}
	}
	switch req.Kind {
	case entity.MovementIn, entity.MovementOut, entity.MovementAdjust, entity.MovementReverse:
	default:
		return nil, &errs.ValidationError{Field: "kind", Reason: "unknown movement kind " + req.Kind}
	}

	level, err := lockLevel(tx, req.ProductID)
	if err != nil {
		return nil, err
	}

	if level.Quantity+req.Quantity < 0 {
		return nil, &errs.NegativeStockError{
			ProductID: req.ProductID,
			Current:   level.Quantity,
			Delta:     req.Quantity,
		}
	}

	level.Quantity += req.Quantity
	if err := tx.Save(level).Error; err != nil {
		return nil, fmt.Errorf("update stock level: %w", err)
	}

	movement := &entity.StockMovement{
		ID:         uuid.New().String()[:32],
		ProductID:  req.ProductID,
		BatchID:    req.BatchID,
		Quantity:   req.Quantity,
		Kind:       req.Kind,
		Reference:  req.Reference,
		ReversalOf: req.reversalOf,
		ActorID:    actorID,
		Notes:      req.Notes,
	}
	if err := tx.Create(movement).Error; err != nil {
		return nil, fmt.Errorf("append stock movement: %w", err)
	}
	return movement, nil
}

// Reverse writes the negating movement for a prior one. A movement may be
// reversed at most once; the unique index on reversal_of backs this up even
// under concurrent attempts. Reversing a batch-linked movement restores the
// lot's quantity as well.
func (s *LedgerService) Reverse(ctx context.Context, movementID, actorID, reason string) (*entity.StockMovement, error) {
	var reversal *entity.StockMovement
	var productID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		reversal, err = s.ReverseTx(tx, movementID, actorID, reason)
		if err != nil {
			return err
		}
		productID = reversal.ProductID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)
	return reversal, nil
}

// ReverseTx transactional form of Reverse.
func (s *LedgerService) ReverseTx(tx *gorm.DB, movementID, actorID, reason string) (*entity.StockMovement, error) {
	var original entity.StockMovement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", movementID).
		First(&original).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &errs.NotFoundError{Resource: "movement", ID: movementID}
		}
		return nil, err
	}

	// Retirement is final: no un-retire path.
	if strings.HasPrefix(original.Reference, "retire:") {
		return nil, &errs.ValidationError{Field: "movement_id", Reason: "retirement movements cannot be reversed"}
	}

	var count int64
	if err := tx.Model(&entity.StockMovement{}).Where("reversal_of = ?", movementID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &errs.AlreadyReversedError{MovementID: movementID}
	}

	reversal, err := s.ApplyMovementTx(tx, actorID, &ApplyMovementRequest{
		ProductID:  original.ProductID,
		Quantity:   -original.Quantity,
		Kind:       entity.MovementReverse,
		Reference:  original.Reference,
		Notes:      reason,
		BatchID:    original.BatchID,
		reversalOf: &original.ID,
	})
	if err != nil {
		return nil, err
	}

	if original.BatchID != nil {
		if err := restoreBatch(tx, *original.BatchID, -original.Quantity); err != nil {
			return nil, err
		}
	}
	return reversal, nil
}

// SetAbsolute records a manual correction to an exact quantity. The delta is
// computed against the locked current value and written as an ADJUST
// movement. A same-value correction is rejected with NoOpError so no empty
// movement ever lands in the log.
func (s *LedgerService) SetAbsolute(ctx context.Context, productID string, newQuantity int, actorID, reason string) (*entity.StockMovement, error) {
	if newQuantity < 0 {
		return nil, &errs.ValidationError{Field: "quantity", Reason: "must be >= 0"}
	}

	var movement *entity.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level, err := lockLevel(tx, productID)
		if err != nil {
			return err
		}
		if level.Quantity == newQuantity {
			return &errs.NoOpError{Reason: fmt.Sprintf("stock for product %s is already %d", productID, newQuantity)}
		}
		movement, err = s.ApplyMovementTx(tx, actorID, &ApplyMovementRequest{
			ProductID: productID,
			Quantity:  newQuantity - level.Quantity,
			Kind:      entity.MovementAdjust,
			Reference: "adjust",
			Notes:     reason,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productID)
	return movement, nil
}

func (s *LedgerService) GetMovement(ctx context.Context, id string) (*entity.StockMovement, error) {
	return s.movementRepo.FindByID(ctx, id)
}

func (s *LedgerService) ListMovements(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.StockMovement, int64, error) {
	return s.movementRepo.FindAll(ctx, page, pageSize, filters)
}

func (s *LedgerService) ListLevels(ctx context.Context, page, pageSize int) ([]entity.StockLevel, int64, error) {
	return s.levelRepo.FindAll(ctx, page, pageSize)
}

func (s *LedgerService) invalidate(ctx context.Context, productID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, productID)
	}
}

// lockLevel loads the product's level row FOR UPDATE, creating it lazily on
// first use so receiving into a new product needs no separate setup step.
func lockLevel(tx *gorm.DB, productID string) (*entity.StockLevel, error) {
	var level entity.StockLevel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&level).Error
	if err == nil {
		return &level, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	level = entity.StockLevel{
		ID:        uuid.New().String()[:32],
		ProductID: productID,
		Quantity:  0,
	}
	// A concurrent first-use can win the insert race on product_id; DO
	// NOTHING lets the loser fall through to the locked re-read below.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&level).Error; err != nil {
		return nil, fmt.Errorf("create stock level: %w", err)
	}
	// Re-read under lock so a concurrent creator cannot slip past.
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&level).Error
	if err != nil {
		return nil, err
	}
	return &level, nil
}

// restoreBatch adds quantity back to a lot (movement reversal). Lots brought
// back above zero become consumable again.
func restoreBatch(tx *gorm.DB, batchID string, delta int) error {
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
	batch.Quantity += delta
	if batch.Quantity < 0 {
		return &errs.NegativeStockError{ProductID: batch.ProductID, Current: batch.Quantity - delta, Delta: delta}
	}
	if batch.Quantity > 0 {
		batch.Active = true
	}
	return tx.Save(&batch).Error
}
