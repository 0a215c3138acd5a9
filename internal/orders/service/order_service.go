package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/haldiram/distribution/internal/audit"
	catentity "github.com/haldiram/distribution/internal/catalog/entity"
	catrepo "github.com/haldiram/distribution/internal/catalog/repository"
	"github.com/haldiram/distribution/internal/errs"
	invsvc "github.com/haldiram/distribution/internal/inventory/service"
	"github.com/haldiram/distribution/internal/orders/entity"
	"github.com/haldiram/distribution/internal/orders/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderTransitions valid source statuses per event. Forward-only: there is
// no path out of cancelled or returned.
var orderTransitions = map[string][]string{
	"edit_items":    {entity.OrderStatusPlaced},
	"confirm":       {entity.OrderStatusPlaced},
	"payment_check": {entity.OrderStatusConfirmed},
	"process":       {entity.OrderStatusConfirmed, entity.OrderStatusPaymentChecked},
	"ship":          {entity.OrderStatusProcessing},
	"receive":       {entity.OrderStatusShipped},
	"return":        {entity.OrderStatusShipped, entity.OrderStatusReceived},
	"cancel":        {entity.OrderStatusPlaced},
}

// OrderService drives the sales order workflow. Processing consumes lots via
// the allocation engine; returns feed stock back as quarantine lots.
type OrderService struct {
	db          *gorm.DB
	orderRepo   *repository.OrderRepository
	productRepo *catrepo.ProductRepository
	vehicleRepo *catrepo.VehicleRepository
	lots        *invsvc.LotService
	audit       *audit.Repository
}

func NewOrderService(
	db *gorm.DB,
	repos *repository.Repositories,
	catRepos *catrepo.Repositories,
	lots *invsvc.LotService,
	auditRepo *audit.Repository,
) *OrderService {
	return &OrderService{
		db:          db,
		orderRepo:   repos.Order,
		productRepo: catRepos.Product,
		vehicleRepo: catRepos.Vehicle,
		lots:        lots,
		audit:       auditRepo,
	}
}

// OrderLine one requested product line.
type OrderLine struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// CreateOrderRequest a new order in placed status.
type CreateOrderRequest struct {
	Items []OrderLine `json:"items" binding:"required"`
	Notes string      `json:"notes"`
}

// Create places a new order. Line prices always come from the product
// master, never from the caller.
func (s *OrderService) Create(ctx context.Context, actorID, actorRole string, req *CreateOrderRequest) (*entity.Order, error) {
	if len(req.Items) == 0 {
		return nil, &errs.ValidationError{Field: "items", Reason: "at least one line item required"}
	}
	productIDs := make([]string, 0, len(req.Items))
	seen := make(map[string]bool, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, &errs.ValidationError{Field: "items", Reason: "quantity must be > 0"}
		}
		if seen[line.ProductID] {
			return nil, &errs.ValidationError{Field: "items", Reason: "duplicate product " + line.ProductID}
		}
		seen[line.ProductID] = true
		productIDs = append(productIDs, line.ProductID)
	}

	products, err := s.productRepo.FindActiveByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	code, err := s.orderRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate order code: %w", err)
	}

	order := &entity.Order{
		ID:         uuid.New().String()[:32],
		OrderCode:  code,
		CustomerID: actorID,
		Status:     entity.OrderStatusPlaced,
		Notes:      req.Notes,
	}
	var total float64
	for _, line := range req.Items {
		product := products[line.ProductID]
		subtotal := float64(line.Quantity) * product.UnitPrice
		order.Items = append(order.Items, entity.OrderItem{
			ID:          uuid.New().String()[:32],
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			OriginalQty: line.Quantity,
			FinalQty:    line.Quantity,
			UnitPrice:   product.UnitPrice,
			Subtotal:    subtotal,
		})
		total += subtotal
	}
	order.Total = total

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return s.audit.Record(tx, &audit.Log{
			EntityType: "order",
			EntityID:   order.ID,
			Action:     "create",
			ToStatus:   entity.OrderStatusPlaced,
			Metadata:   audit.JSONB{"order_code": code, "total": total, "lines": len(order.Items)},
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*entity.Order, error) {
	return s.orderRepo.FindByID(ctx, id)
}

func (s *OrderService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Order, int64, error) {
	return s.orderRepo.FindAll(ctx, page, pageSize, filters)
}

func (s *OrderService) ItemHistory(ctx context.Context, orderID string) ([]entity.OrderItemHistory, error) {
	if _, err := s.orderRepo.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orderRepo.FindItemHistory(ctx, orderID)
}

// UpdateItemsRequest replacement item set for an order still in placed.
type UpdateItemsRequest struct {
	Items  []OrderLine `json:"items" binding:"required"`
	Reason string      `json:"reason"`
}

// UpdateItems reconciles the order's item set against the request: new
// products are added, changed quantities rewritten with a history row,
// omitted lines removed. Total is recomputed at master prices.
func (s *OrderService) UpdateItems(ctx context.Context, actorID, actorRole, orderID string, req *UpdateItemsRequest) (*entity.Order, error) {
	if len(req.Items) == 0 {
		return nil, &errs.ValidationError{Field: "items", Reason: "at least one line item required"}
	}
	productIDs := make([]string, 0, len(req.Items))
	requested := make(map[string]int, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, &errs.ValidationError{Field: "items", Reason: "quantity must be > 0"}
		}
		if _, dup := requested[line.ProductID]; dup {
			return nil, &errs.ValidationError{Field: "items", Reason: "duplicate product " + line.ProductID}
		}
		productIDs = append(productIDs, line.ProductID)
		requested[line.ProductID] = line.Quantity
	}
	products, err := s.productRepo.FindActiveByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := s.guard(order, "edit_items"); err != nil {
			return err
		}
		if !catentity.IsElevated(actorRole) && order.CustomerID != actorID {
			return &errs.ForbiddenError{Reason: "cannot edit another customer's order"}
		}

		var existing []entity.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&existing).Error; err != nil {
			return err
		}
		byProduct := make(map[string]*entity.OrderItem, len(existing))
		for i := range existing {
			byProduct[existing[i].ProductID] = &existing[i]
		}

		// Removals first.
		for _, item := range existing {
			if _, keep := requested[item.ProductID]; keep {
				continue
			}
			if err := recordItemChange(tx, order.ID, &item, item.FinalQty, 0, actorID, req.Reason); err != nil {
				return err
			}
			if err := tx.Delete(&entity.OrderItem{}, "id = ?", item.ID).Error; err != nil {
				return err
			}
		}

		var total float64
		for _, line := range req.Items {
			product := products[line.ProductID]
			item, exists := byProduct[line.ProductID]
			if !exists {
				newItem := entity.OrderItem{
					ID:          uuid.New().String()[:32],
					OrderID:     order.ID,
					ProductID:   line.ProductID,
					OriginalQty: line.Quantity,
					FinalQty:    line.Quantity,
					UnitPrice:   product.UnitPrice,
					Subtotal:    float64(line.Quantity) * product.UnitPrice,
				}
				if err := tx.Create(&newItem).Error; err != nil {
					return err
				}
				if err := recordItemChange(tx, order.ID, &newItem, 0, line.Quantity, actorID, req.Reason); err != nil {
					return err
				}
				total += newItem.Subtotal
				continue
			}

			if item.FinalQty != line.Quantity {
				if err := recordItemChange(tx, order.ID, item, item.FinalQty, line.Quantity, actorID, req.Reason); err != nil {
					return err
				}
			}
			item.FinalQty = line.Quantity
			item.UnitPrice = product.UnitPrice
			item.Subtotal = float64(line.Quantity) * product.UnitPrice
			if err := tx.Save(item).Error; err != nil {
				return err
			}
			total += item.Subtotal
		}

		order.Total = total
		if err := tx.Save(order).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, &audit.Log{
			EntityType: "order",
			EntityID:   order.ID,
			Action:     "edit_items",
			FromStatus: order.Status,
			ToStatus:   order.Status,
			Metadata:   audit.JSONB{"total": total, "lines": len(req.Items), "reason": req.Reason},
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.orderRepo.FindByID(ctx, orderID)
}

// Confirm moves placed -> confirmed, optionally assigning a vehicle.
func (s *OrderService) Confirm(ctx context.Context, actorID, actorRole, orderID string, vehicleID *string) (*entity.Order, error) {
	if vehicleID != nil {
		vehicle, err := s.vehicleRepo.FindByID(ctx, *vehicleID)
		if err != nil {
			return nil, err
		}
		if !vehicle.Active {
			return nil, &errs.ValidationError{Field: "vehicle_id", Reason: "vehicle is inactive"}
		}
	}
	return s.transition(ctx, orderID, "confirm", entity.OrderStatusConfirmed, actorID, actorRole, nil,
		func(tx *gorm.DB, order *entity.Order) error {
			order.ConfirmedBy = &actorID
			order.VehicleID = vehicleID
			return nil
		})
}

// CheckPayment moves confirmed -> payment_checked.
func (s *OrderService) CheckPayment(ctx context.Context, actorID, actorRole, orderID string) (*entity.Order, error) {
	return s.transition(ctx, orderID, "payment_check", entity.OrderStatusPaymentChecked, actorID, actorRole, nil,
		func(tx *gorm.DB, order *entity.Order) error {
			order.PaymentCheckedBy = &actorID
			return nil
		})
}

// Process allocates every line FIFO inside one transaction. Any line's
// shortfall rolls the whole transition back, allocations included: no lot
// decrement from an earlier line survives a later line's failure.
func (s *OrderService) Process(ctx context.Context, actorID, actorRole, orderID string) (*entity.Order, error) {
	return s.transition(ctx, orderID, "process", entity.OrderStatusProcessing, actorID, actorRole,
		audit.JSONB{},
		func(tx *gorm.DB, order *entity.Order) error {
			var items []entity.OrderItem
			if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
				return err
			}
			reference := "order:" + order.ID
			for _, item := range items {
				_, err := s.lots.AllocateTx(tx, actorID, item.ProductID, item.FinalQty,
					invsvc.Strategy{Kind: invsvc.StrategyFIFO}, reference)
				if err != nil {
					return err
				}
			}
			order.ProcessedBy = &actorID
			return nil
		})
}

// Ship moves processing -> shipped.
func (s *OrderService) Ship(ctx context.Context, actorID, actorRole, orderID string) (*entity.Order, error) {
	return s.transition(ctx, orderID, "ship", entity.OrderStatusShipped, actorID, actorRole, nil,
		func(tx *gorm.DB, order *entity.Order) error {
			order.ShippedBy = &actorID
			return nil
		})
}

// Receive moves shipped -> received. Only the original customer or an
// elevated role may acknowledge receipt.
func (s *OrderService) Receive(ctx context.Context, actorID, actorRole, orderID string) (*entity.Order, error) {
	return s.transition(ctx, orderID, "receive", entity.OrderStatusReceived, actorID, actorRole, nil,
		func(tx *gorm.DB, order *entity.Order) error {
			if !catentity.IsElevated(actorRole) && order.CustomerID != actorID {
				return &errs.ForbiddenError{Reason: "only the ordering customer may receive this order"}
			}
			order.ReceivedBy = &actorID
			return nil
		})
}

// Return moves shipped/received -> returned. Each line comes back as a fresh
// quarantine lot without expiry, credited to the ledger with an IN movement.
func (s *OrderService) Return(ctx context.Context, actorID, actorRole, orderID, reason string) (*entity.Order, error) {
	return s.transition(ctx, orderID, "return", entity.OrderStatusReturned, actorID, actorRole,
		audit.JSONB{"reason": reason},
		func(tx *gorm.DB, order *entity.Order) error {
			if !catentity.IsElevated(actorRole) && order.CustomerID != actorID {
				return &errs.ForbiddenError{Reason: "only the ordering customer may return this order"}
			}

			var items []entity.OrderItem
			if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
				return err
			}
			for i, item := range items {
				if err := s.lots.ReceiveLotTx(tx, actorID, item.ProductID, item.FinalQty,
					fmt.Sprintf("RET-%s-%d", order.OrderCode, i+1), nil,
					"return:order:"+order.ID,
					"returned from order "+order.OrderCode); err != nil {
					return err
				}
			}
			order.ReturnedBy = &actorID
			return nil
		})
}

// Cancel moves placed -> cancelled. Customers may cancel their own orders;
// elevated roles any order still in placed.
func (s *OrderService) Cancel(ctx context.Context, actorID, actorRole, orderID, reason string) (*entity.Order, error) {
	return s.transition(ctx, orderID, "cancel", entity.OrderStatusCancelled, actorID, actorRole,
		audit.JSONB{"reason": reason},
		func(tx *gorm.DB, order *entity.Order) error {
			if !catentity.IsElevated(actorRole) && order.CustomerID != actorID {
				return &errs.ForbiddenError{Reason: "cannot cancel another customer's order"}
			}
			order.CancelledBy = &actorID
			return nil
		})
}

// transition runs one guarded state change: lock the order, verify the event
// is valid from the current status, run the side effect, stamp the new
// status, and record the audit entry, all in one transaction.
func (s *OrderService) transition(
	ctx context.Context,
	orderID, event, toStatus, actorID, actorRole string,
	meta audit.JSONB,
	apply func(tx *gorm.DB, order *entity.Order) error,
) (*entity.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := s.guard(order, event); err != nil {
			return err
		}
		fromStatus := order.Status

		if err := apply(tx, order); err != nil {
			return err
		}

		order.Status = toStatus
		if err := tx.Save(order).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return s.audit.Record(tx, &audit.Log{
			EntityType: "order",
			EntityID:   order.ID,
			Action:     event,
			FromStatus: fromStatus,
			ToStatus:   toStatus,
			Metadata:   meta,
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.orderRepo.FindByID(ctx, orderID)
}

func (s *OrderService) guard(order *entity.Order, event string) error {
	for _, from := range orderTransitions[event] {
		if order.Status == from {
			return nil
		}
	}
	return &errs.InvalidStateTransitionError{Entity: "order", From: order.Status, Event: event}
}

func lockOrder(tx *gorm.DB, orderID string) (*entity.Order, error) {
	var order entity.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &errs.NotFoundError{Resource: "order", ID: orderID}
		}
		return nil, err
	}
	return &order, nil
}

func recordItemChange(tx *gorm.DB, orderID string, item *entity.OrderItem, oldQty, newQty int, actorID, reason string) error {
	return tx.Create(&entity.OrderItemHistory{
		ID:        uuid.New().String()[:32],
		OrderID:   orderID,
		ItemID:    item.ID,
		ProductID: item.ProductID,
		OldQty:    oldQty,
		NewQty:    newQty,
		ChangedBy: actorID,
		Reason:    reason,
	}).Error
}
