package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haldiram/distribution/internal/audit"
	catentity "github.com/haldiram/distribution/internal/catalog/entity"
	catrepo "github.com/haldiram/distribution/internal/catalog/repository"
	"github.com/haldiram/distribution/internal/errs"
	invsvc "github.com/haldiram/distribution/internal/inventory/service"
	"github.com/haldiram/distribution/internal/payment"
	"github.com/haldiram/distribution/internal/purchasing/entity"
	"github.com/haldiram/distribution/internal/purchasing/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// poTransitions valid source statuses per event. Receiving must happen from
// accepted; the payment leg after dispatch is optional and skipped entirely
// when no gateway is configured. payment_failed may retry the request.
var poTransitions = map[string][]string{
	"edit_items":      {entity.POStatusPlaced},
	"accept":          {entity.POStatusPlaced},
	"receive":         {entity.POStatusAccepted},
	"dispatch":        {entity.POStatusReceived},
	"request_payment": {entity.POStatusDispatched, entity.POStatusPaymentFailed},
	"sync_payment":    {entity.POStatusPaymentPending},
	"verify_payment":  {entity.POStatusPaid},
	"mark_packed":     {entity.POStatusPaymentVerified, entity.POStatusDispatched},
	"assign_driver":   {entity.POStatusPacked},
	"ship":            {entity.POStatusDriverAssigned},
}

// poTerminal statuses with no outgoing transition at all, cancel included.
var poTerminal = map[string]bool{
	entity.POStatusShipped:   true,
	entity.POStatusCancelled: true,
}

// POService drives the vendor purchase order workflow. Receiving a PO is the
// only path that mints stock lots; the gateway client is called outside any
// lot or ledger transaction.
type POService struct {
	db          *gorm.DB
	poRepo      *repository.PORepository
	productRepo *catrepo.ProductRepository
	userRepo    *catrepo.UserRepository
	lots        *invsvc.LotService
	audit       *audit.Repository
	gateway     payment.Client
	redirectURL string
}

func NewPOService(
	db *gorm.DB,
	repos *repository.Repositories,
	catRepos *catrepo.Repositories,
	lots *invsvc.LotService,
	auditRepo *audit.Repository,
) *POService {
	return &POService{
		db:          db,
		poRepo:      repos.PO,
		productRepo: catRepos.Product,
		userRepo:    catRepos.User,
		lots:        lots,
		audit:       auditRepo,
	}
}

// SetGateway enables the post-dispatch payment leg.
func (s *POService) SetGateway(gateway payment.Client, redirectURL string) {
	s.gateway = gateway
	s.redirectURL = redirectURL
}

// POLine one requested product line. UnitPrice is accepted on the wire for
// vendor convenience but never used: pricing always comes from the master.
type POLine struct {
	ProductID string  `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required"`
	UnitPrice float64 `json:"unit_price"`
}

// CreatePORequest a new purchase order in placed status.
type CreatePORequest struct {
	Items        []POLine   `json:"items" binding:"required"`
	ExpectedDate *time.Time `json:"expected_date"`
	Notes        string     `json:"notes"`
}

// Create places a new purchase order on behalf of the vendor. Submitted
// prices are discarded in favor of the product master.
func (s *POService) Create(ctx context.Context, actorID, actorRole string, req *CreatePORequest) (*entity.PurchaseOrder, error) {
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

	code, err := s.poRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate po code: %w", err)
	}

	po := &entity.PurchaseOrder{
		ID:           uuid.New().String()[:32],
		POCode:       code,
		VendorID:     actorID,
		Status:       entity.POStatusPlaced,
		ExpectedDate: req.ExpectedDate,
		CreatedBy:    actorID,
		Notes:        req.Notes,
	}
	var total float64
	for _, line := range req.Items {
		product := products[line.ProductID]
		subtotal := float64(line.Quantity) * product.UnitPrice
		po.Items = append(po.Items, entity.PurchaseItem{
			ID:        uuid.New().String()[:32],
			POID:      po.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: product.UnitPrice,
			Subtotal:  subtotal,
		})
		total += subtotal
	}
	po.Total = total

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(po).Error; err != nil {
			return fmt.Errorf("create purchase order: %w", err)
		}
		return s.audit.Record(tx, &audit.Log{
			EntityType: "purchase_order",
			EntityID:   po.ID,
			Action:     "create",
			ToStatus:   entity.POStatusPlaced,
			Metadata:   audit.JSONB{"po_code": code, "total": total, "lines": len(po.Items)},
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

func (s *POService) Get(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return s.poRepo.FindByID(ctx, id)
}

func (s *POService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	return s.poRepo.FindAll(ctx, page, pageSize, filters)
}

func (s *POService) ItemHistory(ctx context.Context, poID string) ([]entity.PurchaseItemHistory, error) {
	if _, err := s.poRepo.FindByID(ctx, poID); err != nil {
		return nil, err
	}
	return s.poRepo.FindItemHistory(ctx, poID)
}

// UpdateItemsRequest quantity corrections for a PO still in placed.
type UpdateItemsRequest struct {
	Items  []POLine `json:"items" binding:"required"`
	Reason string   `json:"reason"`
}

// UpdateItems reconciles the PO's item set against the request, writing a
// history row per quantity change. Prices are re-read from the master.
func (s *POService) UpdateItems(ctx context.Context, actorID, actorRole, poID string, req *UpdateItemsRequest) (*entity.PurchaseOrder, error) {
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
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if err := s.guard(po, "edit_items"); err != nil {
			return err
		}
		if !catentity.IsElevated(actorRole) && po.VendorID != actorID {
			return &errs.ForbiddenError{Reason: "cannot edit another vendor's purchase order"}
		}

		var existing []entity.PurchaseItem
		if err := tx.Where("po_id = ?", poID).Find(&existing).Error; err != nil {
			return err
		}
		byProduct := make(map[string]*entity.PurchaseItem, len(existing))
		for i := range existing {
			byProduct[existing[i].ProductID] = &existing[i]
		}

		for _, item := range existing {
			if _, keep := requested[item.ProductID]; keep {
				continue
			}
			if err := recordPOItemChange(tx, po.ID, &item, item.Quantity, 0, actorID, req.Reason); err != nil {
				return err
			}
			if err := tx.Delete(&entity.PurchaseItem{}, "id = ?", item.ID).Error; err != nil {
				return err
			}
		}

		var total float64
		for _, line := range req.Items {
			product := products[line.ProductID]
			item, exists := byProduct[line.ProductID]
			if !exists {
				newItem := entity.PurchaseItem{
					ID:        uuid.New().String()[:32],
					POID:      po.ID,
					ProductID: line.ProductID,
					Quantity:  line.Quantity,
					UnitPrice: product.UnitPrice,
					Subtotal:  float64(line.Quantity) * product.UnitPrice,
				}
				if err := tx.Create(&newItem).Error; err != nil {
					return err
				}
				if err := recordPOItemChange(tx, po.ID, &newItem, 0, line.Quantity, actorID, req.Reason); err != nil {
					return err
				}
				total += newItem.Subtotal
				continue
			}

			if item.Quantity != line.Quantity {
				if err := recordPOItemChange(tx, po.ID, item, item.Quantity, line.Quantity, actorID, req.Reason); err != nil {
					return err
				}
			}
			item.Quantity = line.Quantity
			item.UnitPrice = product.UnitPrice
			item.Subtotal = float64(line.Quantity) * product.UnitPrice
			if err := tx.Save(item).Error; err != nil {
				return err
			}
			total += item.Subtotal
		}

		po.Total = total
		if err := tx.Save(po).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, &audit.Log{
			EntityType: "purchase_order",
			EntityID:   po.ID,
			Action:     "edit_items",
			FromStatus: po.Status,
			ToStatus:   po.Status,
			Metadata:   audit.JSONB{"total": total, "lines": len(req.Items), "reason": req.Reason},
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.poRepo.FindByID(ctx, poID)
}

// Accept moves placed -> accepted. Staff only.
func (s *POService) Accept(ctx context.Context, actorID, actorRole, poID string) (*entity.PurchaseOrder, error) {
	if !catentity.IsElevated(actorRole) {
		return nil, &errs.ForbiddenError{Reason: "only staff may accept purchase orders"}
	}
	return s.transition(ctx, poID, "accept", entity.POStatusAccepted, actorID, actorRole, nil,
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			po.AcceptedBy = &actorID
			return nil
		})
}

// Receive moves accepted -> received and mints one stock lot per line, all in
// the same transaction. A failure on any line leaves no lot behind.
func (s *POService) Receive(ctx context.Context, actorID, actorRole, poID string, expireDate *time.Time) (*entity.PurchaseOrder, error) {
	if !catentity.IsElevated(actorRole) {
		return nil, &errs.ForbiddenError{Reason: "only staff may receive purchase orders"}
	}
	return s.transition(ctx, poID, "receive", entity.POStatusReceived, actorID, actorRole, nil,
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			var items []entity.PurchaseItem
			if err := tx.Where("po_id = ?", po.ID).Find(&items).Error; err != nil {
				return err
			}
			if len(items) == 0 {
				return &errs.ValidationError{Field: "items", Reason: "purchase order has no items"}
			}
			for i, item := range items {
				if err := s.lots.ReceiveLotTx(tx, actorID, item.ProductID, item.Quantity,
					fmt.Sprintf("%s-%d", po.POCode, i+1), expireDate,
					"PO#"+po.POCode,
					"received from purchase order "+po.POCode); err != nil {
					return err
				}
			}
			po.ReceivedBy = &actorID
			return nil
		})
}

// Dispatch moves received -> dispatched.
func (s *POService) Dispatch(ctx context.Context, actorID, actorRole, poID string) (*entity.PurchaseOrder, error) {
	return s.transition(ctx, poID, "dispatch", entity.POStatusDispatched, actorID, actorRole, nil,
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			po.DispatchedBy = &actorID
			return nil
		})
}

// RequestPayment opens a gateway checkout for the PO total and moves it to
// payment_pending. The gateway call happens before the transition commits but
// never holds a lot or ledger lock. Amounts go to the gateway in paise.
func (s *POService) RequestPayment(ctx context.Context, actorID, actorRole, poID string) (*entity.PurchaseOrder, string, error) {
	if s.gateway == nil {
		return nil, "", &errs.ValidationError{Field: "payment", Reason: "payment gateway is not configured"}
	}
	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return nil, "", err
	}
	if err := s.guard(po, "request_payment"); err != nil {
		return nil, "", err
	}

	merchantOrderID := fmt.Sprintf("%s-%d", po.POCode, time.Now().Unix())
	checkout, err := s.gateway.CreateCheckout(ctx, merchantOrderID, int64(po.Total*100), s.redirectURL)
	if err != nil {
		return nil, "", fmt.Errorf("request payment: %w", err)
	}

	po, err = s.transition(ctx, poID, "request_payment", entity.POStatusPaymentPending, actorID, actorRole,
		audit.JSONB{"payment_ref": merchantOrderID},
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			po.PaymentRef = &merchantOrderID
			return nil
		})
	if err != nil {
		return nil, "", err
	}
	return po, checkout.RedirectURL, nil
}

// SyncPayment polls the gateway and moves payment_pending to paid or
// payment_failed. A still-pending payment is reported as a no-op.
func (s *POService) SyncPayment(ctx context.Context, actorID, actorRole, poID string) (*entity.PurchaseOrder, error) {
	if s.gateway == nil {
		return nil, &errs.ValidationError{Field: "payment", Reason: "payment gateway is not configured"}
	}
	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(po, "sync_payment"); err != nil {
		return nil, err
	}
	if po.PaymentRef == nil {
		return nil, &errs.ValidationError{Field: "payment_ref", Reason: "no payment has been requested"}
	}

	status, err := s.gateway.Status(ctx, *po.PaymentRef)
	if err != nil {
		return nil, fmt.Errorf("sync payment: %w", err)
	}

	var toStatus string
	switch status.State {
	case payment.StateCompleted:
		toStatus = entity.POStatusPaid
	case payment.StateFailed:
		toStatus = entity.POStatusPaymentFailed
	default:
		return nil, &errs.NoOpError{Reason: "payment is still pending at the gateway"}
	}

	return s.transition(ctx, poID, "sync_payment", toStatus, actorID, actorRole,
		audit.JSONB{"gateway_state": status.State},
		func(tx *gorm.DB, po *entity.PurchaseOrder) error { return nil })
}

// VerifyPayment moves paid -> payment_verified after an accountant checks the
// settlement.
func (s *POService) VerifyPayment(ctx context.Context, actorID, actorRole, poID string) (*entity.PurchaseOrder, error) {
	if actorRole != catentity.RoleAccountant && !catentity.IsElevated(actorRole) {
		return nil, &errs.ForbiddenError{Reason: "only accountants may verify payments"}
	}
	return s.transition(ctx, poID, "verify_payment", entity.POStatusPaymentVerified, actorID, actorRole, nil,
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			po.PaymentVerifiedBy = &actorID
			return nil
		})
}

// MarkPacked records the box count and moves the PO to packed. Reachable
// straight from dispatched when the payment leg is skipped.
func (s *POService) MarkPacked(ctx context.Context, actorID, actorRole, poID string, boxCount int) (*entity.PurchaseOrder, error) {
	if boxCount <= 0 {
		return nil, &errs.ValidationError{Field: "box_count", Reason: "box count must be > 0"}
	}
	return s.transition(ctx, poID, "mark_packed", entity.POStatusPacked, actorID, actorRole,
		audit.JSONB{"box_count": boxCount},
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			po.BoxCount = &boxCount
			return nil
		})
}

// AssignDriverRequest driver and delivery details for a packed PO.
type AssignDriverRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
	ETA      string `json:"eta"`
	Notes    string `json:"notes"`
}

// AssignDriver moves packed -> driver_assigned. The assignee must be an
// active user with the driver role.
func (s *POService) AssignDriver(ctx context.Context, actorID, actorRole, poID string, req *AssignDriverRequest) (*entity.PurchaseOrder, error) {
	driver, err := s.userRepo.FindByID(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}
	if driver.Role != catentity.RoleDriver || !driver.Active {
		return nil, &errs.ValidationError{Field: "driver_id", Reason: "user is not an active driver"}
	}
	return s.transition(ctx, poID, "assign_driver", entity.POStatusDriverAssigned, actorID, actorRole,
		audit.JSONB{"driver_id": req.DriverID, "driver_name": driver.Name, "eta": req.ETA, "notes": req.Notes},
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			po.DriverID = &req.DriverID
			return nil
		})
}

// ListDriverAssignments returns the assignment log across purchase orders,
// newest first, straight from the audit trail.
func (s *POService) ListDriverAssignments(ctx context.Context, page, pageSize int) ([]audit.Log, int64, error) {
	return s.audit.FindByAction(ctx, "purchase_order", "assign_driver", page, pageSize)
}

// Ship moves driver_assigned -> shipped with a carrier tracking id.
func (s *POService) Ship(ctx context.Context, actorID, actorRole, poID, trackingID string) (*entity.PurchaseOrder, error) {
	return s.transition(ctx, poID, "ship", entity.POStatusShipped, actorID, actorRole,
		audit.JSONB{"tracking_id": trackingID},
		func(tx *gorm.DB, po *entity.PurchaseOrder) error {
			if trackingID != "" {
				po.TrackingID = &trackingID
			}
			return nil
		})
}

// Cancel. Vendors may cancel their own POs while still placed; elevated
// roles may cancel from any non-terminal status. Cancelling after receive
// does not claw back the lots it minted.
func (s *POService) Cancel(ctx context.Context, actorID, actorRole, poID, reason string) (*entity.PurchaseOrder, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if poTerminal[po.Status] {
			return &errs.InvalidStateTransitionError{Entity: "purchase_order", From: po.Status, Event: "cancel"}
		}
		if !catentity.IsElevated(actorRole) {
			if po.VendorID != actorID {
				return &errs.ForbiddenError{Reason: "cannot cancel another vendor's purchase order"}
			}
			if po.Status != entity.POStatusPlaced {
				return &errs.InvalidStateTransitionError{Entity: "purchase_order", From: po.Status, Event: "cancel"}
			}
		}
		fromStatus := po.Status
		po.Status = entity.POStatusCancelled
		po.CancelledBy = &actorID
		if err := tx.Save(po).Error; err != nil {
			return fmt.Errorf("update purchase order status: %w", err)
		}
		return s.audit.Record(tx, &audit.Log{
			EntityType: "purchase_order",
			EntityID:   po.ID,
			Action:     "cancel",
			FromStatus: fromStatus,
			ToStatus:   entity.POStatusCancelled,
			Metadata:   audit.JSONB{"reason": reason},
			ActorID:    actorID,
			ActorRole:  actorRole,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.poRepo.FindByID(ctx, poID)
}

// transition runs one guarded state change in a single transaction, audit
// entry included.
func (s *POService) transition(
	ctx context.Context,
	poID, event, toStatus, actorID, actorRole string,
	meta audit.JSONB,
	apply func(tx *gorm.DB, po *entity.PurchaseOrder) error,
) (*entity.PurchaseOrder, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if err := s.guard(po, event); err != nil {
			return err
		}
		fromStatus := po.Status

		if err := apply(tx, po); err != nil {
			return err
		}

		po.Status = toStatus
		if err := tx.Save(po).Error; err != nil {
			return fmt.Errorf("update purchase order status: %w", err)
		}
		return s.audit.Record(tx, &audit.Log{
			EntityType: "purchase_order",
			EntityID:   po.ID,
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
	return s.poRepo.FindByID(ctx, poID)
}

func (s *POService) guard(po *entity.PurchaseOrder, event string) error {
	for _, from := range poTransitions[event] {
		if po.Status == from {
			return nil
		}
	}
	return &errs.InvalidStateTransitionError{Entity: "purchase_order", From: po.Status, Event: event}
}

func lockPO(tx *gorm.DB, poID string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", poID).
		First(&po).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &errs.NotFoundError{Resource: "purchase order", ID: poID}
		}
		return nil, err
	}
	return &po, nil
}

func recordPOItemChange(tx *gorm.DB, poID string, item *entity.PurchaseItem, oldQty, newQty int, actorID, reason string) error {
	return tx.Create(&entity.PurchaseItemHistory{
		ID:        uuid.New().String()[:32],
		POID:      poID,
		ItemID:    item.ID,
		ProductID: item.ProductID,
		OldQty:    oldQty,
		NewQty:    newQty,
		ChangedBy: actorID,
		Reason:    reason,
	}).Error
}
