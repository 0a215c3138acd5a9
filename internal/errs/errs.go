package errs

import "fmt"

// NotFoundError unknown product/order/PO/lot/movement id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError rejected input (qty <= 0, empty item list, malformed date).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InsufficientStockError allocation shortfall, carries the missing quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d (short %d)",
		e.ProductID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

// NegativeStockError a movement or absolute adjustment would take stock below zero.
type NegativeStockError struct {
	ProductID string
	Current   int
	Delta     int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("movement would make stock negative for product %s: current %d, delta %d",
		e.ProductID, e.Current, e.Delta)
}

// InvalidStateTransitionError event not valid from the current state.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	Event  string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from status %s", e.Entity, e.Event, e.From)
}

// AlreadyReversedError a movement already has its one permitted reversal.
type AlreadyReversedError struct {
	MovementID string
}

func (e *AlreadyReversedError) Error() string {
	return fmt.Sprintf("movement %s already reversed", e.MovementID)
}

// ForbiddenError actor/role mismatch against resource ownership.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// NoOpError a same-value absolute correction. Rejected rather than silently
// accepted so callers know no movement was written.
type NoOpError struct {
	Reason string
}

func (e *NoOpError) Error() string {
	return e.Reason
}
