package order

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an order or transaction does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a transaction for the same provider notification already exists
	ErrDuplicate = errors.New("duplicate transaction")
)

// InvalidStateError reports an action that the order's current status does not permit
type InvalidStateError struct {
	OrderID string
	Status  Status
	Event   Event
}

func (e *InvalidStateError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("cannot %s an order in status %s", e.Event, e.Status)
	}
	return fmt.Sprintf("cannot %s order %s in status %s", e.Event, e.OrderID, e.Status)
}

// ConflictError reports that a compare-and-set on the order status lost a race:
// the status was no longer Expected when the write was attempted.
type ConflictError struct {
	OrderID  string
	Expected Status
	Actual   Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s: concurrent update, expected status %s but found %s", e.OrderID, e.Expected, e.Actual)
}

// IsInvalidState reports whether err carries an *InvalidStateError
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsConflict reports whether err carries a *ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
