package order

import "context"

// Repository persists orders. The status column is the single serialization point
// for concurrent payment notifications on the same order.
type Repository interface {
	// Get returns the current snapshot of the order or ErrNotFound
	Get(ctx context.Context, id string) (*Order, error)

	// Save creates or replaces an order
	Save(ctx context.Context, o *Order) error

	// CompareAndSetStatus moves the order to `to` only if its status still equals `from`.
	// It returns false without error when the status had already changed.
	CompareAndSetStatus(ctx context.Context, id string, from, to Status) (bool, error)
}

// TransactionRepository persists payment attempts
type TransactionRepository interface {
	// Append stores a new transaction, returning ErrDuplicate when the same
	// provider notification (provider, provider txn no, result code) was already stored
	Append(ctx context.Context, tx *Transaction) error

	// ApplyPayment performs CompareAndSetStatus(orderID, from, to) and Append(tx) atomically.
	// It returns false when the status compare failed; in that case nothing is written.
	ApplyPayment(ctx context.Context, orderID string, from, to Status, tx *Transaction) (bool, error)

	// ListByOrder returns every transaction recorded for the order, oldest first
	ListByOrder(ctx context.Context, orderID string) ([]Transaction, error)

	// LatestSuccessful returns the most recent successful transaction or ErrNotFound
	LatestSuccessful(ctx context.Context, orderID string) (*Transaction, error)
}

// Notifier is told about confirmed payments, e.g. to e-mail the customer
type Notifier interface {
	PaymentConfirmed(ctx context.Context, o Order, tx Transaction) error
}
