package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an order
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is permitted from s
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected || s == StatusCancelled
}

// Order is the slice of the order aggregate the payment subsystem reads and mutates.
// Total is expressed in major currency units.
type Order struct {
	ID            string          `json:"id"`
	Status        Status          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	CustomerID    string          `json:"customerId,omitempty"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	DeliveryID    string          `json:"deliveryId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Transaction is one persisted payment attempt for an order. An order may own many
// transactions; each callback that carries a new provider transaction becomes a new row.
type Transaction struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	Provider      string          `json:"provider"`
	ProviderTxnNo string          `json:"providerTxnNo"`
	Amount        decimal.Decimal `json:"amount"`
	Content       string          `json:"content,omitempty"`
	ResultCode    string          `json:"resultCode"`
	Success       bool            `json:"success"`
	BankCode      string          `json:"bankCode,omitempty"`
	BankTxnNo     string          `json:"bankTxnNo,omitempty"`
	CardType      string          `json:"cardType,omitempty"`
	PaidAt        time.Time       `json:"paidAt"`
	CreatedAt     time.Time       `json:"createdAt"`

	// AttemptKey identifies the provider notification when ProviderTxnNo cannot,
	// e.g. a digest of the signed callback payload
	AttemptKey string `json:"-"`
}

// DedupKey is the value replays of the same notification share. Gateways report an
// empty or "0" transaction number for attempts that never reached the bank, so such
// rows fall back to AttemptKey and, without one, to their own ID.
func (t Transaction) DedupKey() string {
	if t.AttemptKey != "" {
		return t.AttemptKey
	}
	if t.ProviderTxnNo != "" && t.ProviderTxnNo != "0" {
		return t.ProviderTxnNo
	}
	return "id:" + t.ID
}

// SameAttempt reports whether t and other describe the same provider notification
// for the same order
func (t Transaction) SameAttempt(other Transaction) bool {
	return t.OrderID == other.OrderID &&
		t.Provider == other.Provider &&
		t.DedupKey() == other.DedupKey() &&
		t.ResultCode == other.ResultCode
}
