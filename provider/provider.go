package provider

import (
	"context"
)

// Gateway defines the contract every payment provider adapter implements
type Gateway interface {
	// ProviderID returns the stable lowercase key the registry resolves this gateway by
	ProviderID() string

	// BuildPaymentURL assembles and signs the provider checkout URL for an order.
	// It causes no state change.
	BuildPaymentURL(ctx context.Context, request PaymentURLRequest) (string, error)

	// OrderReference extracts the merchant order reference from a callback so the
	// order can be loaded before the callback is parsed
	OrderReference(callback Callback) (string, error)

	// ParseCallback verifies the callback signature and normalizes it into a TransactionRecord
	ParseCallback(callback Callback, order OrderContext) (*TransactionRecord, error)

	// Classify maps a provider result code onto the business taxonomy.
	// It returns nil only for the provider's documented success code.
	Classify(code string) error

	// RequestRefund sends a signed refund request and returns the raw provider answer
	RequestRefund(ctx context.Context, request RefundRequest) (*RefundResponse, error)

	// ParseRefund interprets a raw refund answer returned by RequestRefund
	ParseRefund(raw []byte) (*RefundResult, error)
}

// Acknowledger is implemented by gateways whose server-to-server notifications
// expect a specific reply body
type Acknowledger interface {
	Acknowledge(outcome AckOutcome) Ack
}

// AckOutcome is the result of processing a notification, as reported back to the provider
type AckOutcome int

const (
	AckConfirmed AckOutcome = iota
	AckOrderNotFound
	AckAlreadyConfirmed
	AckInvalidAmount
	AckInvalidSignature
	AckUnknownError
)

// Ack is a provider specific notification reply
type Ack struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Factory creates a configured gateway instance
type Factory func(conf Config) (Gateway, error)
