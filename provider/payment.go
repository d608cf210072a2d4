package provider

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentURLRequest contains what a gateway needs to build a checkout URL
type PaymentURLRequest struct {
	OrderID     string          `json:"orderId" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	ClientIP    string          `json:"clientIp" validate:"required"`
	Locale      string          `json:"locale,omitempty"`
	BankCode    string          `json:"bankCode,omitempty"`
}

// Callback is an inbound provider notification. Redirect gateways deliver flat
// key-value parameters; webhook gateways deliver a raw body plus signature headers.
type Callback struct {
	Params map[string]string
	Body   []byte
	Header http.Header
}

// OrderContext is the order information attached to a parsed transaction for downstream use
type OrderContext struct {
	OrderID       string          `json:"orderId"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	Total         decimal.Decimal `json:"total"`
}

// TransactionRecord is the provider-neutral form of a parsed callback
type TransactionRecord struct {
	Provider      string            `json:"provider"`
	OrderID       string            `json:"orderId"`
	ProviderTxnNo string            `json:"providerTxnNo"`
	ResultCode    string            `json:"resultCode"`
	Success       bool              `json:"success"`
	Amount        decimal.Decimal   `json:"amount"`
	Content       string            `json:"content,omitempty"`
	BankCode      string            `json:"bankCode,omitempty"`
	BankTxnNo     string            `json:"bankTxnNo,omitempty"`
	CardType      string            `json:"cardType,omitempty"`
	PaidAt        time.Time         `json:"paidAt"`
	Order         OrderContext      `json:"order"`
	Raw           map[string]string `json:"raw,omitempty"`
}

// RefundRequest asks a gateway to return money for a previously successful transaction
type RefundRequest struct {
	Transaction TransactionRecord `json:"transaction"`
	Amount      decimal.Decimal   `json:"amount"`
	OperatorID  string            `json:"operatorId"`
	ClientIP    string            `json:"clientIp"`
	Reason      string            `json:"reason,omitempty"`
	// RequestID is reused by every retry of the same refund so the provider can
	// tell a resend from a second refund
	RequestID string `json:"requestId,omitempty"`
}

// RefundAmount returns the requested amount, or the full paid amount when none was given
func (r RefundRequest) RefundAmount() decimal.Decimal {
	if r.Amount.IsZero() {
		return r.Transaction.Amount
	}
	return r.Amount
}

// RefundResponse is the raw provider answer to a refund request
type RefundResponse struct {
	RequestID  string `json:"requestId"`
	StatusCode int    `json:"statusCode"`
	Body       []byte `json:"-"`
}

// RefundResult is the parsed form of a RefundResponse
type RefundResult struct {
	Success  bool   `json:"success"`
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
	RefundID string `json:"refundId,omitempty"`
}
