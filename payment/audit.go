package payment

import (
	"context"
	"time"
)

// CallbackAudit is the audit trail entry written for every processed provider callback
type CallbackAudit struct {
	Timestamp     time.Time         `json:"timestamp"`
	Provider      string            `json:"provider"`
	OrderID       string            `json:"order_id"`
	ProviderTxnNo string            `json:"provider_txn_no,omitempty"`
	ResultCode    string            `json:"result_code,omitempty"`
	Success       bool              `json:"success"`
	Amount        string            `json:"amount,omitempty"`
	Outcome       string            `json:"outcome"`
	OrderStatus   string            `json:"order_status,omitempty"`
	Error         string            `json:"error,omitempty"`
	Params        map[string]string `json:"params,omitempty"`
}

// RefundAudit is the audit trail entry written for every refund attempt
type RefundAudit struct {
	Timestamp     time.Time `json:"timestamp"`
	Provider      string    `json:"provider"`
	OrderID       string    `json:"order_id"`
	RequestID     string    `json:"request_id,omitempty"`
	ProviderTxnNo string    `json:"provider_txn_no"`
	Amount        string    `json:"amount"`
	OperatorID    string    `json:"operator_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	StatusCode    int       `json:"status_code,omitempty"`
	Success       bool      `json:"success"`
	Code          string    `json:"code,omitempty"`
	Message       string    `json:"message,omitempty"`
	RefundID      string    `json:"refund_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}

// AuditSink stores callback and refund audit entries. Failures are logged by the caller
// and never change the outcome of the audited operation.
type AuditSink interface {
	RecordCallback(ctx context.Context, entry CallbackAudit) error
	RecordRefund(ctx context.Context, entry RefundAudit) error
}

// NopAudit discards audit entries
type NopAudit struct{}

func (NopAudit) RecordCallback(context.Context, CallbackAudit) error { return nil }
func (NopAudit) RecordRefund(context.Context, RefundAudit) error     { return nil }
