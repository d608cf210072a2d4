package payment

import (
	"context"

	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/order"
)

// LogNotifier reports confirmed payments through the system logger. It stands in for
// the customer e-mail and delivery hand-off, which live outside this service.
type LogNotifier struct{}

// PaymentConfirmed implements order.Notifier
func (LogNotifier) PaymentConfirmed(_ context.Context, o order.Order, tx order.Transaction) error {
	logger.Info("Payment confirmed", logger.LogContext{
		OrderID:  o.ID,
		Provider: tx.Provider,
		Fields: map[string]any{
			"amount":          tx.Amount.StringFixed(2),
			"currency":        o.Currency,
			"provider_txn_no": tx.ProviderTxnNo,
			"customer_email":  o.CustomerEmail,
		},
	})
	return nil
}
