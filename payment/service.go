package payment

import (
	"context"
	"errors"
	"time"

	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/infra/metrics"
	"github.com/mstgnz/mediapay/order"
	"github.com/mstgnz/mediapay/provider"
)

// URLRequest asks for a checkout URL for a PENDING order
type URLRequest struct {
	OrderID  string `json:"orderId" validate:"required,orderref"`
	ClientIP string `json:"-"`
	Locale   string `json:"locale,omitempty" validate:"locale"`
	BankCode string `json:"bankCode,omitempty"`
}

// CallbackResult is what the payment service learned from one callback. It is returned
// alongside errors too, so that transports can still acknowledge the notification.
type CallbackResult struct {
	Provider   string                      `json:"provider"`
	OrderID    string                      `json:"orderId,omitempty"`
	Order      *order.Order                `json:"order,omitempty"`
	Record     *provider.TransactionRecord `json:"-"`
	Outcome    Outcome                     `json:"outcome"`
	Reason     string                      `json:"reason,omitempty"`
	AckOutcome provider.AckOutcome         `json:"-"`
}

// Service exposes the payment use cases to the transport layer
type Service struct {
	gateways     GatewayResolver
	orders       order.Repository
	transactions order.TransactionRepository
	reconciler   *Reconciler
	audit        AuditSink
}

// NewService creates a payment service. A nil audit sink discards audit entries.
func NewService(gateways GatewayResolver, orders order.Repository, transactions order.TransactionRepository, reconciler *Reconciler, audit AuditSink) *Service {
	if audit == nil {
		audit = NopAudit{}
	}
	return &Service{
		gateways:     gateways,
		orders:       orders,
		transactions: transactions,
		reconciler:   reconciler,
		audit:        audit,
	}
}

// CreatePaymentURL builds the signed checkout URL of providerKey for a PENDING order
func (s *Service) CreatePaymentURL(ctx context.Context, providerKey string, request URLRequest) (string, error) {
	gw, err := s.gateways.Resolve(providerKey)
	if err != nil {
		return "", err
	}

	o, err := s.orders.Get(ctx, request.OrderID)
	if err != nil {
		return "", err
	}
	if _, _, err := order.Transition(o.Status, order.EventRequestPayment); err != nil {
		if ise, ok := err.(*order.InvalidStateError); ok {
			ise.OrderID = o.ID
		}
		return "", err
	}

	url, err := gw.BuildPaymentURL(ctx, provider.PaymentURLRequest{
		OrderID:  o.ID,
		Amount:   o.Total,
		ClientIP: request.ClientIP,
		Locale:   request.Locale,
		BankCode: request.BankCode,
	})
	if err != nil {
		logger.Error("Failed to build payment URL", err, logger.LogContext{OrderID: o.ID, Provider: gw.ProviderID()})
		return "", err
	}

	logger.Info("Payment URL created", logger.LogContext{OrderID: o.ID, Provider: gw.ProviderID()})
	return url, nil
}

// HandleCallback verifies a provider callback, reconciles it against the order and
// returns the provider's classification of the result code. A business error is returned
// only after the attempt has been recorded.
func (s *Service) HandleCallback(ctx context.Context, providerKey string, callback provider.Callback) (result *CallbackResult, err error) {
	started := time.Now()
	result = &CallbackResult{Provider: providerKey, Outcome: OutcomeRejected, AckOutcome: provider.AckUnknownError}
	defer func() {
		s.recordCallback(ctx, result, callback, err, started)
	}()

	gw, err := s.gateways.Resolve(providerKey)
	if err != nil {
		return result, err
	}
	result.Provider = gw.ProviderID()

	ref, err := gw.OrderReference(callback)
	if err != nil {
		result.AckOutcome = ackFor(err)
		return result, err
	}
	result.OrderID = ref

	o, err := s.orders.Get(ctx, ref)
	if err != nil {
		result.AckOutcome = ackFor(err)
		return result, err
	}

	record, err := gw.ParseCallback(callback, provider.OrderContext{
		OrderID:       o.ID,
		CustomerEmail: o.CustomerEmail,
		Total:         o.Total,
	})
	if err != nil {
		result.AckOutcome = ackFor(err)
		return result, err
	}
	if record.OrderID != ref {
		err = provider.CallbackError(result.Provider, "callback reference %q does not match parsed order %q", ref, record.OrderID)
		return result, err
	}

	classifyErr := gw.Classify(record.ResultCode)
	record.Success = classifyErr == nil
	result.Record = record
	if classifyErr != nil {
		if kind, ok := provider.BusinessKindOf(classifyErr); ok {
			result.Reason = kind.Reason()
		}
	}

	updated, outcome, err := s.reconciler.reconcile(ctx, ref, record)
	result.Outcome = outcome
	if updated != nil {
		result.Order = updated
	}
	if err != nil {
		result.AckOutcome = ackFor(err)
		return result, err
	}

	result.AckOutcome = provider.AckConfirmed
	if outcome != OutcomeConfirmed && updated.Status.IsTerminal() {
		result.AckOutcome = provider.AckAlreadyConfirmed
	}
	return result, classifyErr
}

// Acknowledge renders the notification reply for providerKey. ok is false when the
// gateway has no specific reply format.
func (s *Service) Acknowledge(providerKey string, outcome provider.AckOutcome) (ack provider.Ack, ok bool) {
	gw, err := s.gateways.Resolve(providerKey)
	if err != nil {
		return provider.Ack{}, false
	}
	acker, ok := gw.(provider.Acknowledger)
	if !ok {
		return provider.Ack{}, false
	}
	return acker.Acknowledge(outcome), true
}

// Transactions lists every payment attempt recorded for an order, oldest first
func (s *Service) Transactions(ctx context.Context, orderID string) ([]order.Transaction, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.transactions.ListByOrder(ctx, orderID)
}

// Order returns the current order snapshot
func (s *Service) Order(ctx context.Context, orderID string) (*order.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// Cancel cancels a PENDING order and refunds its payment, if any
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*order.Order, error) {
	return s.reconciler.Cancel(ctx, orderID, reason)
}

// Reject rejects a PENDING order
func (s *Service) Reject(ctx context.Context, orderID string) (*order.Order, error) {
	return s.reconciler.Reject(ctx, orderID)
}

// Approve confirms a PENDING order without a payment callback
func (s *Service) Approve(ctx context.Context, orderID string) (*order.Order, error) {
	return s.reconciler.Approve(ctx, orderID)
}

func ackFor(err error) provider.AckOutcome {
	switch {
	case provider.IsKind(err, provider.KindSignature):
		return provider.AckInvalidSignature
	case errors.Is(err, order.ErrNotFound):
		return provider.AckOrderNotFound
	case errors.Is(err, ErrAmountMismatch):
		return provider.AckInvalidAmount
	default:
		return provider.AckUnknownError
	}
}

func (s *Service) recordCallback(ctx context.Context, result *CallbackResult, callback provider.Callback, err error, started time.Time) {
	outcome := string(result.Outcome)
	metrics.CallbacksTotal.WithLabelValues(result.Provider, outcome).Inc()

	entry := CallbackAudit{
		Timestamp: started,
		Provider:  result.Provider,
		OrderID:   result.OrderID,
		Outcome:   outcome,
		Params:    callback.Params,
	}
	if rec := result.Record; rec != nil {
		entry.ProviderTxnNo = rec.ProviderTxnNo
		entry.ResultCode = rec.ResultCode
		entry.Success = rec.Success
		entry.Amount = rec.Amount.String()
		if entry.Params == nil {
			entry.Params = rec.Raw
		}
	}
	if result.Order != nil {
		entry.OrderStatus = string(result.Order.Status)
	}
	if err != nil {
		entry.Error = err.Error()
	}

	logCtx := logger.LogContext{
		OrderID:  result.OrderID,
		Provider: result.Provider,
		Fields: map[string]any{
			"outcome":     outcome,
			"duration_ms": time.Since(started).Milliseconds(),
		},
	}
	if result.Outcome == OutcomeRejected {
		logger.Warn("Callback rejected", withError(logCtx, err))
	} else {
		logger.Info("Callback processed", logCtx)
	}

	if auditErr := s.audit.RecordCallback(context.WithoutCancel(ctx), entry); auditErr != nil {
		logger.Warn("Failed to record callback audit", withError(logCtx, auditErr))
	}
}

func withError(ctx logger.LogContext, err error) logger.LogContext {
	if err == nil {
		return ctx
	}
	fields := make(map[string]any, len(ctx.Fields)+1)
	for k, v := range ctx.Fields {
		fields[k] = v
	}
	fields["error"] = err.Error()
	ctx.Fields = fields
	return ctx
}
