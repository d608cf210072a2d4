package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/infra/metrics"
	"github.com/mstgnz/mediapay/order"
	"github.com/mstgnz/mediapay/provider"
)

const (
	defaultRefundTimeout = 15 * time.Second
	defaultRefundRetries = 2
	defaultOperatorID    = "system"
)

// GatewayResolver returns the gateway registered under a provider key.
// *provider.Registry satisfies it.
type GatewayResolver interface {
	Resolve(key string) (provider.Gateway, error)
}

var _ GatewayResolver = (*provider.Registry)(nil)

// Outcome describes what reconciling one callback did to the order
type Outcome string

const (
	// OutcomeConfirmed: the order moved PENDING -> CONFIRMED
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRecorded: a failed attempt was stored, the order is unchanged
	OutcomeRecorded Outcome = "recorded"
	// OutcomeReplay: the notification had already been applied
	OutcomeReplay Outcome = "replay"
	// OutcomeLateSuccess: a successful payment arrived for an order that was already final
	OutcomeLateSuccess Outcome = "late_success"
	// OutcomeRejected: the callback was refused before reaching the order
	OutcomeRejected Outcome = "rejected"
)

// Reconciler applies callback outcomes and administrative actions to orders. Work on the
// same order is serialized in process by a keyed mutex and across processes by the
// compare-and-set on the order status column.
type Reconciler struct {
	orders       order.Repository
	transactions order.TransactionRepository
	gateways     GatewayResolver
	notifier     order.Notifier
	audit        AuditSink
	locks        *keyedMutex

	operatorID    string
	refundTimeout time.Duration
	refundRetries int
	retryWait     time.Duration

	now   func() time.Time
	newID func() string
}

// ReconcilerOption customizes a Reconciler
type ReconcilerOption func(*Reconciler)

// WithNotifier sets the collaborator told about confirmed payments
func WithNotifier(n order.Notifier) ReconcilerOption {
	return func(r *Reconciler) { r.notifier = n }
}

// WithAudit sets the audit sink for refunds
func WithAudit(a AuditSink) ReconcilerOption {
	return func(r *Reconciler) {
		if a != nil {
			r.audit = a
		}
	}
}

// WithRefundPolicy sets the operator recorded on refunds, the per-attempt timeout and
// how many times a refund that failed on the network is retried
func WithRefundPolicy(operatorID string, timeout time.Duration, retries int) ReconcilerOption {
	return func(r *Reconciler) {
		if operatorID != "" {
			r.operatorID = operatorID
		}
		if timeout > 0 {
			r.refundTimeout = timeout
		}
		if retries >= 0 {
			r.refundRetries = retries
		}
	}
}

// NewReconciler creates a reconciler over the given repositories
func NewReconciler(orders order.Repository, transactions order.TransactionRepository, gateways GatewayResolver, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		orders:        orders,
		transactions:  transactions,
		gateways:      gateways,
		audit:         NopAudit{},
		locks:         newKeyedMutex(),
		operatorID:    defaultOperatorID,
		refundTimeout: defaultRefundTimeout,
		refundRetries: defaultRefundRetries,
		retryWait:     500 * time.Millisecond,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies a parsed callback to its order and returns the resulting snapshot.
// Replays of an already applied notification change nothing.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string, record *provider.TransactionRecord) (*order.Order, error) {
	o, _, err := r.reconcile(ctx, orderID, record)
	return o, err
}

func (r *Reconciler) reconcile(ctx context.Context, orderID string, record *provider.TransactionRecord) (*order.Order, Outcome, error) {
	unlock := r.locks.Lock(orderID)
	defer unlock()

	current, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, OutcomeRejected, err
	}

	if !record.Amount.Equal(current.Total) {
		return current, OutcomeRejected, fmt.Errorf("%w: order %s total %s, callback amount %s",
			ErrAmountMismatch, orderID, current.Total, record.Amount)
	}

	tx := r.newTransaction(orderID, record)
	log := logger.WithOrder(orderID, record.Provider).
		AddField("provider_txn_no", record.ProviderTxnNo).
		AddField("result_code", record.ResultCode)

	if !record.Success {
		if err := r.transactions.Append(ctx, tx); err != nil {
			if errors.Is(err, order.ErrDuplicate) {
				log.Debug("Failed payment notification replayed")
				return current, OutcomeReplay, nil
			}
			return nil, OutcomeRejected, err
		}
		log.Info("Failed payment attempt recorded")
		return current, OutcomeRecorded, nil
	}

	if current.Status.IsTerminal() {
		return r.reconcileFinal(ctx, current, tx, log)
	}

	next, changed, err := order.Transition(current.Status, order.EventPaymentSucceeded)
	if err != nil {
		return nil, OutcomeRejected, err
	}

	applied, err := r.transactions.ApplyPayment(ctx, orderID, current.Status, next, tx)
	if err != nil && !errors.Is(err, order.ErrDuplicate) {
		return nil, OutcomeRejected, err
	}
	if err != nil || !applied {
		// another writer got there first
		latest, getErr := r.orders.Get(ctx, orderID)
		if getErr != nil {
			return nil, OutcomeRejected, getErr
		}
		if latest.Status.IsTerminal() {
			return r.reconcileFinal(ctx, latest, tx, log)
		}
		metrics.ConflictsTotal.WithLabelValues(record.Provider).Inc()
		return latest, OutcomeRejected, &order.ConflictError{OrderID: orderID, Expected: current.Status, Actual: latest.Status}
	}

	from := current.Status
	current.Status = next
	current.UpdatedAt = r.now()
	if changed {
		metrics.TransitionsTotal.WithLabelValues(string(from), string(next)).Inc()
	}
	log.Info("Order confirmed by payment callback")

	if r.notifier != nil {
		if err := r.notifier.PaymentConfirmed(ctx, *current, *tx); err != nil {
			log.Error("Failed to notify payment confirmation", err)
		}
	}
	return current, OutcomeConfirmed, nil
}

// reconcileFinal handles a successful notification for an order that is no longer PENDING.
// The order is never touched; an unseen transaction is stored once for later review.
// Money taken for a CANCELLED order is refunded right away.
func (r *Reconciler) reconcileFinal(ctx context.Context, current *order.Order, tx *order.Transaction, log *logger.ContextLogger) (*order.Order, Outcome, error) {
	if err := r.transactions.Append(ctx, tx); err != nil {
		if errors.Is(err, order.ErrDuplicate) {
			log.Debug("Successful payment notification replayed")
			return current, OutcomeReplay, nil
		}
		return nil, OutcomeRejected, err
	}
	log.AddField("order_status", string(current.Status)).
		Warn("Successful payment received for an order that is already final")

	if current.Status == order.StatusCancelled {
		if err := r.refund(ctx, tx, lateRefundReason); err != nil {
			log.Error("Failed to refund payment received after cancellation", err)
		}
	}
	return current, OutcomeLateSuccess, nil
}

func (r *Reconciler) newTransaction(orderID string, record *provider.TransactionRecord) *order.Transaction {
	paidAt := record.PaidAt
	if paidAt.IsZero() {
		paidAt = r.now()
	}
	return &order.Transaction{
		ID:            r.newID(),
		OrderID:       orderID,
		Provider:      record.Provider,
		ProviderTxnNo: record.ProviderTxnNo,
		Amount:        record.Amount,
		Content:       record.Content,
		ResultCode:    record.ResultCode,
		Success:       record.Success,
		BankCode:      record.BankCode,
		BankTxnNo:     record.BankTxnNo,
		CardType:      record.CardType,
		PaidAt:        paidAt,
		CreatedAt:     r.now(),
		AttemptKey:    attemptKey(record),
	}
}

// attemptKey digests the signed callback payload of attempts the provider left unnumbered,
// so a replay of that payload is still recognized while a new attempt is not
func attemptKey(record *provider.TransactionRecord) string {
	if (record.ProviderTxnNo != "" && record.ProviderTxnNo != "0") || len(record.Raw) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(provider.Canonicalize(record.Raw)))
	return "raw:" + hex.EncodeToString(sum[:])
}

// Approve confirms a PENDING order administratively
func (r *Reconciler) Approve(ctx context.Context, orderID string) (*order.Order, error) {
	o, _, err := r.transition(ctx, orderID, order.EventApprove)
	return o, err
}

// Reject moves a PENDING order to REJECTED
func (r *Reconciler) Reject(ctx context.Context, orderID string) (*order.Order, error) {
	o, _, err := r.transition(ctx, orderID, order.EventReject)
	return o, err
}

// Cancel moves a PENDING order to CANCELLED and refunds its latest successful payment,
// if any. Cancelling an order that is already final returns it unchanged and sends no refund.
// A failed refund is returned together with the cancelled order.
func (r *Reconciler) Cancel(ctx context.Context, orderID, reason string) (*order.Order, error) {
	unlock := r.locks.Lock(orderID)
	defer unlock()

	o, changed, err := r.transitionLocked(ctx, orderID, order.EventCancel)
	if err != nil || !changed {
		return o, err
	}

	paid, err := r.transactions.LatestSuccessful(ctx, orderID)
	if errors.Is(err, order.ErrNotFound) {
		return o, nil
	}
	if err != nil {
		return o, fmt.Errorf("order %s cancelled but its payments could not be loaded: %w", orderID, err)
	}

	if err := r.refund(ctx, paid, reason); err != nil {
		return o, err
	}
	return o, nil
}

func (r *Reconciler) transition(ctx context.Context, orderID string, ev order.Event) (*order.Order, bool, error) {
	unlock := r.locks.Lock(orderID)
	defer unlock()
	return r.transitionLocked(ctx, orderID, ev)
}

func (r *Reconciler) transitionLocked(ctx context.Context, orderID string, ev order.Event) (*order.Order, bool, error) {
	current, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	from := current.Status
	changed, err := current.Apply(ev)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return current, false, nil
	}

	ok, err := r.orders.CompareAndSetStatus(ctx, orderID, from, current.Status)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		latest, getErr := r.orders.Get(ctx, orderID)
		if getErr != nil {
			return nil, false, getErr
		}
		metrics.ConflictsTotal.WithLabelValues("admin").Inc()
		return latest, false, &order.ConflictError{OrderID: orderID, Expected: from, Actual: latest.Status}
	}

	current.UpdatedAt = r.now()
	metrics.TransitionsTotal.WithLabelValues(string(from), string(current.Status)).Inc()
	logger.Info("Order status changed", logger.LogContext{
		OrderID: orderID,
		Fields: map[string]any{
			"event": string(ev),
			"from":  string(from),
			"to":    string(current.Status),
		},
	})
	return current, true, nil
}

const lateRefundReason = "payment received after cancellation"

// refund asks the provider that took the payment to return it. Network failures are
// retried with backoff up to refundRetries times; every attempt is audited.
func (r *Reconciler) refund(ctx context.Context, paid *order.Transaction, reason string) error {
	gw, err := r.gateways.Resolve(paid.Provider)
	if err != nil {
		return err
	}

	request := provider.RefundRequest{
		Transaction: provider.TransactionRecord{
			Provider:      paid.Provider,
			OrderID:       paid.OrderID,
			ProviderTxnNo: paid.ProviderTxnNo,
			ResultCode:    paid.ResultCode,
			Success:       paid.Success,
			Amount:        paid.Amount,
			Content:       paid.Content,
			BankCode:      paid.BankCode,
			BankTxnNo:     paid.BankTxnNo,
			CardType:      paid.CardType,
			PaidAt:        paid.PaidAt,
		},
		Amount:     paid.Amount,
		OperatorID: r.operatorID,
		Reason:     reason,
		RequestID:  r.newID(),
	}

	wait := r.retryWait
	for attempt := 0; ; attempt++ {
		err = r.refundOnce(ctx, gw, request)
		if err == nil || !provider.IsKind(err, provider.KindNetwork) || attempt >= r.refundRetries {
			return err
		}
		logger.Warn("Refund failed on the network, retrying", logger.LogContext{
			OrderID:  paid.OrderID,
			Provider: paid.Provider,
			Fields:   map[string]any{"attempt": attempt + 1, "error": err.Error()},
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (r *Reconciler) refundOnce(ctx context.Context, gw provider.Gateway, request provider.RefundRequest) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.refundTimeout)
	defer cancel()

	started := r.now()
	entry := RefundAudit{
		Timestamp:     started,
		Provider:      gw.ProviderID(),
		OrderID:       request.Transaction.OrderID,
		ProviderTxnNo: request.Transaction.ProviderTxnNo,
		Amount:        request.RefundAmount().String(),
		OperatorID:    request.OperatorID,
		Reason:        request.Reason,
		RequestID:     request.RequestID,
	}
	defer func() {
		entry.DurationMs = time.Since(started).Milliseconds()
		outcome := "success"
		if err != nil {
			entry.Error = err.Error()
			outcome = "failed"
		}
		metrics.RefundsTotal.WithLabelValues(entry.Provider, outcome).Inc()
		if auditErr := r.audit.RecordRefund(context.WithoutCancel(ctx), entry); auditErr != nil {
			logger.Warn("Failed to record refund audit", logger.LogContext{
				OrderID:  entry.OrderID,
				Provider: entry.Provider,
				Fields:   map[string]any{"error": auditErr.Error()},
			})
		}
	}()

	resp, err := gw.RequestRefund(ctx, request)
	if err != nil {
		logger.Error("Refund request failed", err, logger.LogContext{OrderID: entry.OrderID, Provider: entry.Provider})
		return err
	}
	if resp.RequestID != "" {
		entry.RequestID = resp.RequestID
	}
	entry.StatusCode = resp.StatusCode

	result, err := gw.ParseRefund(resp.Body)
	if err != nil {
		logger.Error("Refund response could not be read", err, logger.LogContext{OrderID: entry.OrderID, Provider: entry.Provider})
		return err
	}
	entry.Success = result.Success
	entry.Code = result.Code
	entry.Message = result.Message
	entry.RefundID = result.RefundID

	if !result.Success {
		err = &provider.Error{
			Kind:     provider.KindRefundRejected,
			Provider: entry.Provider,
			Op:       "refund",
			Err:      fmt.Errorf("provider answered code %q: %s", result.Code, result.Message),
		}
		logger.Error("Refund rejected by provider", err, logger.LogContext{OrderID: entry.OrderID, Provider: entry.Provider})
		return err
	}

	logger.Info("Refund accepted", logger.LogContext{
		OrderID:  entry.OrderID,
		Provider: entry.Provider,
		Fields: map[string]any{
			"refund_id":  result.RefundID,
			"request_id": resp.RequestID,
			"amount":     entry.Amount,
		},
	})
	return nil
}
