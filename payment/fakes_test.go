package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mstgnz/mediapay/order"
	"github.com/mstgnz/mediapay/provider"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory order.Repository and order.TransactionRepository
type memStore struct {
	mu       sync.Mutex
	orders   map[string]order.Order
	txs      []order.Transaction
	casCalls int
}

func newMemStore(orders ...order.Order) *memStore {
	s := &memStore{orders: make(map[string]order.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (s *memStore) Save(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = *o
	return nil
}

func (s *memStore) CompareAndSetStatus(_ context.Context, id string, from, to order.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	return s.casLocked(id, from, to)
}

func (s *memStore) casLocked(id string, from, to order.Status) (bool, error) {
	o, ok := s.orders[id]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	s.orders[id] = o
	return true, nil
}

func (s *memStore) duplicateLocked(tx *order.Transaction) bool {
	for _, existing := range s.txs {
		if existing.SameAttempt(*tx) {
			return true
		}
	}
	return false
}

func (s *memStore) Append(_ context.Context, tx *order.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateLocked(tx) {
		return order.ErrDuplicate
	}
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *memStore) ApplyPayment(_ context.Context, orderID string, from, to order.Status, tx *order.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	o, ok := s.orders[orderID]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	if s.duplicateLocked(tx) {
		return false, order.ErrDuplicate
	}
	o.Status = to
	s.orders[orderID] = o
	s.txs = append(s.txs, *tx)
	return true, nil
}

func (s *memStore) ListByOrder(_ context.Context, orderID string) ([]order.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Transaction
	for _, tx := range s.txs {
		if tx.OrderID == orderID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *memStore) LatestSuccessful(_ context.Context, orderID string) (*order.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].OrderID == orderID && s.txs[i].Success {
			tx := s.txs[i]
			return &tx, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *memStore) status(id string) order.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

func (s *memStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casCalls
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *countingNotifier) PaymentConfirmed(context.Context, order.Order, order.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type captureAudit struct {
	mu        sync.Mutex
	callbacks []CallbackAudit
	refunds   []RefundAudit
}

func (a *captureAudit) RecordCallback(_ context.Context, e CallbackAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, e)
	return nil
}

func (a *captureAudit) RecordRefund(_ context.Context, e RefundAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refunds = append(a.refunds, e)
	return nil
}

const testProvider = "fakepay"

var fakeCodes = provider.CodeTable{
	Provider:    testProvider,
	SuccessCode: "00",
	Codes: map[string]provider.BusinessKind{
		"24": provider.CustomerCancelled,
		"51": provider.InsufficientBalance,
	},
}

// fakeGateway reads callbacks from plain params: ref, txn, code, amount (minor units), sig
type fakeGateway struct {
	mu          sync.Mutex
	refundCalls int
	refundErr   error
	refundBody  string
	requestIDs  []string
}

func (g *fakeGateway) ProviderID() string { return testProvider }

func (g *fakeGateway) BuildPaymentURL(_ context.Context, r provider.PaymentURLRequest) (string, error) {
	amount, err := provider.FormatMinorUnits(r.Amount)
	if err != nil {
		return "", err
	}
	return "https://pay.example/checkout?ref=" + r.OrderID + "&amount=" + amount, nil
}

func (g *fakeGateway) OrderReference(cb provider.Callback) (string, error) {
	if cb.Params["ref"] == "" {
		return "", provider.CallbackError(testProvider, "missing ref")
	}
	return cb.Params["ref"], nil
}

func (g *fakeGateway) ParseCallback(cb provider.Callback, o provider.OrderContext) (*provider.TransactionRecord, error) {
	if cb.Params["sig"] != "ok" {
		return nil, provider.SignatureError(testProvider)
	}
	amount, err := provider.ParseMinorUnits(cb.Params["amount"])
	if err != nil {
		return nil, provider.CallbackError(testProvider, "%v", err)
	}
	return &provider.TransactionRecord{
		Provider:      testProvider,
		OrderID:       cb.Params["ref"],
		ProviderTxnNo: cb.Params["txn"],
		ResultCode:    cb.Params["code"],
		Success:       fakeCodes.IsSuccess(cb.Params["code"]),
		Amount:        amount,
		PaidAt:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Order:         o,
	}, nil
}

func (g *fakeGateway) Classify(code string) error { return fakeCodes.Classify(code) }

func (g *fakeGateway) RequestRefund(_ context.Context, request provider.RefundRequest) (*provider.RefundResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	g.requestIDs = append(g.requestIDs, request.RequestID)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	body := g.refundBody
	if body == "" {
		body = "00"
	}
	return &provider.RefundResponse{RequestID: request.RequestID, StatusCode: 200, Body: []byte(body)}, nil
}

func (g *fakeGateway) ParseRefund(raw []byte) (*provider.RefundResult, error) {
	code := string(raw)
	return &provider.RefundResult{Success: code == "00", Code: code, RefundID: "rf-1"}, nil
}

func (g *fakeGateway) Acknowledge(outcome provider.AckOutcome) provider.Ack {
	body := "fail"
	if outcome == provider.AckConfirmed || outcome == provider.AckAlreadyConfirmed {
		body = "ok"
	}
	return provider.Ack{StatusCode: 200, ContentType: "text/plain", Body: []byte(body)}
}

func (g *fakeGateway) refunds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refundCalls
}

var errBoom = errors.New("boom")

func pendingOrder(id string) order.Order {
	return order.Order{
		ID:       id,
		Status:   order.StatusPending,
		Total:    decimal.RequireFromString("39.98"),
		Currency: "VND",
	}
}

func successRecord(orderID, txn string) *provider.TransactionRecord {
	return &provider.TransactionRecord{
		Provider:      testProvider,
		OrderID:       orderID,
		ProviderTxnNo: txn,
		ResultCode:    "00",
		Success:       true,
		Amount:        decimal.RequireFromString("39.98"),
	}
}
