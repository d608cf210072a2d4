package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/mediapay/infra/opensearch"
	"github.com/mstgnz/mediapay/order"
	"github.com/mstgnz/mediapay/payment"
	"github.com/mstgnz/mediapay/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type mockOrderService struct {
	orders       map[string]*order.Order
	transactions map[string][]order.Transaction
	refundErr    error
	lastReason   string
}

func newMockOrderService() *mockOrderService {
	return &mockOrderService{
		orders: map[string]*order.Order{
			"ord-1": {ID: "ord-1", Status: order.StatusPending, Total: decimal.RequireFromString("39.98")},
			"ord-2": {ID: "ord-2", Status: order.StatusConfirmed, Total: decimal.RequireFromString("10.00")},
		},
		transactions: map[string][]order.Transaction{
			"ord-2": {{ID: "tx-1", OrderID: "ord-2", Provider: "vnpay", ResultCode: "00", Success: true}},
		},
	}
}

func (m *mockOrderService) Order(_ context.Context, orderID string) (*order.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderService) Transactions(ctx context.Context, orderID string) ([]order.Transaction, error) {
	if _, err := m.Order(ctx, orderID); err != nil {
		return nil, err
	}
	return m.transactions[orderID], nil
}

func (m *mockOrderService) apply(ctx context.Context, orderID string, ev order.Event) (*order.Order, error) {
	o, err := m.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := o.Apply(ev); err != nil {
		return nil, err
	}
	return o, nil
}

func (m *mockOrderService) Cancel(ctx context.Context, orderID, reason string) (*order.Order, error) {
	m.lastReason = reason
	o, err := m.apply(ctx, orderID, order.EventCancel)
	if err != nil {
		return o, err
	}
	return o, m.refundErr
}

func (m *mockOrderService) Reject(ctx context.Context, orderID string) (*order.Order, error) {
	return m.apply(ctx, orderID, order.EventReject)
}

func (m *mockOrderService) Approve(ctx context.Context, orderID string) (*order.Order, error) {
	return m.apply(ctx, orderID, order.EventApprove)
}

func newOrderRouter(svc OrderServiceInterface) http.Handler {
	h := NewOrderHandler(svc)
	r := chi.NewRouter()
	r.Get("/v1/orders/{orderID}", h.GetOrder)
	r.Get("/v1/orders/{orderID}/transactions", h.Transactions)
	r.Post("/v1/orders/{orderID}/cancel", h.Cancel)
	r.Post("/v1/orders/{orderID}/reject", h.Reject)
	r.Post("/v1/orders/{orderID}/approve", h.Approve)
	return r
}

func TestOrderHandler_Actions(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantCode   int
		wantStatus order.Status
	}{
		{name: "reject pending", path: "/v1/orders/ord-1/reject", wantCode: http.StatusOK, wantStatus: order.StatusRejected},
		{name: "approve pending", path: "/v1/orders/ord-1/approve", wantCode: http.StatusOK, wantStatus: order.StatusConfirmed},
		{name: "cancel pending without body", path: "/v1/orders/ord-1/cancel", wantCode: http.StatusOK, wantStatus: order.StatusCancelled},
		{name: "cancel with reason", path: "/v1/orders/ord-1/cancel", body: `{"reason":"out of stock"}`, wantCode: http.StatusOK, wantStatus: order.StatusCancelled},
		{name: "cancel with bad body", path: "/v1/orders/ord-1/cancel", body: `{"reason":`, wantCode: http.StatusBadRequest},
		{name: "reject confirmed is a no-op", path: "/v1/orders/ord-2/reject", wantCode: http.StatusOK, wantStatus: order.StatusConfirmed},
		{name: "unknown order", path: "/v1/orders/nope/approve", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockOrderService()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))

			w, resp := do(t, newOrderRouter(svc), req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantStatus != "" {
				data := resp.Data.(map[string]any)
				assert.Equal(t, string(tt.wantStatus), data["status"])
			}
		})
	}
}

func TestOrderHandler_CancelRefundFailure(t *testing.T) {
	svc := newMockOrderService()
	svc.refundErr = provider.NetworkError("vnpay", "refund", errors.New("timeout"))
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/ord-1/cancel", strings.NewReader(`{"reason":"fraud"}`))

	w, resp := do(t, newOrderRouter(svc), req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Order cancelled, refund failed", resp.Message)
	assert.Equal(t, "fraud", svc.lastReason)
	data := resp.Data.(map[string]any)
	assert.Equal(t, string(order.StatusCancelled), data["status"])
}

func TestOrderHandler_Read(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
		wantLen  int
	}{
		{name: "order", path: "/v1/orders/ord-1", wantCode: http.StatusOK},
		{name: "transactions", path: "/v1/orders/ord-2/transactions", wantCode: http.StatusOK, wantLen: 1},
		{name: "no transactions", path: "/v1/orders/ord-1/transactions", wantCode: http.StatusOK, wantLen: 0},
		{name: "unknown order transactions", path: "/v1/orders/nope/transactions", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, newOrderRouter(newMockOrderService()), httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			if list, ok := resp.Data.([]any); ok {
				assert.Len(t, list, tt.wantLen)
			}
		})
	}
}

type fakeAuditReader struct {
	trail *opensearch.OrderAudit
	err   error
}

func (f fakeAuditReader) GetOrderAudit(context.Context, string) (*opensearch.OrderAudit, error) {
	return f.trail, f.err
}

func TestAuditHandler_OrderAudit(t *testing.T) {
	trail := &opensearch.OrderAudit{
		Callbacks: []payment.CallbackAudit{{Provider: "vnpay", OrderID: "ord-1", Outcome: "confirmed"}},
	}
	tests := []struct {
		name     string
		reader   AuditReader
		wantCode int
	}{
		{name: "found", reader: fakeAuditReader{trail: trail}, wantCode: http.StatusOK},
		{name: "backend error", reader: fakeAuditReader{err: errors.New("cluster red")}, wantCode: http.StatusInternalServerError},
		{name: "disabled", reader: nil, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuditHandler(tt.reader)
			r := chi.NewRouter()
			r.Get("/v1/orders/{orderID}/audit", h.OrderAudit)

			w, _ := do(t, r, httptest.NewRequest(http.MethodGet, "/v1/orders/ord-1/audit", nil))

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
