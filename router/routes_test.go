package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mstgnz/mediapay/handler"
	"github.com/mstgnz/mediapay/infra/validate"
	"github.com/mstgnz/mediapay/order"
	"github.com/mstgnz/mediapay/payment"
	"github.com/mstgnz/mediapay/provider"
	v1 "github.com/mstgnz/mediapay/router/v1"
	"github.com/stretchr/testify/assert"
)

type stubPayments struct{}

func (stubPayments) CreatePaymentURL(_ context.Context, providerKey string, r payment.URLRequest) (string, error) {
	return "https://pay.example/" + providerKey + "/" + r.OrderID, nil
}

func (stubPayments) HandleCallback(_ context.Context, providerKey string, _ provider.Callback) (*payment.CallbackResult, error) {
	return &payment.CallbackResult{Provider: providerKey, OrderID: "ord-1", Outcome: payment.OutcomeConfirmed, AckOutcome: provider.AckConfirmed}, nil
}

func (stubPayments) Acknowledge(string, provider.AckOutcome) (provider.Ack, bool) {
	return provider.Ack{StatusCode: http.StatusOK, ContentType: "application/json", Body: []byte(`{"RspCode":"00","Message":"Confirm Success"}`)}, true
}

type stubOrders struct{}

func (stubOrders) Order(_ context.Context, id string) (*order.Order, error) {
	return &order.Order{ID: id, Status: order.StatusPending}, nil
}

func (stubOrders) Transactions(context.Context, string) ([]order.Transaction, error) {
	return nil, nil
}

func (stubOrders) Cancel(_ context.Context, id, _ string) (*order.Order, error) {
	return &order.Order{ID: id, Status: order.StatusCancelled}, nil
}

func (stubOrders) Reject(_ context.Context, id string) (*order.Order, error) {
	return &order.Order{ID: id, Status: order.StatusRejected}, nil
}

func (stubOrders) Approve(_ context.Context, id string) (*order.Order, error) {
	return &order.Order{ID: id, Status: order.StatusConfirmed}, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type providerList []string

func (p providerList) Providers() []string { return p }

func newTestRouter() http.Handler {
	return New(Options{
		APIKey:          "secret",
		AllowedOrigins:  []string{"*"},
		NotificationIPs: []string{"113.160.92.202"},
		Health:          handler.NewHealthHandler(okPinger{}, "sqlite", providerList{"vnpay"}, "test"),
	}, v1.Handlers{
		Payment: handler.NewPaymentHandler(stubPayments{}, validate.New()),
		Orders:  handler.NewOrderHandler(stubOrders{}),
	})
}

func TestNew_Routes(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		auth     string
		remoteIP string
		want     int
	}{
		{name: "health is public", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "metrics is public", method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{name: "return is public", method: http.MethodGet, path: "/callback/vnpay?vnp_TxnRef=ord-1", want: http.StatusOK},
		{name: "ipn from provider", method: http.MethodGet, path: "/ipn/vnpay?vnp_TxnRef=ord-1", remoteIP: "113.160.92.202", want: http.StatusOK},
		{name: "ipn from elsewhere", method: http.MethodGet, path: "/ipn/vnpay?vnp_TxnRef=ord-1", remoteIP: "198.51.100.1", want: http.StatusForbidden},
		{name: "webhook is public", method: http.MethodPost, path: "/webhooks/stripe", body: `{}`, want: http.StatusOK},
		{name: "api requires key", method: http.MethodGet, path: "/v1/orders/ord-1", want: http.StatusUnauthorized},
		{name: "api with key", method: http.MethodGet, path: "/v1/orders/ord-1", auth: "Bearer secret", want: http.StatusOK},
		{name: "payment url with key", method: http.MethodPost, path: "/v1/payments/vnpay", body: `{"orderId":"ord-1"}`, auth: "Bearer secret", want: http.StatusOK},
		{name: "cancel with key", method: http.MethodPost, path: "/v1/orders/ord-1/cancel", auth: "Bearer secret", want: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/nope", want: http.StatusNotFound},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.remoteIP != "" {
				req.RemoteAddr = tt.remoteIP + ":443"
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNew_SecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
