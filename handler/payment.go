package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/mediapay/infra/logger"
	"github.com/mstgnz/mediapay/infra/middle"
	"github.com/mstgnz/mediapay/infra/response"
	"github.com/mstgnz/mediapay/payment"
	"github.com/mstgnz/mediapay/provider"
)

const requestTimeout = 30 * time.Second

// PaymentServiceInterface is the part of payment.Service the payment routes need
type PaymentServiceInterface interface {
	CreatePaymentURL(ctx context.Context, providerKey string, request payment.URLRequest) (string, error)
	HandleCallback(ctx context.Context, providerKey string, callback provider.Callback) (*payment.CallbackResult, error)
	Acknowledge(providerKey string, outcome provider.AckOutcome) (provider.Ack, bool)
}

// PaymentHandler serves checkout URLs and inbound provider notifications
type PaymentHandler struct {
	paymentService PaymentServiceInterface
	validate       *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService PaymentServiceInterface, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validate,
	}
}

// CreatePaymentURL handles POST /v1/payments/{provider}
func (h *PaymentHandler) CreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req payment.URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	req.ClientIP = middle.GetClientIP(r)

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	url, err := h.paymentService.CreatePaymentURL(ctx, chi.URLParam(r, "provider"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Payment URL created", map[string]string{"url": url})
}

// HandleReturn handles GET /callback/{provider}, the browser redirect after checkout.
// It reconciles like a notification and reports the order status to the shopper's client.
func (h *PaymentHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	callback, err := paramsCallback(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid callback parameters", err)
		return
	}

	result, err := h.paymentService.HandleCallback(ctx, chi.URLParam(r, "provider"), callback)
	if err != nil && !provider.IsKind(err, provider.KindBusiness) {
		writeError(w, err)
		return
	}

	resp := response.Response{
		Code:    http.StatusOK,
		Success: err == nil,
		Message: "Payment completed",
		Reason:  result.Reason,
		Data:    result,
	}
	if err != nil {
		resp.Message = "Payment was not successful"
		resp.Error = err.Error()
	}
	_ = response.WriteJSON(w, http.StatusOK, resp)
}

// HandleIPN handles GET|POST /ipn/{provider}, the server-to-server notification. The reply
// uses the provider's acknowledgement format when it has one.
func (h *PaymentHandler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerKey := chi.URLParam(r, "provider")
	callback, err := paramsCallback(r)
	if err != nil {
		h.acknowledge(w, providerKey, provider.AckUnknownError, err)
		return
	}

	result, err := h.paymentService.HandleCallback(ctx, providerKey, callback)
	outcome := provider.AckUnknownError
	if result != nil {
		outcome = result.AckOutcome
	}
	h.acknowledge(w, providerKey, outcome, err)
}

// HandleWebhook handles POST /webhooks/{provider}, signed raw-body events. Declined
// payments are acknowledged with 200 so the provider stops redelivering them.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerKey := chi.URLParam(r, "provider")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Failed to read webhook body", err)
		return
	}

	result, err := h.paymentService.HandleCallback(ctx, providerKey, provider.Callback{
		Body:   body,
		Header: r.Header.Clone(),
	})
	if err != nil && !provider.IsKind(err, provider.KindBusiness) {
		logger.Warn("Webhook rejected", logger.LogContext{
			Provider: providerKey,
			Fields:   map[string]any{"error": err.Error()},
		})
		writeError(w, err)
		return
	}

	if ack, ok := h.paymentService.Acknowledge(providerKey, result.AckOutcome); ok {
		response.Raw(w, ack.StatusCode, ack.ContentType, ack.Body)
		return
	}
	response.Success(w, http.StatusOK, "Webhook processed", map[string]any{
		"orderId": result.OrderID,
		"outcome": result.Outcome,
	})
}

// acknowledge writes the provider specific reply, falling back to the JSON envelope
func (h *PaymentHandler) acknowledge(w http.ResponseWriter, providerKey string, outcome provider.AckOutcome, err error) {
	if ack, ok := h.paymentService.Acknowledge(providerKey, outcome); ok {
		response.Raw(w, ack.StatusCode, ack.ContentType, ack.Body)
		return
	}
	if err != nil && !provider.IsKind(err, provider.KindBusiness) {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Notification processed", nil)
}

// paramsCallback collects query and form parameters; the first value of each key wins
func paramsCallback(r *http.Request) (provider.Callback, error) {
	if err := r.ParseForm(); err != nil {
		return provider.Callback{}, err
	}
	params := make(map[string]string, len(r.Form))
	for key, values := range r.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return provider.Callback{Params: params, Header: r.Header.Clone()}, nil
}
