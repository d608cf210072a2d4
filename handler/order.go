package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/mediapay/infra/response"
	"github.com/mstgnz/mediapay/order"
)

// OrderServiceInterface is the part of payment.Service the order admin routes need
type OrderServiceInterface interface {
	Order(ctx context.Context, orderID string) (*order.Order, error)
	Transactions(ctx context.Context, orderID string) ([]order.Transaction, error)
	Cancel(ctx context.Context, orderID, reason string) (*order.Order, error)
	Reject(ctx context.Context, orderID string) (*order.Order, error)
	Approve(ctx context.Context, orderID string) (*order.Order, error)
}

// OrderHandler serves order administration
type OrderHandler struct {
	orders OrderServiceInterface
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderServiceInterface) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// GetOrder handles GET /v1/orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.orders.Order(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Order retrieved", o)
}

// Transactions handles GET /v1/orders/{orderID}/transactions
func (h *OrderHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	txs, err := h.orders.Transactions(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if txs == nil {
		txs = []order.Transaction{}
	}
	response.Success(w, http.StatusOK, "Transactions retrieved", txs)
}

// Cancel handles POST /v1/orders/{orderID}/cancel. The body is optional.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	o, err := h.orders.Cancel(ctx, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		if o != nil && o.Status == order.StatusCancelled && !order.IsConflict(err) {
			// the order is cancelled but the refund did not go through
			_ = response.WriteJSON(w, http.StatusBadGateway, response.Response{
				Code:    http.StatusBadGateway,
				Success: false,
				Message: "Order cancelled, refund failed",
				Error:   err.Error(),
				Data:    o,
			})
			return
		}
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Order cancelled", o)
}

// Reject handles POST /v1/orders/{orderID}/reject
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Order rejected", h.orders.Reject)
}

// Approve handles POST /v1/orders/{orderID}/approve
func (h *OrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Order approved", h.orders.Approve)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, message string, fn func(context.Context, string) (*order.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := fn(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, message, o)
}
