package handler

import (
	"errors"
	"net/http"

	"github.com/mstgnz/mediapay/infra/response"
	"github.com/mstgnz/mediapay/order"
	"github.com/mstgnz/mediapay/payment"
	"github.com/mstgnz/mediapay/provider"
)

// statusFor maps a service error onto an HTTP status and a client facing message
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, payment.ErrAmountMismatch):
		return http.StatusBadRequest, "Amount does not match the order"
	case order.IsInvalidState(err):
		return http.StatusConflict, "Order status does not allow this action"
	case order.IsConflict(err):
		return http.StatusConflict, "Order was modified concurrently"
	case provider.IsKind(err, provider.KindUnsupportedProvider):
		return http.StatusBadRequest, "Unsupported provider"
	case provider.IsKind(err, provider.KindSignature):
		return http.StatusBadRequest, "Invalid signature"
	case provider.IsKind(err, provider.KindCallback):
		return http.StatusBadRequest, "Invalid callback"
	case provider.IsKind(err, provider.KindBusiness):
		return http.StatusPaymentRequired, "Payment was not successful"
	case provider.IsKind(err, provider.KindRefundRejected):
		return http.StatusBadGateway, "Refund was rejected by the provider"
	case provider.IsKind(err, provider.KindNetwork):
		return http.StatusBadGateway, "Payment provider unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeError renders err with the status from statusFor. Internal errors are not echoed back.
func writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	reason := ""
	if kind, ok := provider.BusinessKindOf(err); ok {
		reason = kind.Reason()
	}
	if status == http.StatusInternalServerError {
		response.Error(w, status, message, nil)
		return
	}
	response.Failure(w, status, message, reason, err)
}
