package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/mediapay/infra/opensearch"
	"github.com/mstgnz/mediapay/infra/response"
)

// AuditReader reads the callback and refund audit trail of an order
type AuditReader interface {
	GetOrderAudit(ctx context.Context, orderID string) (*opensearch.OrderAudit, error)
}

// AuditHandler exposes the audit trail recorded in OpenSearch
type AuditHandler struct {
	audit AuditReader
}

// NewAuditHandler creates a new audit handler. A nil reader answers 503.
func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// OrderAudit handles GET /v1/orders/{orderID}/audit
func (h *AuditHandler) OrderAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		response.Error(w, http.StatusServiceUnavailable, "Audit logging is disabled", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orderID := chi.URLParam(r, "orderID")
	trail, err := h.audit.GetOrderAudit(ctx, orderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load audit trail", err)
		return
	}
	response.Success(w, http.StatusOK, "Audit trail retrieved", trail)
}
