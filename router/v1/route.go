package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/mediapay/handler"
)

// Handlers are the authenticated API endpoints
type Handlers struct {
	Payment *handler.PaymentHandler
	Orders  *handler.OrderHandler
	Audit   *handler.AuditHandler
}

// Routes registers the v1 API routes. Authentication is applied by the caller.
func Routes(r chi.Router, h Handlers) {
	r.Post("/payments/{provider}", h.Payment.CreatePaymentURL)

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.Orders.GetOrder)
		r.Get("/transactions", h.Orders.Transactions)
		r.Post("/cancel", h.Orders.Cancel)
		r.Post("/reject", h.Orders.Reject)
		r.Post("/approve", h.Orders.Approve)
		if h.Audit != nil {
			r.Get("/audit", h.Audit.OrderAudit)
		}
	})
}
