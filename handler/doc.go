// Package handler provides the HTTP handlers of the payment service.
//
// # Handlers
//
//   - PaymentHandler: checkout URL creation and every inbound provider notification
//   - OrderHandler: order reads and the cancel, reject and approve actions
//   - AuditHandler: the OpenSearch audit trail of an order
//   - HealthHandler: storage and gateway readiness
//
// Handlers depend on small interfaces (PaymentServiceInterface, OrderServiceInterface,
// AuditReader, Pinger) so tests can drive them without a database.
//
// # Provider Notifications
//
// Browser returns answer JSON for the storefront. A declined payment is not an HTTP
// error: the response is 200 with success=false and a customer facing reason.
//
// IPN and webhook requests are answered the way the provider expects. Gateways that
// define an acknowledgement format (OnePay, VNPAY) get their own body; the others get
// the standard JSON envelope.
//
// # Errors
//
// Domain errors map onto status codes in one place (statusFor):
//
//	order not found        404
//	amount mismatch        400
//	invalid state          409
//	concurrent update      409
//	bad signature          400
//	payment declined       402
//	provider unreachable   502
//	anything else          500, message hidden
package handler
