// Package mediapay integrates hosted-checkout payment gateways with an order store and
// reconciles provider notifications against order state.
//
// # Overview
//
// A customer pays on the provider's page, not on ours. mediapay builds the signed
// checkout URL, receives the browser return and the server-to-server notification
// (IPN or webhook), verifies their signatures, and moves the order from PENDING to
// CONFIRMED exactly once, however many times and in whatever order the notifications
// arrive. Declined attempts are recorded and leave the order PENDING. Cancelling an order refunds the latest successful payment
// recorded against it.
//
//	┌──────────────┐  checkout URL   ┌──────────────┐   redirect    ┌──────────────┐
//	│   Storefront │ ──────────────► │   mediapay   │ ────────────► │   Provider   │
//	│              │ ◄────────────── │              │ ◄──────────── │ VNPAY/OnePay │
//	└──────────────┘  order status   └──────────────┘  return, IPN  │    Stripe    │
//	                                        │                       └──────────────┘
//	                                        ▼
//	                                 orders, transactions
//	                                 (SQLite or PostgreSQL)
//
// # Supported Providers
//
//   - vnpay: VNPAY redirect checkout, HMAC-SHA512 signed, querydr/refund API
//   - onepay: OnePay domestic checkout, HMAC-SHA256 with a hex key, IPN acknowledgement body
//   - stripe: Stripe Checkout Sessions, signed webhooks, refunds through the Stripe API
//
// Providers register themselves in init; import the package to make it available:
//
//	import (
//	    "github.com/mstgnz/mediapay/provider"
//	    _ "github.com/mstgnz/mediapay/provider/vnpay"
//	)
//
//	registry, err := provider.Build(map[string]map[string]string{
//	    "vnpay": {
//	        "merchantCode": "DEMOTMN1",
//	        "secret":       "secret",
//	        "returnUrl":    "https://shop.example/callback/vnpay",
//	        "currency":     "VND",
//	    },
//	})
//
// # Order Lifecycle
//
//	PENDING ──payment succeeded, approve──► CONFIRMED
//	   │  └──────reject────────────────────► REJECTED
//	   └─────────cancel────────────────────► CANCELLED (refund, when a payment succeeded)
//
// CONFIRMED, REJECTED and CANCELLED are final: repeated notifications and admin actions
// on them are no-ops. Every status change is a compare-and-set on the stored status, so
// two concurrent notifications for the same order can never both confirm it.
//
// # HTTP API
//
//	POST /v1/payments/{provider}          create a checkout URL (API key)
//	GET  /v1/orders/{orderID}             read an order (API key)
//	GET  /v1/orders/{orderID}/transactions
//	POST /v1/orders/{orderID}/cancel|reject|approve
//	GET  /v1/orders/{orderID}/audit       callback and refund audit trail (OpenSearch)
//	GET  /callback/{provider}             browser return
//	GET|POST /ipn/{provider}              server-to-server notification
//	POST /webhooks/{provider}             signed webhook
//	GET  /health, /metrics
//
// # Configuration
//
// Everything is read from the environment, optionally seeded from a .env file:
//
//	APP_PORT=9999
//	API_KEY=change-me
//	DB_DRIVER=sqlite            # or postgres
//	DB_DSN=./data/mediapay.db
//	VNPAY_MERCHANT_CODE=DEMOTMN1
//	VNPAY_SECRET=...
//	ENABLE_OPENSEARCH_LOGGING=false
//
// See infra/config for the complete list.
package mediapay
