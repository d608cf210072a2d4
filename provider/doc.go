// Package provider defines the contract between the payment service and the hosted
// checkout gateways, plus the building blocks adapters share.
//
// # Core Concepts
//
//   - Gateway: what every adapter implements (checkout URL, callback parsing, result
//     code classification, refunds)
//   - Acknowledger: optional, for gateways whose IPN expects a specific reply body
//   - Registry: the immutable set of configured gateways, resolved by lowercase key
//   - TransactionRecord: the provider-neutral form of a verified callback
//
// Adapters never touch order storage. They turn a Callback into a TransactionRecord
// and leave state changes to the payment package.
//
// # Registration
//
// Each adapter package registers a Factory in init. Build creates one gateway per
// configured provider and fails on the first invalid configuration:
//
//	import _ "github.com/mstgnz/mediapay/provider/onepay"
//
//	registry, err := provider.Build(map[string]map[string]string{
//	    "onepay": {
//	        "merchantCode": "TESTONEPAY",
//	        "accessCode":   "6BEB2546",
//	        "secret":       "6D0870CDE5F24F34F3915FB0045120DB",
//	        "returnUrl":    "https://shop.example/callback/onepay",
//	        "currency":     "VND",
//	    },
//	})
//	gw, err := registry.Resolve("onepay")
//
// An unknown key yields *UnsupportedProviderError listing the supported keys.
//
// # Signing
//
// Redirect gateways sign a canonical query string: keys sorted, values URL encoded,
// joined by '&'. Signer computes and verifies HMAC signatures over it; NewHexKeySigner
// accepts secrets distributed as hex. Verification compares in constant time.
//
// # Amounts
//
// Amounts are decimal.Decimal in major units. Gateways that exchange integer minor
// units (x100) convert with ToMinorUnits and ParseMinorUnits; fractional minor units
// are an error rather than a silent rounding.
//
// # Errors
//
// Technical failures are *Error values tagged with an ErrorKind (configuration,
// network, signature, callback); test them with IsKind. Declined payments are
// *BusinessError carrying a BusinessKind whose Reason is safe to show a customer.
//
// # HTTP
//
// ProviderHTTPClient wraps resty with retries and a circuit breaker per gateway.
// Network failures surface as KindNetwork errors.
package provider
