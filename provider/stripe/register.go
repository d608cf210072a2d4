package stripe

import "github.com/mstgnz/mediapay/provider"

// Register Stripe gateway with the factory table
func init() {
	provider.Register(providerName, NewProvider)
}
