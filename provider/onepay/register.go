package onepay

import "github.com/mstgnz/mediapay/provider"

// Register OnePay gateway with the factory table
func init() {
	provider.Register(providerName, NewProvider)
}
