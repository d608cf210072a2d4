package vnpay

import "github.com/mstgnz/mediapay/provider"

// Register VNPay gateway with the factory table
func init() {
	provider.Register(providerName, NewProvider)
}
