package stripe

import "github.com/mstgnz/mediapay/provider"

const (
	successCode = "paid"
	codeExpired = "expired"
	codeFailed  = "failed"
	codeUnpaid  = "unpaid"
)

// codeTable maps session outcomes and card decline codes onto the business taxonomy
var codeTable = provider.CodeTable{
	Provider:    providerName,
	SuccessCode: successCode,
	Codes: map[string]provider.BusinessKind{
		codeExpired:               provider.TimeRunOut,
		"insufficient_funds":      provider.InsufficientBalance,
		"card_velocity_exceeded":  provider.ExceedQuotas,
		"incorrect_cvc":           provider.WrongAccountAuthentication,
		"incorrect_number":        provider.WrongAccountAuthentication,
		"incorrect_pin":           provider.WrongPassword,
		"authentication_required": provider.WrongOTP,
		"fraudulent":              provider.AbnormalTransaction,
		"stolen_card":             provider.AbnormalTransaction,
		"lost_card":               provider.BlockedAccount,
		"pickup_card":             provider.BlockedAccount,
		"card_not_supported":      provider.AccountNotRegistered,
		"processing_error":        provider.SystemMaintenance,
		"canceled":                provider.CustomerCancelled,
	},
}
