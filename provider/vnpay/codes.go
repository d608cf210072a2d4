package vnpay

import "github.com/mstgnz/mediapay/provider"

const successCode = "00"

// codeTable maps vnp_ResponseCode values onto the business taxonomy
var codeTable = provider.CodeTable{
	Provider:    providerName,
	SuccessCode: successCode,
	Codes: map[string]provider.BusinessKind{
		"07": provider.AbnormalTransaction,
		"09": provider.AccountNotRegistered,
		"10": provider.WrongAccountAuthentication,
		"11": provider.TimeRunOut,
		"12": provider.BlockedAccount,
		"13": provider.WrongOTP,
		"24": provider.CustomerCancelled,
		"51": provider.InsufficientBalance,
		"65": provider.ExceedQuotas,
		"75": provider.SystemMaintenance,
		"79": provider.WrongPassword,
		"99": provider.Other,
	},
}

// IPN reply codes expected by the VNPay notification endpoint
var ackCodes = map[provider.AckOutcome][2]string{
	provider.AckConfirmed:        {"00", "Confirm Success"},
	provider.AckOrderNotFound:    {"01", "Order not found"},
	provider.AckAlreadyConfirmed: {"02", "Order already confirmed"},
	provider.AckInvalidAmount:    {"04", "Invalid amount"},
	provider.AckInvalidSignature: {"97", "Invalid signature"},
	provider.AckUnknownError:     {"99", "Unknown error"},
}
