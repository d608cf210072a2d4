package onepay

import "github.com/mstgnz/mediapay/provider"

const successCode = "0"

// codeTable maps vpc_TxnResponseCode values onto the business taxonomy
var codeTable = provider.CodeTable{
	Provider:    providerName,
	SuccessCode: successCode,
	Codes: map[string]provider.BusinessKind{
		"1":   provider.Other,
		"3":   provider.Other,
		"4":   provider.Other,
		"5":   provider.Other,
		"6":   provider.Other,
		"7":   provider.Other,
		"8":   provider.WrongAccountAuthentication,
		"9":   provider.WrongAccountAuthentication,
		"10":  provider.BlockedAccount,
		"11":  provider.AccountNotRegistered,
		"12":  provider.WrongAccountAuthentication,
		"13":  provider.ExceedQuotas,
		"21":  provider.InsufficientBalance,
		"22":  provider.WrongAccountAuthentication,
		"23":  provider.BlockedAccount,
		"24":  provider.WrongAccountAuthentication,
		"25":  provider.WrongOTP,
		"99":  provider.CustomerCancelled,
		"253": provider.TimeRunOut,
		"F":   provider.WrongPassword,
		"Z":   provider.AbnormalTransaction,
	},
}

const (
	ackSuccess = "responsecode=1&desc=confirm-success"
	ackFail    = "responsecode=0&desc=confirm-fail"
)
