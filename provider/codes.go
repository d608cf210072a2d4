package provider

import (
	"errors"
	"fmt"
)

// BusinessKind is the fixed taxonomy every provider result code is mapped onto
type BusinessKind int

const (
	AbnormalTransaction BusinessKind = iota + 1
	AccountNotRegistered
	WrongAccountAuthentication
	TimeRunOut
	BlockedAccount
	WrongOTP
	CustomerCancelled
	InsufficientBalance
	ExceedQuotas
	SystemMaintenance
	WrongPassword
	Other
)

// BusinessKinds lists the taxonomy in declaration order
var BusinessKinds = []BusinessKind{
	AbnormalTransaction, AccountNotRegistered, WrongAccountAuthentication, TimeRunOut,
	BlockedAccount, WrongOTP, CustomerCancelled, InsufficientBalance, ExceedQuotas,
	SystemMaintenance, WrongPassword, Other,
}

var businessReasons = map[BusinessKind]string{
	AbnormalTransaction:        "transaction flagged as abnormal or suspicious",
	AccountNotRegistered:       "card or account is not registered for online payment",
	WrongAccountAuthentication: "card or account authentication failed",
	TimeRunOut:                 "payment time ran out",
	BlockedAccount:             "card or account is blocked",
	WrongOTP:                   "wrong one-time password",
	CustomerCancelled:          "customer cancelled the payment",
	InsufficientBalance:        "insufficient balance",
	ExceedQuotas:               "daily transaction quota exceeded",
	SystemMaintenance:          "bank is under maintenance",
	WrongPassword:              "wrong payment password",
	Other:                      "payment failed",
}

// Reason returns the human readable explanation shown to customers
func (k BusinessKind) Reason() string {
	if r, ok := businessReasons[k]; ok {
		return r
	}
	return businessReasons[Other]
}

func (k BusinessKind) String() string {
	switch k {
	case AbnormalTransaction:
		return "AbnormalTransaction"
	case AccountNotRegistered:
		return "AccountNotRegistered"
	case WrongAccountAuthentication:
		return "WrongAccountAuthentication"
	case TimeRunOut:
		return "TimeRunOut"
	case BlockedAccount:
		return "BlockedAccount"
	case WrongOTP:
		return "WrongOTP"
	case CustomerCancelled:
		return "CustomerCancelled"
	case InsufficientBalance:
		return "InsufficientBalance"
	case ExceedQuotas:
		return "ExceedQuotas"
	case SystemMaintenance:
		return "SystemMaintenance"
	case WrongPassword:
		return "WrongPassword"
	default:
		return "Other"
	}
}

// BusinessError is raised for every provider result code other than the documented success code
type BusinessError struct {
	Kind     BusinessKind
	Code     string
	Provider string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s (code %q)", e.Provider, e.Kind.Reason(), e.Code)
}

// BusinessKindOf extracts the business kind from err, if any
func BusinessKindOf(err error) (BusinessKind, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}

// CodeTable maps one provider's result codes onto the business taxonomy.
// Every provider package declares its own table.
type CodeTable struct {
	Provider    string
	SuccessCode string
	Codes       map[string]BusinessKind
}

// Classify returns nil only for the exact success code. Mapped codes return their
// BusinessError; unmapped and empty codes are reported as Other, never as success.
func (t CodeTable) Classify(code string) error {
	if code != "" && code == t.SuccessCode {
		return nil
	}
	kind, ok := t.Codes[code]
	if !ok {
		kind = Other
	}
	return &BusinessError{Kind: kind, Code: code, Provider: t.Provider}
}

// IsSuccess reports whether code is the provider's success code
func (t CodeTable) IsSuccess(code string) bool {
	return code != "" && code == t.SuccessCode
}
