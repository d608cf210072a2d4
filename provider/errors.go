package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies failures raised by gateways and their infrastructure
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConfiguration: missing or invalid provider configuration, fatal at startup
	KindConfiguration
	// KindEncoding: the signer could not produce a digest
	KindEncoding
	// KindUnsupportedProvider: no gateway registered under the requested key
	KindUnsupportedProvider
	// KindBusiness: the provider reported a non-success result code
	KindBusiness
	// KindNetwork: transport failure talking to the provider
	KindNetwork
	// KindSignature: an inbound payload failed signature verification
	KindSignature
	// KindCallback: an inbound payload is malformed or addressed to another merchant
	KindCallback
	// KindRefundRejected: the provider answered a refund request with a failure code
	KindRefundRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindEncoding:
		return "encoding"
	case KindUnsupportedProvider:
		return "unsupported_provider"
	case KindBusiness:
		return "business"
	case KindNetwork:
		return "network"
	case KindSignature:
		return "signature"
	case KindCallback:
		return "callback"
	case KindRefundRejected:
		return "refund_rejected"
	default:
		return "unknown"
	}
}

// Error is the common error type returned by this package and the gateway adapters
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.String() + " error")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so that errors.Is(err, &Error{Kind: KindNetwork}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Provider == "" && t.Op == "" && t.Err == nil
}

// IsKind reports whether err wraps a provider error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	if kind == KindBusiness {
		var be *BusinessError
		if errors.As(err, &be) {
			return true
		}
	}
	if kind == KindUnsupportedProvider {
		var ue *UnsupportedProviderError
		if errors.As(err, &ue) {
			return true
		}
	}
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// ConfigError builds a KindConfiguration error
func ConfigError(providerName, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Provider: providerName, Op: "config", Err: fmt.Errorf(format, args...)}
}

// NetworkError wraps a transport failure
func NetworkError(providerName, op string, err error) error {
	return &Error{Kind: KindNetwork, Provider: providerName, Op: op, Err: err}
}

// SignatureError reports a payload whose signature did not verify
func SignatureError(providerName string) error {
	return &Error{Kind: KindSignature, Provider: providerName, Op: "verify", Err: errors.New("invalid signature")}
}

// CallbackError reports a malformed or foreign callback payload
func CallbackError(providerName, format string, args ...any) error {
	return &Error{Kind: KindCallback, Provider: providerName, Op: "callback", Err: fmt.Errorf(format, args...)}
}

// UnsupportedProviderError is returned by the registry for an unknown key
type UnsupportedProviderError struct {
	Key       string
	Supported []string
}

func (e *UnsupportedProviderError) Error() string {
	supported := append([]string(nil), e.Supported...)
	sort.Strings(supported)
	if e.Key == "" {
		return fmt.Sprintf("unsupported provider: no provider given (supported: %s)", strings.Join(supported, ", "))
	}
	return fmt.Sprintf("unsupported provider %q (supported: %s)", e.Key, strings.Join(supported, ", "))
}
