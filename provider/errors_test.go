package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_KindMatching(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"config", ConfigError("vnpay", "missing %s", "secret"), KindConfiguration},
		{"network", NetworkError("onepay", "refund", errors.New("timeout")), KindNetwork},
		{"signature", SignatureError("vnpay"), KindSignature},
		{"callback", CallbackError("stripe", "missing %s", "id"), KindCallback},
		{"business", &BusinessError{Kind: Other, Provider: "vnpay"}, KindBusiness},
		{"unsupported", &UnsupportedProviderError{Key: "momo"}, KindUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, IsKind(wrapped, tt.kind))
			for _, other := range []ErrorKind{KindConfiguration, KindNetwork, KindSignature, KindCallback, KindRefundRejected} {
				if other != tt.kind {
					assert.False(t, IsKind(wrapped, other), "unexpected kind %s", other)
				}
			}
		})
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NetworkError("vnpay", "refund", cause)

	assert.True(t, errors.Is(err, &Error{Kind: KindNetwork}))
	assert.False(t, errors.Is(err, &Error{Kind: KindSignature}))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "vnpay: refund: connection reset", err.Error())
	assert.Equal(t, "signature error", (&Error{Kind: KindSignature}).Error())
}

func TestUnsupportedProviderError_ListsSortedKeys(t *testing.T) {
	err := &UnsupportedProviderError{Key: "momo", Supported: []string{"vnpay", "onepay", "stripe"}}
	assert.Equal(t, `unsupported provider "momo" (supported: onepay, stripe, vnpay)`, err.Error())

	empty := &UnsupportedProviderError{Supported: []string{"vnpay"}}
	assert.Contains(t, empty.Error(), "no provider given")
}
