package provider

import (
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		opts   []CanonicalOption
		want   string
	}{
		{
			name: "sorted and encoded, empty values dropped",
			params: map[string]string{
				"vnp_TxnRef":    "order1",
				"vnp_Amount":    "3998",
				"vnp_OrderInfo": "Thanh toan don hang 1",
				"vnp_BankCode":  "",
			},
			want: "vnp_Amount=3998&vnp_OrderInfo=Thanh+toan+don+hang+1&vnp_TxnRef=order1",
		},
		{
			name:   "reserved characters are escaped",
			params: map[string]string{"url": "https://shop.example/return?a=1&b=2"},
			want:   "url=https%3A%2F%2Fshop.example%2Freturn%3Fa%3D1%26b%3D2",
		},
		{
			name:   "without encoding",
			params: map[string]string{"vpc_OrderInfo": "Order 1", "vpc_Amount": "100"},
			opts:   []CanonicalOption{WithoutEncoding()},
			want:   "vpc_Amount=100&vpc_OrderInfo=Order 1",
		},
		{
			name:   "key filter",
			params: map[string]string{"vpc_Amount": "100", "AgainLink": "x", "user_Ref": "u"},
			opts: []CanonicalOption{WithKeyFilter(func(k string) bool {
				return strings.HasPrefix(k, "vpc_") || strings.HasPrefix(k, "user_")
			})},
			want: "user_Ref=u&vpc_Amount=100",
		},
		{
			name:   "empty",
			params: map[string]string{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.params, tt.opts...))
		})
	}
}

func TestSigner_KnownVectors(t *testing.T) {
	s512, err := NewSigner("SECRETKEY", HMACSHA512)
	require.NoError(t, err)

	canonical, sig, err := s512.Sign(map[string]string{
		"vnp_TxnRef":    "order1",
		"vnp_Amount":    "3998",
		"vnp_OrderInfo": "Thanh toan don hang 1",
		"vnp_Empty":     "",
	})
	require.NoError(t, err)
	assert.Equal(t, "vnp_Amount=3998&vnp_OrderInfo=Thanh+toan+don+hang+1&vnp_TxnRef=order1", canonical)
	assert.Equal(t, "2065eab010e89adcdbd967b4ef57d3963572597486efbbcc486b757c6d1d7abe397ba6cea4df081c973083436214efa9bab51faa30dd92b330b05a789c14ef78", sig)
	assert.Len(t, sig, 128)

	s256, err := NewHexKeySigner("6D0870CDE5F24F34F3915FB0045120DB", HMACSHA256)
	require.NoError(t, err)
	sig, err = s256.SignString("vpc_Amount=100&vpc_Command=pay")
	require.NoError(t, err)
	assert.Equal(t, "0b08dc408727246a1bad15b001051380e9b70d11fc5a7b89e6421a320caf566d", sig)
	assert.Equal(t, HMACSHA256, s256.Algorithm())
}

func TestSigner_Construction(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (*Signer, error)
		wantErr bool
	}{
		{"plain secret", func() (*Signer, error) { return NewSigner("k", HMACSHA512) }, false},
		{"default algorithm", func() (*Signer, error) { return NewSigner("k", "") }, false},
		{"empty secret", func() (*Signer, error) { return NewSigner("  ", HMACSHA512) }, true},
		{"unknown algorithm", func() (*Signer, error) { return NewSigner("k", "MD5") }, true},
		{"hex secret", func() (*Signer, error) { return NewHexKeySigner("A0B1", HMACSHA256) }, false},
		{"bad hex secret", func() (*Signer, error) { return NewHexKeySigner("XYZ", HMACSHA256) }, true},
		{"empty hex secret", func() (*Signer, error) { return NewHexKeySigner("", HMACSHA256) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.build()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindConfiguration))
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}

	s, err := NewSigner("k", "")
	require.NoError(t, err)
	assert.Equal(t, HMACSHA512, s.Algorithm())
}

func TestSigner_Deterministic(t *testing.T) {
	s, err := NewSigner("secret", HMACSHA512)
	require.NoError(t, err)

	property := func(params map[string]string) bool {
		_, a, errA := s.Sign(params)
		_, b, errB := s.Sign(params)
		return errA == nil && errB == nil && a == b && len(a) == 128
	}
	assert.NoError(t, quick.Check(property, nil))
}

func TestSigner_Avalanche(t *testing.T) {
	s, err := NewSigner("secret", HMACSHA512)
	require.NoError(t, err)

	// any change to a signed value changes the signature
	property := func(value string, suffix byte) bool {
		if value == "" {
			value = "x"
		}
		base := map[string]string{"vnp_TxnRef": "order1", "vnp_Amount": value}
		changed := map[string]string{"vnp_TxnRef": "order1", "vnp_Amount": value + string(rune('a'+suffix%26))}
		_, a, _ := s.Sign(base)
		_, b, _ := s.Sign(changed)
		return a != b
	}
	assert.NoError(t, quick.Check(property, nil))
}

func TestSigner_Verify(t *testing.T) {
	s, err := NewSigner("secret", HMACSHA512)
	require.NoError(t, err)

	params := map[string]string{"vnp_TxnRef": "order1", "vnp_Amount": "3998"}
	_, sig, err := s.Sign(params)
	require.NoError(t, err)

	assert.True(t, s.Verify(params, sig))
	assert.True(t, s.Verify(params, strings.ToUpper(sig)), "hex case is ignored")
	assert.False(t, s.Verify(params, sig[:len(sig)-2]+"00"))
	assert.False(t, s.Verify(params, "not-hex"))
	assert.False(t, s.Verify(params, ""))

	tampered := map[string]string{"vnp_TxnRef": "order1", "vnp_Amount": "399800"}
	assert.False(t, s.Verify(tampered, sig))

	other, err := NewSigner("other-secret", HMACSHA512)
	require.NoError(t, err)
	assert.False(t, other.Verify(params, sig))
}

func TestVerifyHex(t *testing.T) {
	assert.True(t, VerifyHex("abcd", "ABCD"))
	assert.True(t, VerifyHex("abcd", " abcd "))
	assert.False(t, VerifyHex("abcd", "abce"))
	assert.False(t, VerifyHex("abcd", "abcdab"))
	assert.False(t, VerifyHex("zz", "zz"))
}
