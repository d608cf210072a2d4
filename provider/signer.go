package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// Algorithm selects the HMAC hash used by a Signer
type Algorithm string

const (
	HMACSHA512 Algorithm = "HMACSHA512"
	HMACSHA256 Algorithm = "HMACSHA256"
)

type canonicalOptions struct {
	encode bool
	filter func(key string) bool
}

// CanonicalOption tweaks how Canonicalize renders a parameter set
type CanonicalOption func(*canonicalOptions)

// WithoutEncoding writes keys and values verbatim instead of form-encoding them
func WithoutEncoding() CanonicalOption {
	return func(o *canonicalOptions) { o.encode = false }
}

// WithKeyFilter keeps only the keys for which keep returns true
func WithKeyFilter(keep func(key string) bool) CanonicalOption {
	return func(o *canonicalOptions) { o.filter = keep }
}

// Canonicalize renders params as the deterministic signing input: empty values are
// dropped, keys sorted lexicographically, key and value form-encoded, pairs joined by '&'.
func Canonicalize(params map[string]string, opts ...CanonicalOption) string {
	o := canonicalOptions{encode: true}
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		if o.filter != nil && !o.filter(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		if o.encode {
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(params[k]))
		} else {
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(params[k])
		}
	}
	return b.String()
}

// Signer computes keyed digests over canonical parameter strings
type Signer struct {
	key []byte
	alg Algorithm
	h   func() hash.Hash
}

// NewSigner builds a signer from a plain-text shared secret
func NewSigner(secret string, alg Algorithm) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, &Error{Kind: KindConfiguration, Op: "signer", Err: errors.New("shared secret is empty")}
	}
	return newSigner([]byte(secret), alg)
}

// NewHexKeySigner builds a signer from a hex-encoded secret
func NewHexKeySigner(hexSecret string, alg Algorithm) (*Signer, error) {
	if strings.TrimSpace(hexSecret) == "" {
		return nil, &Error{Kind: KindConfiguration, Op: "signer", Err: errors.New("shared secret is empty")}
	}
	key, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Op: "signer", Err: fmt.Errorf("secret is not valid hex: %w", err)}
	}
	return newSigner(key, alg)
}

func newSigner(key []byte, alg Algorithm) (*Signer, error) {
	s := &Signer{key: key, alg: alg}
	switch alg {
	case HMACSHA512, "":
		s.alg = HMACSHA512
		s.h = sha512.New
	case HMACSHA256:
		s.h = sha256.New
	default:
		return nil, &Error{Kind: KindConfiguration, Op: "signer", Err: fmt.Errorf("unsupported algorithm %q", alg)}
	}
	return s, nil
}

// Algorithm returns the HMAC variant in use
func (s *Signer) Algorithm() Algorithm { return s.alg }

// Sign canonicalizes params and returns the canonical string with its lowercase hex digest.
// Callers must put exactly this canonical string on the wire.
func (s *Signer) Sign(params map[string]string, opts ...CanonicalOption) (canonical, signature string, err error) {
	canonical = Canonicalize(params, opts...)
	signature, err = s.SignString(canonical)
	return canonical, signature, err
}

// SignString returns the lowercase hex digest of data
func (s *Signer) SignString(data string) (string, error) {
	mac := hmac.New(s.h, s.key)
	if _, err := mac.Write([]byte(data)); err != nil {
		return "", &Error{Kind: KindEncoding, Op: "sign", Err: err}
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the digest of params and compares it with signature in constant time.
// Hex case is ignored.
func (s *Signer) Verify(params map[string]string, signature string, opts ...CanonicalOption) bool {
	_, expected, err := s.Sign(params, opts...)
	if err != nil {
		return false
	}
	return VerifyHex(expected, signature)
}

// VerifyHex compares two hex digests in constant time, ignoring case
func VerifyHex(expected, got string) bool {
	want, err := hex.DecodeString(strings.ToLower(expected))
	if err != nil {
		return false
	}
	have, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(got)))
	if err != nil {
		return false
	}
	return hmac.Equal(want, have)
}
