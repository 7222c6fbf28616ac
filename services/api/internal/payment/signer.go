// Package payment signs outgoing gateway links and verifies gateway callbacks.
package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// Signer computes HMAC-SHA512 signatures over the canonical form of gateway parameters.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Canonical renders the gateway parameters sorted by key, query-escaped and joined with "&".
// The signature parameters and empty values are excluded.
func Canonical(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		if values.Get(k) == "" {
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
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(k)))
	}
	return b.String()
}

// Sign returns the lowercase hex signature of values.
func (s *Signer) Sign(values url.Values) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(Canonical(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the vnp_SecureHash carried in values.
func (s *Signer) Verify(values url.Values) error {
	got := strings.ToLower(strings.TrimSpace(values.Get(ParamSecureHash)))
	if got == "" {
		return domain.ErrInvalidSignature
	}
	provided, err := hex.DecodeString(got)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	expected, _ := hex.DecodeString(s.Sign(values))
	if !hmac.Equal(provided, expected) {
		return domain.ErrInvalidSignature
	}
	return nil
}
