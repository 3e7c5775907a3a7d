package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RequestSigner produces HMAC-SHA256 signatures for outbound webhook and
// generator requests so collaborators can verify the payload origin.
type RequestSigner struct {
	key []byte
}

// NewRequestSigner creates a RequestSigner with the provided shared secret.
func NewRequestSigner(secret string) (*RequestSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &RequestSigner{key: []byte(secret)}, nil
}

// Sign returns the lowercase hex HMAC-SHA256 of the payload.
func (s *RequestSigner) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the signature matches the payload. Comparison is
// constant time.
func (s *RequestSigner) Verify(payload []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
