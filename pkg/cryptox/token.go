package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
)

// FingerprintToken returns a deterministic SHA-256 fingerprint of a secret
// value. Tokens and privileged API keys are stored and compared by fingerprint
// so the raw value never touches the database or a lookup map.
//
// The fingerprint is returned as a base64url-encoded string (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ConstantTimeEquals compares two strings without leaking timing information
// about how far the comparison progressed. Use this for any equality check on
// secret-bearing values.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateCode produces a random numeric one-time code of the given length,
// zero-padded. Each digit comes from crypto/rand, not math/rand.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 || digits > 12 {
		return "", fmt.Errorf("cryptox: code length out of range: %d", digits)
	}

	limit := big.NewInt(1)
	for range digits {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("cryptox: generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}
