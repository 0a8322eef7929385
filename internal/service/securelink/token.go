package securelink

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const tokenBytes = 32

// generateToken returns a URL-safe opaque token with no embedded structure.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// generateOtpCode returns a 6-digit numeric code in [100000, 999999] drawn
// from a cryptographically secure source.
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}
