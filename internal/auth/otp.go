package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// generateOTP draws a uniformly random 6-digit code, zero padded.
func generateOTP(r io.Reader) (string, error) {
	n, err := rand.Int(r, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// secretsEqual compares a stored secret with a presented one in constant time.
func secretsEqual(stored *string, presented string) bool {
	if stored == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}
