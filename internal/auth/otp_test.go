package auth

import (
	"bytes"
	"crypto/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func TestGenerateOTP_Format(t *testing.T) {
	for range 200 {
		otp, err := generateOTP(rand.Reader)
		require.NoError(t, err)
		assert.Regexp(t, sixDigits, otp)
	}
}

func TestGenerateOTP_ZeroPadded(t *testing.T) {
	// An all-zero reader makes rand.Int return 0.
	otp, err := generateOTP(bytes.NewReader(make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, "000000", otp)
}

func TestGenerateOTP_ReaderFailure(t *testing.T) {
	_, err := generateOTP(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestSecretsEqual(t *testing.T) {
	stored := "042517"

	assert.True(t, secretsEqual(&stored, "042517"))
	assert.False(t, secretsEqual(&stored, "042518"))
	assert.False(t, secretsEqual(&stored, "42517"))
	assert.False(t, secretsEqual(nil, "042517"))
}
