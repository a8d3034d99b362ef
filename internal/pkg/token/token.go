package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	otpMin   = 100000
	otpRange = 900000 // codes fall in [100000, 999999]
)

// NewOTP returns a uniformly random six-digit numeric code.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
