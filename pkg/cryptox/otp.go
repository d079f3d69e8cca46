package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pquerna/otp"
)

// OTP length bounds. Nine digits is the widest code that still fits the
// int32 accepted by otp.Digits.Format.
const (
	MinOTPDigits = 4
	MaxOTPDigits = 9
)

// GenerateOTP returns a uniformly random numeric one-time passcode with the
// requested number of digits, zero padded (e.g. "004217").
func GenerateOTP(digits otp.Digits) (string, error) {
	if digits.Length() < MinOTPDigits || digits.Length() > MaxOTPDigits {
		return "", fmt.Errorf("otp length must be between %d and %d, got %d", MinOTPDigits, MaxOTPDigits, digits.Length())
	}

	upper := big.NewInt(1)
	for range digits.Length() {
		upper.Mul(upper, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	return digits.Format(int32(n.Int64())), nil // #nosec G115 - bounded by 10^9
}
