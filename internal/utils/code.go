package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// DeliveryCodeLength is the number of digits in a delivery code
const DeliveryCodeLength = 4

var deliveryCodePattern = regexp.MustCompile(`^\d{4}$`)

// GenerateDeliveryCode returns a cryptographically random code in
// 0000-9999, zero padded.
func GenerateDeliveryCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// TimeDerivedDeliveryCode derives a code from the clock. Used only when
// random generation keeps colliding; uniqueness is still enforced by storage.
func TimeDerivedDeliveryCode(now time.Time) string {
	return fmt.Sprintf("%04d", (now.UnixNano()/int64(time.Millisecond))%10000)
}

// IsDeliveryCode reports whether s is exactly four ASCII digits
func IsDeliveryCode(s string) bool {
	return deliveryCodePattern.MatchString(s)
}
