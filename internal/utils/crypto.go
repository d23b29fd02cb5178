// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

func GenerateRandomString(length int, charset string) (string, error) {
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateVoucherCode returns a human-presentable unique-ish code; the
// unique index on vouchers.code is the actual uniqueness guarantee.
// Ambiguous characters (0/O, 1/I) are left out of the alphabet.
func GenerateVoucherCode() (string, error) {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	randomPart, err := GenerateRandomString(10, charset)
	if err != nil {
		return "", err
	}
	return "WP-" + randomPart, nil
}
