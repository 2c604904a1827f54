package linker

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const secretBytes = 32

// newDepositSecret generates the one-time value that binds a deposit
// transaction to its future claim link. Generated fresh per request,
// handed to the issuer, never stored.
func newDepositSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate deposit secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
