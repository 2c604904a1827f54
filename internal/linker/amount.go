package linker

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human decimal amount into the token's integer
// base-unit representation by exact power-of-ten scaling. Amounts that
// are not representable at the declared precision are rejected rather
// than truncated.
func ToBaseUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("%w: negative precision %d", ErrInvalidAmount, decimals)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, amount)
	}

	scaled := amount.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits is the inverse scaling, used for logging and round-trip checks.
func FromBaseUnits(units *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -int32(decimals))
}
