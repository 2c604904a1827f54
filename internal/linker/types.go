package linker

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenType selects which kind of asset the deposit carries.
type TokenType int

const (
	TokenNative TokenType = iota
	TokenERC20
	TokenERC721
	TokenERC1155
)

func (t TokenType) Valid() bool {
	return t >= TokenNative && t <= TokenERC1155
}

// LinkRequest is the caller's issuance request. A zero TokenType means
// the network's native asset.
type LinkRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	TokenType TokenType       `json:"tokenType"`
}

// LinkDetails carries the chain-level deposit parameters derived from a LinkRequest.
// Immutable once built.
type LinkDetails struct {
	ChainID       int64
	TokenAmount   *big.Int
	TokenType     TokenType
	TokenDecimals int
}

// IssuanceResult is returned to the caller. TxHashes preserves broadcast
// order; the last hash anchors the claim link.
type IssuanceResult struct {
	Link     string   `json:"link"`
	TxHashes []string `json:"txHashes"`
}
