package issuer

import (
	"context"
)

// Client abstracts the external link-issuing capability.
type Client interface {
	// Prepare asks the issuer to build the unsigned deposit transaction(s)
	// that bind the given secrets to a future claim link. Nothing has been
	// broadcast when Prepare returns.
	Prepare(ctx context.Context, req PrepareRequest) ([]UnsignedTx, error)
	// ResolveLink exchanges the hash of the final broadcast transaction for
	// the shareable claim link.
	ResolveLink(ctx context.Context, req ResolveRequest) (string, error)
}

type PrepareRequest struct {
	Address       string   `json:"address"`
	ChainID       int64    `json:"chainId"`
	TokenAmount   string   `json:"tokenAmount"` // base units, decimal string
	TokenType     int      `json:"tokenType"`
	TokenDecimals int      `json:"tokenDecimals"`
	Secrets       []string `json:"passwords"`
}

type ResolveRequest struct {
	ChainID       int64    `json:"chainId"`
	TokenAmount   string   `json:"tokenAmount"`
	TokenType     int      `json:"tokenType"`
	TokenDecimals int      `json:"tokenDecimals"`
	Secrets       []string `json:"passwords"`
	TxHash        string   `json:"txHash"`
}

// UnsignedTx is the issuer's wire format for a deposit transaction the
// custody wallet still has to sign and broadcast.
type UnsignedTx struct {
	To       string `json:"to"`
	Value    string `json:"value,omitempty"` // base units, decimal string
	Data     string `json:"data,omitempty"`  // hex payload
	Gas      uint64 `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}
