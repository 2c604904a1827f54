package issuer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FakeClient deterministically emulates the link service for tests and
// local development. Prepare returns a single value-transfer transaction
// and ResolveLink derives a stable link from the anchoring hash.
type FakeClient struct{}

func (FakeClient) Prepare(_ context.Context, req PrepareRequest) ([]UnsignedTx, error) {
	if req.Address == "" {
		return nil, fmt.Errorf("missing deposit address")
	}
	if len(req.Secrets) == 0 {
		return nil, fmt.Errorf("missing deposit secret")
	}
	return []UnsignedTx{
		{
			To:    "0x000000000000000000000000000000000000dEaD",
			Value: req.TokenAmount,
		},
	}, nil
}

func (FakeClient) ResolveLink(_ context.Context, req ResolveRequest) (string, error) {
	if req.TxHash == "" {
		return "", fmt.Errorf("missing anchor transaction hash")
	}
	sum := sha256.Sum256([]byte(req.TxHash))
	return fmt.Sprintf("https://peanut.to/claim?c=%d&v=%s", req.ChainID, hex.EncodeToString(sum[:8])), nil
}
