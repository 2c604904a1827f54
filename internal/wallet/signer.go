package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"linkrails/internal/issuer"
)

// ErrInsufficientFunds marks broadcast failures caused by the custody
// wallet's balance, which callers report differently from generic
// signing failures.
var ErrInsufficientFunds = errors.New("insufficient funds in custody wallet")

// Signer holds the custody key and the long-lived network connection.
// One instance serves the whole process; SignAndSend serializes nonce
// assignment and broadcast so concurrent requests cannot race on the
// wallet's transaction ordering.
type Signer struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	eip155  types.Signer

	mu sync.Mutex
}

type Config struct {
	RPCURL   string
	ChainID  int64
	Mnemonic string
}

// New derives the custody key from the recovery phrase and dials the
// network provider. Close releases the connection.
func New(ctx context.Context, cfg Config) (*Signer, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	key, err := DeriveKey(cfg.Mnemonic)
	if err != nil {
		return nil, err
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	nodeChainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if cfg.ChainID != 0 && nodeChainID.Int64() != cfg.ChainID {
		cli.Close()
		return nil, fmt.Errorf("configured chain id %d but node reports %s", cfg.ChainID, nodeChainID)
	}

	return &Signer{
		client:  cli,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: nodeChainID,
		eip155:  types.LatestSignerForChainID(nodeChainID),
	}, nil
}

// Address returns the custody wallet address in hex form.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// SignAndSend signs one issuer transaction and broadcasts it, returning
// the transaction hash once the node has accepted it.
func (s *Signer) SignAndSend(ctx context.Context, utx issuer.UnsignedTx) (string, error) {
	to, value, data, err := decodeUnsignedTx(utx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice := new(big.Int)
	if utx.GasPrice != "" {
		if _, ok := gasPrice.SetString(utx.GasPrice, 10); !ok {
			return "", fmt.Errorf("invalid gas price: %s", utx.GasPrice)
		}
	} else {
		gasPrice, err = s.client.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("suggest gas price: %w", err)
		}
	}

	gas := utx.Gas
	if gas == 0 {
		gas, err = s.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  s.address,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return "", classifyProviderErr(fmt.Errorf("estimate gas: %w", err))
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, s.eip155, s.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", classifyProviderErr(fmt.Errorf("broadcast transaction: %w", err))
	}
	return signed.Hash().Hex(), nil
}

// Ping checks the provider connection for health reporting.
func (s *Signer) Ping(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := s.client.BlockNumber(ctx)
	return err
}

func (s *Signer) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func decodeUnsignedTx(utx issuer.UnsignedTx) (common.Address, *big.Int, []byte, error) {
	if !common.IsHexAddress(utx.To) {
		return common.Address{}, nil, nil, fmt.Errorf("invalid destination address: %q", utx.To)
	}
	to := common.HexToAddress(utx.To)

	value := new(big.Int)
	if utx.Value != "" {
		if _, ok := value.SetString(utx.Value, 10); !ok {
			return common.Address{}, nil, nil, fmt.Errorf("invalid transaction value: %q", utx.Value)
		}
		if value.Sign() < 0 {
			return common.Address{}, nil, nil, fmt.Errorf("negative transaction value: %q", utx.Value)
		}
	}

	var data []byte
	if utx.Data != "" && utx.Data != "0x" {
		decoded, err := hexutil.Decode(utx.Data)
		if err != nil {
			return common.Address{}, nil, nil, fmt.Errorf("invalid transaction payload: %w", err)
		}
		data = decoded
	}

	return to, value, data, nil
}

func classifyProviderErr(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return err
}
