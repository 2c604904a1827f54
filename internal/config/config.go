package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig ties together service, chain and link-service settings.
type AppConfig struct {
	Service ServiceConfig
	Chain   ChainConfig
	Link    LinkConfig
}

type ServiceConfig struct {
	HTTPPort        int
	APIKey          string
	DatabaseURL     string
	LogLevel        string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

type ChainConfig struct {
	ChainID       int64
	RPCURL        string
	Mnemonic      string
	TokenDecimals int
}

type LinkConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

const (
	// Sepolia, a public test network.
	defaultChainID  = 11_155_111
	defaultRPCURL   = "https://rpc.sepolia.org"
	defaultHTTPPort = 8001
	defaultLinkURL  = "https://api.peanut.to/v1"

	mnemonicWordCount = 12
)

// Load aggregates configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	mnemonic := strings.TrimSpace(os.Getenv("WALLET_MNEMONIC"))
	if err := validateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("API_KEY is required")
	}

	rpcURL := envOr("RPC_URL", defaultRPCURL)
	// RPC URLs with a credential slot get the provider key substituted in,
	// e.g. https://sepolia.infura.io/v3/%s.
	if strings.Contains(rpcURL, "%s") {
		providerKey := os.Getenv("PROVIDER_API_KEY")
		if providerKey == "" {
			return nil, fmt.Errorf("RPC_URL expects a credential but PROVIDER_API_KEY is not set")
		}
		rpcURL = fmt.Sprintf(rpcURL, providerKey)
	}

	serviceCfg := ServiceConfig{
		HTTPPort:        envOrInt("HTTP_PORT", defaultHTTPPort),
		APIKey:          apiKey,
		DatabaseURL:     envOr("DATABASE_URL", ""),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		RateLimitMax:    envOrInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(envOrInt("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,
	}

	chainCfg := ChainConfig{
		ChainID:       envOrInt64("CHAIN_ID", defaultChainID),
		RPCURL:        rpcURL,
		Mnemonic:      mnemonic,
		TokenDecimals: envOrInt("TOKEN_DECIMALS", 9),
	}

	linkCfg := LinkConfig{
		BaseURL:        envOr("LINK_API_URL", defaultLinkURL),
		RequestTimeout: time.Duration(envOrInt("LINK_API_TIMEOUT_MS", 15_000)) * time.Millisecond,
	}

	return &AppConfig{
		Service: serviceCfg,
		Chain:   chainCfg,
		Link:    linkCfg,
	}, nil
}

func validateMnemonic(mnemonic string) error {
	if mnemonic == "" {
		return fmt.Errorf("WALLET_MNEMONIC is required")
	}
	if words := len(strings.Fields(mnemonic)); words != mnemonicWordCount {
		return fmt.Errorf("WALLET_MNEMONIC must contain exactly %d words, got %d", mnemonicWordCount, words)
	}
	return nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int64
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
