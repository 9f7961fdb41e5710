// config.go - Configuration management for the ledger daemon
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config represents the daemon configuration. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	// Service settings
	ListenAddr   string
	OwnerAddress string
	KeyBits      int

	// Persistence
	StoreType  string
	StoreDir   string
	StoreCodec string

	// Event publishing; empty disables Kafka
	KafkaBrokers []string

	// Logging
	LogLevel  string
	LogFormat string

	// Rate limiting, per caller address
	RateMaxTokens  int
	RateRefillSecs int
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":8080",
		OwnerAddress:   "",
		KeyBits:        2048,
		StoreType:      "syncmap",
		StoreDir:       "data",
		StoreCodec:     "json",
		KafkaBrokers:   nil,
		LogLevel:       "info",
		LogFormat:      "console",
		RateMaxTokens:  20,
		RateRefillSecs: 1,
	}
}

// LoadConfig loads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv("LEDGERD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LEDGERD_OWNER_ADDRESS"); v != "" {
		cfg.OwnerAddress = v
	}
	if v := os.Getenv("LEDGERD_KEY_BITS"); v != "" {
		bits, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDGERD_KEY_BITS: %w", err)
		}
		cfg.KeyBits = bits
	}
	if v := os.Getenv("LEDGERD_STORE_TYPE"); v != "" {
		cfg.StoreType = v
	}
	if v := os.Getenv("LEDGERD_STORE_DIR"); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv("LEDGERD_STORE_CODEC"); v != "" {
		cfg.StoreCodec = v
	}
	if v := os.Getenv("LEDGERD_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LEDGERD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LEDGERD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LEDGERD_RATE_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDGERD_RATE_MAX_TOKENS: %w", err)
		}
		cfg.RateMaxTokens = n
	}
	if v := os.Getenv("LEDGERD_RATE_REFILL_SECS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDGERD_RATE_REFILL_SECS: %w", err)
		}
		cfg.RateRefillSecs = n
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.OwnerAddress == "" {
		return fmt.Errorf("owner address must be set")
	}
	if !common.IsHexAddress(c.OwnerAddress) {
		return fmt.Errorf("owner address %q is not a valid hex address", c.OwnerAddress)
	}
	if c.KeyBits < 512 {
		return fmt.Errorf("key_bits must be at least 512")
	}
	if c.StoreType != "syncmap" && c.StoreType != "file" {
		return fmt.Errorf("unsupported store type %q", c.StoreType)
	}
	if c.RateMaxTokens <= 0 {
		return fmt.Errorf("rate_max_tokens must be positive")
	}
	if c.RateRefillSecs <= 0 {
		return fmt.Errorf("rate_refill_secs must be positive")
	}
	return nil
}
