package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aman-zulfiqar/amm-engine/internal/constants"
)

type Config struct {
	// Ledger
	Network         string        `mapstructure:"network"`
	AlgodURL        string        `mapstructure:"algod-url"`
	AlgodToken      string        `mapstructure:"algod-token"`
	ProtocolVersion string        `mapstructure:"protocol-version"`
	ValidatorAppID  uint64        `mapstructure:"validator-app-id"`
	ASCPath         string        `mapstructure:"asc-path"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`

	// HTTP client settings
	HTTPTimeout  time.Duration `mapstructure:"http-timeout"`
	MaxRetries   int           `mapstructure:"max-retries"`
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`

	// Initiator key
	WalletKey string `mapstructure:"wallet-key"`

	// Risk
	DefaultSlippageBps uint16 `mapstructure:"default-slippage-bps"`
	MaxSlippageBps     uint16 `mapstructure:"max-slippage-bps"`
	MaxPriceImpactBps  uint16 `mapstructure:"max-price-impact-bps"`

	// Redis settings
	RedisAddr string `mapstructure:"redis-addr"`

	// ClickHouse settings
	ClickHouseAddr     string `mapstructure:"clickhouse-addr"`
	ClickHouseDatabase string `mapstructure:"clickhouse-database"`
	ClickHouseUsername string `mapstructure:"clickhouse-username"`
	ClickHousePassword string `mapstructure:"clickhouse-password"`

	// API
	APIAddr string `mapstructure:"api-addr"`
	APIKey  string `mapstructure:"api-key"`
	DevMode bool   `mapstructure:"dev-mode"`

	LogLevel string `mapstructure:"log-level"`
}

var defaults = map[string]any{
	"network":              constants.NetworkTestnet,
	"algod-url":            "",
	"algod-token":          "",
	"protocol-version":     "v2",
	"validator-app-id":     0,
	"asc-path":             "asc.json",
	"poll-interval":        constants.DefaultPollInterval,
	"http-timeout":         30 * time.Second,
	"max-retries":          5,
	"retry-backoff":        2 * time.Second,
	"wallet-key":           "",
	"default-slippage-bps": constants.DefaultSlippageBps,
	"max-slippage-bps":     500,
	"max-price-impact-bps": constants.DefaultMaxImpactBps,
	"redis-addr":           "localhost:6379",
	"clickhouse-addr":      "",
	"clickhouse-database":  "amm",
	"clickhouse-username":  "default",
	"clickhouse-password":  "",
	"api-addr":             ":8090",
	"api-key":              "",
	"dev-mode":             false,
	"log-level":            "info",
}

// Load reads configuration from defaults, an optional file and AMM_*
// environment variables, in increasing priority. An empty path searches
// for .amm.yaml in the working and home directories.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".amm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyNetwork()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyNetwork fills the algod URL and validator app from the network when unset.
func (c *Config) applyNetwork() {
	if c.AlgodURL == "" {
		c.AlgodURL = constants.AlgodURLs[c.Network]
	}
	if c.ValidatorAppID == 0 {
		c.ValidatorAppID = constants.ValidatorAppID(c.Network, c.ProtocolVersion)
	}
}

func (c *Config) Validate() error {
	if _, ok := constants.ValidatorAppIDs[c.Network]; !ok {
		return fmt.Errorf("config: unknown network %q", c.Network)
	}
	if c.ProtocolVersion != "v1" && c.ProtocolVersion != "v2" {
		return fmt.Errorf("config: protocol-version must be v1 or v2, got %q", c.ProtocolVersion)
	}
	if c.AlgodURL == "" {
		return fmt.Errorf("config: algod-url is required")
	}
	if c.ValidatorAppID == 0 {
		return fmt.Errorf("config: validator-app-id is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll-interval must be positive")
	}
	if c.MaxSlippageBps > constants.MaxSlippageBps || c.MaxPriceImpactBps > constants.MaxSlippageBps {
		return fmt.Errorf("config: bps limits must not exceed %d", constants.MaxSlippageBps)
	}
	if c.DefaultSlippageBps > c.MaxSlippageBps {
		return fmt.Errorf("config: default-slippage-bps %d exceeds max-slippage-bps %d", c.DefaultSlippageBps, c.MaxSlippageBps)
	}
	return nil
}
