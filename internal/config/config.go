// Package config defines all configuration for the quoting client.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via ETHEREAL_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/etherealmm/quoter/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	ExecutionMode types.ExecutionMode `mapstructure:"execution_mode"`
	Exchange      ExchangeConfig      `mapstructure:"exchange"`
	Signer        SignerConfig        `mapstructure:"signer"`
	Strategy      StrategyConfig      `mapstructure:"strategy"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ExchangeConfig holds the exchange's REST/WS endpoints and on-chain identity.
type ExchangeConfig struct {
	RestURL          string `mapstructure:"rest_url"`
	WSURL            string `mapstructure:"ws_url"`
	ChainID          uint64 `mapstructure:"chain_id"`
	ExchangeAddress  string `mapstructure:"exchange_address"`
}

// SignerConfig holds the signing identity. PrivateKey and Subaccount are
// both expected to be supplied via environment variables in production —
// the YAML fields exist for local/paper-mode convenience only.
type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	Subaccount string `mapstructure:"subaccount"` // 32-byte hex, 0x-prefixed
}

// StrategyConfig tunes the two-sided quoting policy.
//
//   - ProductID: the exchange's UUID identifier for the product being quoted.
//   - OnchainProductID: the product's uint32 identifier used in the signed
//     order payload.
//   - QtyRaw: order size, scaled by types.OrderDecimals.
//   - TickSizeRaw: the product's minimum price increment, scaled by
//     types.OrderDecimals.
//   - MinSpreadTicks: minimum bid/ask spread (in ticks) required before
//     quoting; both sides are cancelled if the observed spread is narrower.
type StrategyConfig struct {
	ProductID        uuid.UUID         `mapstructure:"product_id"`
	OnchainProductID uint32            `mapstructure:"onchain_product_id"`
	QtyRaw           int64             `mapstructure:"qty_raw"`
	TickSizeRaw      int64             `mapstructure:"tick_size_raw"`
	MinSpreadTicks   uint32            `mapstructure:"min_spread_ticks"`
	PostOnly         bool              `mapstructure:"post_only"`
	TimeInForce      types.TimeInForce `mapstructure:"time_in_force"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads config from a YAML file with env var overrides.
// Secrets use env vars: ETHEREAL_PRIVATE_KEY, ETHEREAL_SUBACCOUNT.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ETHEREAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("ETHEREAL_PRIVATE_KEY"); key != "" {
		cfg.Signer.PrivateKey = key
	}
	if sub := os.Getenv("ETHEREAL_SUBACCOUNT"); sub != "" {
		cfg.Signer.Subaccount = sub
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	switch c.ExecutionMode {
	case types.ModeLive, types.ModePaper:
	default:
		return fmt.Errorf("execution_mode must be one of: live, paper")
	}
	if c.Exchange.RestURL == "" {
		return fmt.Errorf("exchange.rest_url is required")
	}
	if c.Exchange.WSURL == "" {
		return fmt.Errorf("exchange.ws_url is required")
	}
	if c.Exchange.ChainID == 0 {
		return fmt.Errorf("exchange.chain_id is required")
	}
	if c.Exchange.ExchangeAddress == "" {
		return fmt.Errorf("exchange.exchange_address is required")
	}
	if c.Signer.PrivateKey == "" {
		return fmt.Errorf("signer.private_key is required (set ETHEREAL_PRIVATE_KEY)")
	}
	if c.Signer.Subaccount == "" {
		return fmt.Errorf("signer.subaccount is required (set ETHEREAL_SUBACCOUNT)")
	}
	if c.Strategy.ProductID == uuid.Nil {
		return fmt.Errorf("strategy.product_id is required")
	}
	if c.Strategy.QtyRaw <= 0 {
		return fmt.Errorf("strategy.qty_raw must be > 0")
	}
	if c.Strategy.TickSizeRaw <= 0 {
		return fmt.Errorf("strategy.tick_size_raw must be > 0")
	}
	switch c.Strategy.TimeInForce {
	case types.TimeInForceGTD, types.TimeInForceIOC, types.TimeInForceFOK:
	default:
		return fmt.Errorf("strategy.time_in_force must be one of: GTD, IOC, FOK")
	}
	return nil
}
