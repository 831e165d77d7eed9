package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/etherealmm/quoter/pkg/types"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

const validYAML = `
execution_mode: paper
exchange:
  rest_url: https://api.ethereal.test
  ws_url: wss://api.ethereal.test
  chain_id: 1337
  exchange_address: "0x1111111111111111111111111111111111111111"
signer:
  private_key: "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
  subaccount: "0x0000000000000000000000000000000000000000000000000000000000000001"
strategy:
  product_id: "11111111-1111-1111-1111-111111111111"
  onchain_product_id: 7
  qty_raw: 100000000
  tick_size_raw: 1000000000
  min_spread_ticks: 1
  post_only: true
  time_in_force: GTD
logging:
  level: info
  format: json
`

func TestLoadParsesValidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ExecutionMode != types.ModePaper {
		t.Errorf("ExecutionMode = %v, want paper", cfg.ExecutionMode)
	}
	if cfg.Exchange.ChainID != 1337 {
		t.Errorf("ChainID = %d, want 1337", cfg.Exchange.ChainID)
	}
	wantProduct := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	if cfg.Strategy.ProductID != wantProduct {
		t.Errorf("ProductID = %v, want %v", cfg.Strategy.ProductID, wantProduct)
	}
	if cfg.Strategy.QtyRaw != 100_000_000 {
		t.Errorf("QtyRaw = %d, want 100000000", cfg.Strategy.QtyRaw)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, validYAML)
	t.Setenv("ETHEREAL_PRIVATE_KEY", "deadbeef")
	t.Setenv("ETHEREAL_SUBACCOUNT", "0xdead")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Signer.PrivateKey != "deadbeef" {
		t.Errorf("PrivateKey = %q, want env override", cfg.Signer.PrivateKey)
	}
	if cfg.Signer.Subaccount != "0xdead" {
		t.Errorf("Subaccount = %q, want env override", cfg.Signer.Subaccount)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		path := writeConfigFile(t, validYAML)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad execution mode", func(c *Config) { c.ExecutionMode = "bogus" }},
		{"missing rest url", func(c *Config) { c.Exchange.RestURL = "" }},
		{"missing ws url", func(c *Config) { c.Exchange.WSURL = "" }},
		{"missing chain id", func(c *Config) { c.Exchange.ChainID = 0 }},
		{"missing exchange address", func(c *Config) { c.Exchange.ExchangeAddress = "" }},
		{"missing private key", func(c *Config) { c.Signer.PrivateKey = "" }},
		{"missing subaccount", func(c *Config) { c.Signer.Subaccount = "" }},
		{"missing product id", func(c *Config) { c.Strategy.ProductID = uuid.Nil }},
		{"zero qty", func(c *Config) { c.Strategy.QtyRaw = 0 }},
		{"zero tick size", func(c *Config) { c.Strategy.TickSizeRaw = 0 }},
		{"bad time in force", func(c *Config) { c.Strategy.TimeInForce = "BOGUS" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() err = nil, want error for %s", tt.name)
			}
		})
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
