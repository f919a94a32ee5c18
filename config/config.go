package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// GenesisAlloc seeds one account with a payment balance when the database is
// initialised for the first time.
type GenesisAlloc struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Config carries the settlement daemon configuration.
type Config struct {
	RPCAddress       string         `toml:"RPCAddress"`
	OpsAddress       string         `toml:"OpsAddress"`
	DataDir          string         `toml:"DataDir"`
	NetworkName      string         `toml:"NetworkName"`
	Environment      string         `toml:"Environment"`
	EscrowVault      string         `toml:"EscrowVault"`
	ResidualPolicy   string         `toml:"ResidualPolicy"`
	AllowZeroPayment bool           `toml:"AllowZeroPayment"`
	PausedModules    []string       `toml:"PausedModules"`
	Genesis          []GenesisAlloc `toml:"Genesis"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.OpsAddress) == "" {
		cfg.OpsAddress = "127.0.0.1:9645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./ipchain-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "ipchain-local"
	}
	if strings.TrimSpace(cfg.ResidualPolicy) == "" {
		cfg.ResidualPolicy = "first_beneficiary"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if cfg.Genesis == nil {
		cfg.Genesis = []GenesisAlloc{}
	}
}

func validate(cfg *Config) error {
	switch cfg.ResidualPolicy {
	case "first_beneficiary", "largest_remainder":
	default:
		return fmt.Errorf("config: unsupported residual policy %q", cfg.ResidualPolicy)
	}
	if strings.TrimSpace(cfg.EscrowVault) == "" {
		return fmt.Errorf("config: EscrowVault is required")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		// A fixed module account: payments rest here between the buyer debit
		// and the royalty distribution.
		EscrowVault: "0x6970636861696e2d657363726f772d7661756c74",
	}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
