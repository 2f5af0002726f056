package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"stakehub/crypto"
)

type Config struct {
	RPCAddress      string   `toml:"RPCAddress"`
	MetricsAddress  string   `toml:"MetricsAddress"`
	DataDir         string   `toml:"DataDir"`
	ServiceEnv      string   `toml:"ServiceEnv"`
	OwnerAddress    string   `toml:"OwnerAddress"`
	ContractAddress string   `toml:"ContractAddress"`
	PausedModules   []string `toml:"PausedModules"`
}

// Load loads the configuration from the given path, writing a default file
// (with a freshly generated owner account) when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./stakehub-data"
	}
	if strings.TrimSpace(cfg.ServiceEnv) == "" {
		cfg.ServiceEnv = "local"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	return cfg, validate(cfg)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress is required")
	}
	if _, err := crypto.DecodeAddress(cfg.OwnerAddress); err != nil {
		return fmt.Errorf("config: invalid OwnerAddress: %w", err)
	}
	if strings.TrimSpace(cfg.ContractAddress) == "" {
		return fmt.Errorf("config: ContractAddress is required")
	}
	if _, err := crypto.DecodeAddress(cfg.ContractAddress); err != nil {
		return fmt.Errorf("config: invalid ContractAddress: %w", err)
	}
	return nil
}

// Owner returns the decoded administrative account.
func (c *Config) Owner() (crypto.Address, error) {
	return crypto.DecodeAddress(c.OwnerAddress)
}

// Contract returns the decoded contract account used on external ledgers.
func (c *Config) Contract() (crypto.Address, error) {
	return crypto.DecodeAddress(c.ContractAddress)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	ownerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	contractKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:      ":8080",
		MetricsAddress:  ":9090",
		DataDir:         "./stakehub-data",
		ServiceEnv:      "local",
		OwnerAddress:    ownerKey.PubKey().Address().String(),
		ContractAddress: contractKey.PubKey().Address().String(),
		PausedModules:   []string{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
