package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAssetSymbol    = "LP"
	DefaultBaseURI        = "ipfs://123456789/"
	DefaultMetricsAddress = "127.0.0.1:9464"
	// DefaultOperatorSupply is minted to the operator when no allocations are
	// configured.
	DefaultOperatorSupply = "999999999999999999"
)

type Config struct {
	DataDir              string `toml:"DataDir" yaml:"dataDir"`
	InMemory             bool   `toml:"InMemory" yaml:"inMemory"`
	AssetSymbol          string `toml:"AssetSymbol" yaml:"assetSymbol"`
	BaseURI              string `toml:"BaseURI" yaml:"baseURI"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath" yaml:"operatorKeystorePath"`
	// OperatorPassphraseFile is read when the passphrase environment variable
	// is unset. Empty means prompt on the terminal.
	OperatorPassphraseFile string       `toml:"OperatorPassphraseFile" yaml:"operatorPassphraseFile"`
	MetricsAddress         string       `toml:"MetricsAddress" yaml:"metricsAddress"`
	Tiers                  Tiers        `toml:"tiers" yaml:"tiers"`
	Allocations            []Allocation `toml:"allocations" yaml:"allocations"`
	Log                    Log          `toml:"log" yaml:"log"`
	Telemetry              Telemetry    `toml:"telemetry" yaml:"telemetry"`
}

// Load loads the configuration from the given path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as TOML. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
		}
	}

	applyDefaults(path, cfg)
	return cfg, nil
}

func applyDefaults(path string, cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./stakebadge-data"
	}
	if strings.TrimSpace(cfg.AssetSymbol) == "" {
		cfg.AssetSymbol = DefaultAssetSymbol
	}
	if strings.TrimSpace(cfg.BaseURI) == "" {
		cfg.BaseURI = DefaultBaseURI
	}
	if strings.TrimSpace(cfg.OperatorKeystorePath) == "" {
		cfg.OperatorKeystorePath = defaultKeystorePath(path)
	}
	if cfg.Tiers == (Tiers{}) {
		cfg.Tiers = Tiers{Scale: 10, MaxTier: 3, UnitSeconds: 86400}
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Allocations == nil {
		cfg.Allocations = []Allocation{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:        "./stakebadge-data",
		MetricsAddress: DefaultMetricsAddress,
		Log:            Log{Env: "dev"},
	}
	applyDefaults(path, cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
