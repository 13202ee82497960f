// Package config provides configuration for the donation daemon. All
// provider endpoints, timeouts, and refresh intervals are defined here; no
// hardcoded values should exist elsewhere in the codebase.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the donation daemon.
type Config struct {
	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// RPC server settings
	RPC RPCConfig `yaml:"rpc"`

	// Blockchain data providers
	Providers ProvidersConfig `yaml:"providers"`

	// Monitoring cadence
	Monitor MonitorConfig `yaml:"monitor"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for all data files.
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`
}

// RPCConfig holds JSON-RPC server settings.
type RPCConfig struct {
	// ListenAddr is the host:port the RPC server binds to.
	ListenAddr string `yaml:"listen_addr"`
}

// ProvidersConfig holds external API endpoints. Bitcoin has a primary and a
// fallback provider; Ethereum and the stablecoin share one RPC endpoint.
type ProvidersConfig struct {
	// Bitcoin
	MempoolURL   string `yaml:"mempool_url"`
	BlockbookURL string `yaml:"blockbook_url"`

	// Ethereum and ERC-20
	EthRPCURL       string `yaml:"eth_rpc_url"`
	EtherscanURL    string `yaml:"etherscan_url"`
	EtherscanAPIKey string `yaml:"etherscan_api_key,omitempty"`

	// Fiat prices
	PriceFeedURL string `yaml:"price_feed_url"`

	// RequestTimeout bounds every outbound provider call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MonitorConfig holds balance refresh settings.
type MonitorConfig struct {
	// RefreshInterval is how often all active wallets are refreshed.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// BatchDelay is the pause between wallets inside one refresh pass.
	BatchDelay time.Duration `yaml:"batch_delay"`

	// SweepInterval is how often expired cache rows are deleted.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "~/.donationd",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		RPC: RPCConfig{
			ListenAddr: "127.0.0.1:8870",
		},
		Providers: ProvidersConfig{
			MempoolURL:     "https://mempool.space/api",
			BlockbookURL:   "https://btc1.trezor.io/api/v2",
			EthRPCURL:      "https://eth.llamarpc.com",
			EtherscanURL:   "https://api.etherscan.io",
			PriceFeedURL:   "https://api.coingecko.com/api/v3",
			RequestTimeout: 30 * time.Second,
		},
		Monitor: MonitorConfig{
			RefreshInterval: 5 * time.Minute,
			BatchDelay:      time.Second,
			SweepInterval:   time.Hour,
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from the default file in the data directory.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := filepath.Join(expandPath(dataDir), ConfigFileName)

	cfg, err := LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = dataDir
	}
	return cfg, nil
}

// LoadConfigFile loads configuration from the exact path given.
// If the file doesn't exist, it creates one with default values.
func LoadConfigFile(configPath string) (*Config, error) {
	configPath = expandPath(configPath)

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config
		cfg := DefaultConfig()
		cfg.Storage.DataDir = ""

		// Save default config
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		return cfg, nil
	}

	// Load existing config
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Storage.DataDir = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Add header comment
	header := []byte("# Donation Daemon Configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
