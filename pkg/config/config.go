// Copyright 2025 Certen Protocol
//
// Config loads the node's YAML configuration file with environment
// variable substitution. Grounded on anchor_config.go's
// ${VAR_NAME} / ${VAR_NAME:-default} expansion pattern and the overall
// shape of a flat, section-per-concern settings struct.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the rollup node.
type Config struct {
	Network    NetworkSettings    `yaml:"network"`
	Server     ServerSettings     `yaml:"server"`
	Storage    StorageSettings    `yaml:"storage"`
	Proof      ProofSettings      `yaml:"proof"`
	Validator  ValidatorSettings  `yaml:"validator"`
	Database   DatabaseSettings   `yaml:"database"`
	Monitoring MonitoringSettings `yaml:"monitoring"`
}

// NetworkSettings configures the L1 RPC connection and contract
// addresses the node reads from and writes to.
type NetworkSettings struct {
	EthereumURL         string `yaml:"ethereum_url"`
	EthChainID          int64  `yaml:"eth_chain_id"`
	RollupContract      string `yaml:"rollup_contract_address"`
	USDCContract        string `yaml:"usdc_contract_address"`
	EthPrivateKey       string `yaml:"eth_private_key"`
	SafeEthHeightOffset uint64 `yaml:"safe_eth_height_offset"`
}

// ServerSettings configures the node's HTTP listeners.
type ServerSettings struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// StorageSettings configures the node's persistent KV store.
type StorageSettings struct {
	DataDir string `yaml:"data_dir"`
	Backend string `yaml:"backend"` // goleveldb, memdb
}

// ProofSettings points at the Groth16 proving and verifying key files the
// ProofBackend loads.
type ProofSettings struct {
	ProvingKeyPath   string `yaml:"proving_key_path"`
	VerifyingKeyPath string `yaml:"verifying_key_path"`
}

// ValidatorSettings configures mempool/admission budgets.
type ValidatorSettings struct {
	BlockBudget int `yaml:"block_budget"`
}

// DatabaseSettings configures the optional Postgres read mirror; an empty
// URL means a KV-only deployment, matching DatabaseRequired's opt-in
// semantics.
type DatabaseSettings struct {
	URL             string        `yaml:"url"`
	Required        bool          `yaml:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// MonitoringSettings configures the metrics server.
type MonitoringSettings struct {
	Enabled bool `yaml:"enabled"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads a YAML config file from path, expanding ${VAR_NAME} markers
// against the process environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "goleveldb"
	}
	if c.Validator.BlockBudget == 0 {
		c.Validator.BlockBudget = 200
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
}

// Validate checks that the settings required for a production deployment
// are present, mirroring ValidateAnchorConfig's accumulate-errors style.
func (c *Config) Validate() error {
	var problems []string

	if c.Network.EthereumURL == "" {
		problems = append(problems, "network.ethereum_url is required")
	}
	if c.Network.EthChainID == 0 {
		problems = append(problems, "network.eth_chain_id is required")
	}
	if c.Network.RollupContract == "" {
		problems = append(problems, "network.rollup_contract_address is required")
	}
	if c.Storage.DataDir == "" {
		problems = append(problems, "storage.data_dir is required")
	}
	if c.Database.Required && c.Database.URL == "" {
		problems = append(problems, "database.url is required when database.required is true")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %v", problems)
	}
	return nil
}
