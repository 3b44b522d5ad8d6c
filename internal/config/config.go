// Package config loads the presale service configuration from a YAML file, an optional
// .env file and environment variables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"meme-presale/internal/domain"
)

// Defaults.
const (
	DefaultListenAddr       = ":8080"
	DefaultMetricsAddr      = ":9090"
	DefaultMintSuffix       = "meme"
	DefaultAddressCacheSize = 4096
	DefaultSuccessFeeBps    = 500
	DefaultPoolCreationFee  = 400_000_000
	DefaultCreatorGain      = 500_000_000
	DefaultProgramID        = "11111111111111111111111111111111"
	DefaultGrindAttempts    = 10_000_000
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"Server"`
	Storage StorageConfig `yaml:"Storage"`
	Sale    SaleConfig    `yaml:"Sale"`
}

// ServerConfig holds the HTTP listeners.
type ServerConfig struct {
	ListenAddr  string `yaml:"ListenAddr"`
	MetricsAddr string `yaml:"MetricsAddr"` // empty serves /metrics on ListenAddr
	FeedClients int    `yaml:"FeedClients"`
	DevFaucet   bool   `yaml:"DevFaucet"` // exposes POST /dev/fund
}

// StorageConfig selects the backing stores.
type StorageConfig struct {
	UseMemory     bool   `yaml:"UseMemory"`
	PostgresDSN   string `yaml:"PostgresDSN"`
	ClickhouseDSN string `yaml:"ClickhouseDSN"` // optional analytics sink
	Migrate       bool   `yaml:"Migrate"`
}

// SaleConfig holds deployment parameters of the sale engine.
type SaleConfig struct {
	ProgramID        string `yaml:"ProgramID"`
	Admin            string `yaml:"Admin"`
	FeeReceiver      string `yaml:"FeeReceiver"`
	SuccessFeeBps    uint16 `yaml:"SuccessFeeBps"`
	PoolCreationFee  uint64 `yaml:"PoolCreationFee"`
	CreatorGain      uint64 `yaml:"CreatorGain"`
	MintSuffix       string `yaml:"MintSuffix"`
	AddressCacheSize int    `yaml:"AddressCacheSize"`
	GrindAttempts    uint64 `yaml:"GrindAttempts"`
}

// Default returns a config with every default filled in.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:  DefaultListenAddr,
			MetricsAddr: DefaultMetricsAddr,
			FeedClients: 1024,
		},
		Storage: StorageConfig{
			Migrate: true,
		},
		Sale: SaleConfig{
			ProgramID:        DefaultProgramID,
			SuccessFeeBps:    DefaultSuccessFeeBps,
			PoolCreationFee:  DefaultPoolCreationFee,
			CreatorGain:      DefaultCreatorGain,
			MintSuffix:       DefaultMintSuffix,
			AddressCacheSize: DefaultAddressCacheSize,
			GrindAttempts:    DefaultGrindAttempts,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables when they are set.
func (c *Config) ApplyEnv() error {
	setString(&c.Server.ListenAddr, "LISTEN_ADDR")
	setString(&c.Server.MetricsAddr, "METRICS_ADDR")
	setString(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&c.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	setString(&c.Sale.ProgramID, "PROGRAM_ID")
	setString(&c.Sale.Admin, "ADMIN")
	setString(&c.Sale.FeeReceiver, "FEE_RECEIVER")
	setString(&c.Sale.MintSuffix, "MINT_SUFFIX")

	if err := setBool(&c.Storage.UseMemory, "USE_MEMORY"); err != nil {
		return err
	}
	if err := setBool(&c.Server.DevFaucet, "DEV_FAUCET"); err != nil {
		return err
	}

	if v := os.Getenv("SUCCESS_FEE_BPS"); v != "" {
		bps, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("SUCCESS_FEE_BPS: %w", err)
		}
		c.Sale.SuccessFeeBps = uint16(bps)
	}
	if v := os.Getenv("POOL_CREATION_FEE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("POOL_CREATION_FEE: %w", err)
		}
		c.Sale.PoolCreationFee = n
	}
	if v := os.Getenv("CREATOR_GAIN"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CREATOR_GAIN: %w", err)
		}
		c.Sale.CreatorGain = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// GlobalConfig returns the initial global config of a fresh deployment.
func (c *Config) GlobalConfig() *domain.GlobalConfig {
	return &domain.GlobalConfig{
		Admin:         c.Sale.Admin,
		SuccessFeeBps: c.Sale.SuccessFeeBps,
		FeeReceiver:   c.Sale.FeeReceiver,
	}
}

// Validate checks the config for a runnable service.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is required", ErrInvalidConfig)
	}
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres DSN is required unless memory storage is used", ErrInvalidConfig)
	}
	if c.Sale.ProgramID == "" {
		return fmt.Errorf("%w: program id is required", ErrInvalidConfig)
	}
	if c.Sale.MintSuffix != strings.ToLower(c.Sale.MintSuffix) {
		return fmt.Errorf("%w: mint suffix %q must be lowercase", ErrInvalidConfig, c.Sale.MintSuffix)
	}
	if c.Sale.AddressCacheSize < 0 {
		return fmt.Errorf("%w: address cache size must not be negative", ErrInvalidConfig)
	}
	if err := c.GlobalConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}
