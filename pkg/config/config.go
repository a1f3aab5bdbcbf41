// Package config provides configuration loading and management for msbench.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override (MSBENCH_SEED, ...)
	EnvPrefix = "MSBENCH"
	// UserConfigDir is the directory for user-level config, relative to $HOME
	UserConfigDir = ".msbench"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Config represents the complete msbench configuration
type Config struct {
	// Seed drives species arbitration and downsampling
	Seed uint64 `yaml:"seed" mapstructure:"seed"`
	// CollapseIL treats isoleucine and leucine as the same residue when comparing peptides
	CollapseIL bool `yaml:"i2l" mapstructure:"i2l"`
	// MGFPattern selects spectrum files inside each species directory (doublestar syntax)
	MGFPattern string `yaml:"mgf_pattern" mapstructure:"mgf_pattern"`
	// Encoding is the text encoding of input files
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	// ExcludedResidues lists residue letters that disqualify an identification
	ExcludedResidues string `yaml:"excluded_residues" mapstructure:"excluded_residues"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// Catalog is an optional SQLite file written by clean
	Catalog string `yaml:"catalog" mapstructure:"catalog"`
	// PTMTable is an optional CSV (kind,from,to) replacing the built-in modification table
	PTMTable string `yaml:"ptm_table" mapstructure:"ptm_table"`

	Downsample DownsampleConfig `yaml:"downsample" mapstructure:"downsample"`
}

// DownsampleConfig configures the downsample command
type DownsampleConfig struct {
	// NumSpectra is the per-species spectrum target
	NumSpectra int `yaml:"num_spectra" mapstructure:"num_spectra"`
}

// DefaultConfig returns a Config with the published benchmark settings
func DefaultConfig() *Config {
	return &Config{
		Seed:             7718,
		CollapseIL:       false,
		MGFPattern:       "*",
		Encoding:         "utf-8",
		ExcludedResidues: "OU",
		LogLevel:         "info",
		Catalog:          "",
		PTMTable:         "",
		Downsample: DownsampleConfig{
			NumSpectra: 100000,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.MGFPattern == "" {
		return fmt.Errorf("mgf_pattern is required")
	}
	if c.Encoding == "" {
		return fmt.Errorf("encoding is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Downsample.NumSpectra <= 0 {
		return fmt.Errorf("downsample.num_spectra must be positive")
	}
	return nil
}

// SetDefaults registers every key with its default so that environment
// variables and Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("seed", d.Seed)
	v.SetDefault("i2l", d.CollapseIL)
	v.SetDefault("mgf_pattern", d.MGFPattern)
	v.SetDefault("encoding", d.Encoding)
	v.SetDefault("excluded_residues", d.ExcludedResidues)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("catalog", d.Catalog)
	v.SetDefault("ptm_table", d.PTMTable)
	v.SetDefault("downsample.num_spectra", d.Downsample.NumSpectra)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UserConfigPath returns $HOME/.msbench/config.yaml
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error finding home directory: %w", err)
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile), nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ParseLevel maps a log_level value onto a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}
