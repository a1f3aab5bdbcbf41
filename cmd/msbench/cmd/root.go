// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ChrisMcGann/msbench/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	// Effective configuration and logger, set before any command runs
	cfg    *config.Config
	logger = slog.Default()
)

// flagKeys binds command flags to configuration keys. Flags are bound only for
// the command being run, so commands may share a key.
var flagKeys = map[string]string{
	"seed":        "seed",
	"i2l":         "i2l",
	"pattern":     "mgf_pattern",
	"encoding":    "encoding",
	"log_level":   "log_level",
	"catalog":     "catalog",
	"ptm_table":   "ptm_table",
	"num_spectra": "downsample.num_spectra",
}

var rootCmd = &cobra.Command{
	Use:   "msbench",
	Short: "msbench - Multi-species peptide benchmark builder",
	Long: `msbench builds a multi-species benchmark of annotated tandem mass spectra.

It annotates MGF spectra with confident Percolator identifications, removes
peptides shared between species with a seeded random assignment, and translates
modification notation from Tide to Casanovo.

Typical pipeline:
  msbench annotate 0.01 crux.log percolator.target.psms.txt run.mgf > annotated/human/run.mgf
  msbench clean --old_root annotated --new_root benchmark
  msbench downsample benchmark/* --root downsampled`,
	Version:           "1.0.0",
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.msbench/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log_level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("encoding", "utf-8", "Text encoding of input files")

	config.SetDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/" + config.UserConfigDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}
}

// setup loads the configuration and builds the logger. Argument validation has
// already passed, so usage output is silenced for runtime errors.
func setup(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("Using config file", slog.String("path", used))
	}
	return nil
}
