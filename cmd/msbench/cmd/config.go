package cmd

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/msbench/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage msbench configuration",
	Long: `Manage msbench configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (MSBENCH_*)
3. Config file (~/.msbench/config.yaml)
4. Defaults`,
}

// Flags for config show
var showFile string

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration after merging defaults, config file, environment and flags.

With --file, display and validate a single config file over the defaults instead,
ignoring environment and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg
		if showFile != "" {
			fileCfg, err := config.LoadFromFile(showFile)
			if err != nil {
				return err
			}
			if err := fileCfg.Validate(); err != nil {
				return fmt.Errorf("invalid config %s: %w", showFile, err)
			}
			fmt.Fprintf(os.Stderr, "Configuration file: %s (defaults only, no env or flags)\n\n", showFile)
			shown = fileCfg
		} else if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		// Marshal config to YAML for display
		yamlData, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), string(yamlData))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.msbench/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.UserConfigPath()
		if err != nil {
			return err
		}

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'msbench config show' to view it, or delete it first to recreate", configPath)
		}

		if err := config.DefaultConfig().SaveToFile(configPath); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().StringVar(&showFile, "file", "", "Show and validate this config file instead of the effective configuration")
}
