package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/display"
	"github.com/teranos/concord/sym"
	"gopkg.in/yaml.v3"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: sym.Config + " Manage Concord core configuration",
	Long: sym.Config + ` config — Manage Concord core configuration

Display and manage Concord core configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (CONCORD_* prefix)
2. Project config (./concord.toml, searches up directories)
3. Adaptive overlay (~/.concord/concord_auto.toml)
4. User config (~/.concord/concord.toml)
5. System config (/etc/concord/config.toml)
6. Default values

Examples:
  concord config show             # Show current configuration
  concord config show --format json
  concord config get cache.similarity_threshold
  concord config validate         # Validate current configuration
  concord config where            # Show the cascade and which files exist`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current Concord core configuration from all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, cache.similarity_threshold)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current Concord core configuration is valid",
	RunE:  runConfigValidate,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration sources in order of precedence, showing
which files exist and which are missing.`,
	RunE: runConfigWhere,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# Concord core configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# Concord core configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := config.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	value := config.Get(key)
	fmt.Println(value)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("✓ Configuration is valid")
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	sources := config.Cascade()

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(sources)
	}

	fmt.Println("Configuration cascade (later overrides earlier):")
	for i, src := range sources {
		describe := src.Path
		switch src.Label {
		case "DEFAULT":
			describe = "Built-in defaults"
		case "ENV":
			describe = "CONCORD_* environment variables"
		}

		marker := ""
		if src.Path != "" && !src.Exists {
			marker = " (missing)"
		}
		fmt.Printf("  %d. %-9s %s%s\n", i+1, "["+src.Label+"]", describe, marker)
	}

	return nil
}
