package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/concord/cmd/concord/commands"
	"github.com/teranos/concord/logger"
)

var rootCmd = &cobra.Command{
	Use:   "concord",
	Short: "Concord - Semantic conflict resolution between data modules",
	Long: `Concord - Semantic conflict resolution and transformation caching.

Concord resolves representation conflicts between independently developed
modules: the same concept expressed with different field names, types, or
structure. Resolutions come from explicit mapping rules, replayed cached
transformations, or an AI oracle, and every successful resolution is cached
under a semantic fingerprint so equivalent conflicts never pay twice.

Available commands:
  resolve  - Resolve a conflict between two module payloads
  cache    - Inspect the semantic cache and its persisted activity
  sources  - Register data sources and find candidates for an intent
  sessions - Inspect resolution telemetry sessions
  config   - Manage concord configuration
  db       - Database statistics and oracle usage
  watch    - Run the maintenance daemon (purge ticker + rules watcher)
  version  - Show version information

Examples:
  concord resolve orders '{"total": 9.5}' billing '{"amount": 9.5}'
  concord cache stats
  concord sources find "customer profile lookup"
  concord config show --format yaml
  concord watch`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs.
		// Skip for commands whose stdout is meant to be piped.
		if cmd.Name() == "show" || cmd.Name() == "get" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")

	// Add commands
	rootCmd.AddCommand(commands.ResolveCmd)
	rootCmd.AddCommand(commands.CacheCmd)
	rootCmd.AddCommand(commands.SourcesCmd)
	rootCmd.AddCommand(commands.SessionsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
