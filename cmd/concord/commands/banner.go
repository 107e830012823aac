package commands

import (
	"fmt"

	"github.com/teranos/concord/config"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/sym"
	"github.com/teranos/concord/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, dbPath string, cfg *config.Config) {
	// ANSI escape codes
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	magenta := "\033[35m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║  ████   ████  ██  ██  ████   ████  █████  █████   ║\n")
	fmt.Printf("   ║ ██     ██  ██ ███ ██ ██     ██  ██ ██  ██ ██  ██  ║\n")
	fmt.Printf("   ║ ██     ██  ██ ██████ ██     ██  ██ █████  ██  ██  ║\n")
	fmt.Printf("   ║ ██     ██  ██ ██ ███ ██     ██  ██ ██ ██  ██  ██  ║\n")
	fmt.Printf("   ║  ████   ████  ██  ██  ████   ████  ██  ██ █████   ║\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║  %s%s%s Resolve  %s%s%s Cache  %s%s%s Sources  %s%s%s Watch           ║\n",
		blue, sym.Resolve, reset+cyan+bold,
		yellow, sym.Cache, reset+cyan+bold,
		green, sym.Source, reset+cyan+bold,
		magenta, sym.Watch, reset+cyan+bold)
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ╚═══════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ Concord Info ──────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:     %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Verbosity: %s\n", green, reset, logger.LevelName(verbosity))
	if dbPath != "" {
		fmt.Printf("%s│%s Database:  %s\n", green, reset, dbPath)
	}
	if cfg != nil {
		fmt.Printf("%s│%s Rules:     %s (watch: %v)\n", green, reset, cfg.GetRulesPath(), cfg.Rules.Watch)
		if cfg.Cache.PurgeInterval() > 0 {
			fmt.Printf("%s│%s Purge:     every %v (retention %v)\n", green, reset, cfg.Cache.PurgeInterval(), cfg.Cache.Retention())
		} else {
			fmt.Printf("%s│%s Purge:     disabled\n", green, reset)
		}
	}
	fmt.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s✨ Edit the rules file to hot-reload mappings%s\n", yellow, bold, reset)
	fmt.Printf("%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
