package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teranos/concord/cache"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/resolver"
	"github.com/teranos/concord/strategy"
	"github.com/teranos/concord/sym"
)

// WatchCmd represents the watch command - Concord maintenance daemon
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: sym.Watch + " Run the Concord maintenance daemon (purge ticker + rules reload)",
	Long: sym.Watch + ` Concord maintenance daemon.

The watch daemon provides:
- Periodic cache purge (tombstones entries unused past retention)
- Hot-reload of the mapping rules file on change
- Durable tombstone records for every purged entry

Run it alongside embedders that keep a resolver live; one-shot CLI
resolutions do not need it.

Example:
  concord watch                 # Run daemon in foreground`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLogConfig(cmd, cfg)

	dbPath, err := config.GetDatabasePath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	database, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	r, err := resolver.New(database, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to build resolver: %w", err)
	}

	printStartupBanner(verbosity, dbPath, cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var ticker *cache.PurgeTicker
	if cfg.Cache.PurgeIntervalHours > 0 {
		ticker = cache.NewPurgeTickerWithContext(ctx, r.Cache(), cache.TickerConfig{
			Interval:  cfg.Cache.PurgeInterval(),
			Retention: cfg.Cache.Retention(),
		}, logger.Logger)
		ticker.Start()
		fmt.Printf("%s Purge ticker started (every %v, retention %v)\n",
			sym.Cache, cfg.Cache.PurgeInterval(), cfg.Cache.Retention())
	} else {
		fmt.Printf("%s Purge ticker disabled (cache.purge_interval_hours = 0)\n", sym.Cache)
	}

	var watcher *strategy.RulesWatcher
	rulesPath := cfg.GetRulesPath()
	if cfg.Rules.Watch && rulesPath != "" {
		// The watcher needs an existing file to attach to.
		if _, statErr := os.Stat(rulesPath); statErr == nil {
			watcher, err = strategy.NewRulesWatcher(rulesPath, r.Mappings(), logger.Logger)
			if err != nil {
				return fmt.Errorf("failed to watch rules file: %w", err)
			}
			watcher.Start()
			fmt.Printf("%s Watching %s for rule changes\n", sym.WatchOpen, rulesPath)
		} else {
			fmt.Printf("%s Rules file %s not found, hot-reload disabled\n", sym.WatchOpen, rulesPath)
		}
	}

	fmt.Printf("\n%s Watch daemon running. Press Ctrl+C to stop\n\n", sym.Watch)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Printf("\n%s Shutting down...\n", sym.Watch)

	// Stop components in reverse order of startup
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Logger.Warnw("Failed to stop rules watcher", "error", err)
		}
	}
	if ticker != nil {
		ticker.Stop()
	}

	cancel()

	fmt.Printf("%s Watch daemon stopped\n", sym.WatchClose)
	return nil
}
