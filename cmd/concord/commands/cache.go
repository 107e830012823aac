package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/concord/cache"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/display"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/store"
	"github.com/teranos/concord/sym"
)

// CacheCmd represents the cache command
var CacheCmd = &cobra.Command{
	Use:   "cache",
	Short: sym.Cache + " Inspect the semantic cache and its durable trail",
	Long: sym.Cache + ` cache — Inspect the semantic cache and its durable trail

The cache itself lives in process memory and rebuilds per run; what persists
are the adaptive thresholds in the auto config layer and the durable records
every resolution leaves behind. Stats shows both, ls lists the recorded
resolutions.

Examples:
  concord cache stats             # Thresholds, purge cadence, record counts
  concord cache stats --json      # Same, machine readable
  concord cache ls                # Recorded resolutions, newest first
  concord cache ls --limit 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache thresholds, purge cadence, and durable record counts",
	RunE:  runCacheStats,
}

var cacheLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded resolutions, newest first",
	RunE:  runCacheLs,
}

var cacheLsLimit int

func init() {
	CacheCmd.AddCommand(cacheStatsCmd)
	CacheCmd.AddCommand(cacheLsCmd)
	cacheLsCmd.Flags().IntVar(&cacheLsLimit, "limit", 20, "Number of records to show")
}

// cacheStats is the JSON shape of cache stats output.
type cacheStats struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	PredictiveThreshold float64 `json:"predictive_threshold"`
	PredictiveEnabled   bool    `json:"predictive_enabled"`
	PurgeInterval       string  `json:"purge_interval,omitempty"`
	Retention           string  `json:"retention,omitempty"`
	Resolutions         int     `json:"resolutions"`
	Tombstones          int     `json:"tombstones"`
	DataSources         int     `json:"data_sources"`
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLogConfig(cmd, cfg)

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	records := store.New(database, logger.Logger)
	resolutions, err := records.CountByCategory(store.CategoryResolution)
	if err != nil {
		return fmt.Errorf("failed to count resolution records: %w", err)
	}
	tombstones, err := records.CountByCategory(store.CategoryTombstone)
	if err != nil {
		return fmt.Errorf("failed to count tombstone records: %w", err)
	}
	sources, err := records.CountByCategory(store.CategoryDataSource)
	if err != nil {
		return fmt.Errorf("failed to count data source records: %w", err)
	}

	// A fresh cache carries the configured (and adaptively tuned) thresholds;
	// entry counts would always be zero here and are not shown.
	thresholds := cache.New(cfg, nil, nil, logger.Logger).Stats()

	stats := cacheStats{
		SimilarityThreshold: thresholds.SimilarityThreshold,
		PredictiveThreshold: thresholds.PredictiveThreshold,
		PredictiveEnabled:   cfg.Cache.PredictiveEnabled,
		Resolutions:         resolutions,
		Tombstones:          tombstones,
		DataSources:         sources,
	}
	if cfg.Cache.PurgeIntervalHours > 0 {
		stats.PurgeInterval = cfg.Cache.PurgeInterval().String()
		stats.Retention = cfg.Cache.Retention().String()
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(stats)
	}

	fmt.Printf("%s Cache Statistics\n", sym.Cache)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Similarity Threshold: %.2f\n", stats.SimilarityThreshold)
	fmt.Printf("Predictive Threshold: %.2f\n", stats.PredictiveThreshold)
	fmt.Printf("Predictive Scoring:   %v\n", stats.PredictiveEnabled)
	if stats.PurgeInterval != "" {
		fmt.Printf("Purge:                every %s (retention %s)\n", stats.PurgeInterval, stats.Retention)
	} else {
		fmt.Printf("Purge:                disabled\n")
	}
	fmt.Println()

	fmt.Printf("Durable Records:\n")
	fmt.Printf("  Resolutions:  %d\n", stats.Resolutions)
	fmt.Printf("  Tombstones:   %d\n", stats.Tombstones)
	fmt.Printf("  Data Sources: %d\n", stats.DataSources)

	return nil
}

// storedResolution mirrors the resolution records the resolver appends.
type storedResolution struct {
	SourceModule string    `json:"source_module"`
	TargetModule string    `json:"target_module"`
	Strategy     string    `json:"strategy"`
	Confidence   float64   `json:"confidence"`
	CacheEntryID string    `json:"cache_entry_id,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

func runCacheLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLogConfig(cmd, cfg)

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := store.New(database, logger.Logger).QueryByCategory(store.CategoryResolution, cacheLsLimit)
	if err != nil {
		return fmt.Errorf("failed to query resolution records: %w", err)
	}

	if display.ShouldOutputJSON(cmd) {
		out := make([]storedResolution, 0, len(records))
		for _, rec := range records {
			var res storedResolution
			if err := rec.Decode(&res); err != nil {
				return err
			}
			out = append(out, res)
		}
		return display.OutputJSON(out)
	}

	if len(records) == 0 {
		pterm.Info.Println("No resolutions recorded yet")
		return nil
	}

	rows := pterm.TableData{{"WHEN", "SOURCE", "TARGET", "STRATEGY", "CONF", "ENTRY"}}
	for _, rec := range records {
		var res storedResolution
		if err := rec.Decode(&res); err != nil {
			return err
		}
		entry := res.CacheEntryID
		if len(entry) > 8 {
			entry = entry[:8]
		}
		rows = append(rows, []string{
			res.ResolvedAt.Local().Format("2006-01-02 15:04:05"),
			res.SourceModule,
			res.TargetModule,
			sym.StrategyGlyph(res.Strategy) + " " + res.Strategy,
			fmt.Sprintf("%.2f", res.Confidence),
			entry,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	return nil
}
