package commands

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/teranos/concord/ai/tracker"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/errors"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/store"
	"github.com/teranos/concord/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage Concord database",
	Long: sym.DB + ` db — Manage Concord database operations

Manage database operations including record statistics, session counts,
and oracle usage telemetry.

Examples:
  concord db stats                # Show database statistics and oracle usage
  concord db stats --days 7       # Limit the usage window to the last week`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics and oracle usage",
	Long:  "Display database statistics including durable record counts, debug session totals, and oracle usage telemetry",
	RunE:  runDbStats,
}

var statsDaysFlag int

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	dbStatsCmd.Flags().IntVar(&statsDaysFlag, "days", 30, "Oracle usage window in days")
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyLogConfig(cmd, cfg)

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
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

	var sessionCount int
	err = database.QueryRow(`SELECT COUNT(*) FROM debug_sessions`).Scan(&sessionCount)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to count debug sessions: %w", err)
	}

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:  %s\n", cfg.GetStoragePath())
	fmt.Printf("Resolutions:    %d\n", resolutions)
	fmt.Printf("Tombstones:     %d\n", tombstones)
	fmt.Printf("Data Sources:   %d\n", sources)
	fmt.Printf("Debug Sessions: %d\n", sessionCount)
	fmt.Println()

	since := time.Now().AddDate(0, 0, -statsDaysFlag)
	usage := tracker.NewUsageTracker(database)

	stats, err := usage.GetUsageStats(since)
	if err != nil {
		return fmt.Errorf("failed to query oracle usage: %w", err)
	}

	fmt.Printf("Oracle Usage (last %d days):\n", statsDaysFlag)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	if stats.TotalRequests == 0 {
		fmt.Println("  No oracle calls recorded yet")
		return nil
	}

	fmt.Printf("  Requests:     %d (%.1f%% succeeded)\n", stats.TotalRequests, stats.SuccessRate*100)
	fmt.Printf("  Tokens:       %d\n", stats.TotalTokens)
	fmt.Printf("  Cost:         $%.4f\n", stats.TotalCost)
	fmt.Printf("  Models Used:  %d\n", stats.UniqueModels)
	fmt.Println()

	breakdown, err := usage.GetModelBreakdown(since)
	if err != nil {
		return fmt.Errorf("failed to query model breakdown: %w", err)
	}
	if len(breakdown) > 0 {
		fmt.Printf("Per Model:\n")
		for _, m := range breakdown {
			line := fmt.Sprintf("  %s/%s: %d requests, %d tokens, $%.4f",
				m.ModelProvider, m.ModelName, m.RequestCount, m.TotalTokens, m.TotalCost)
			if m.AvgResponseTimeMs != nil {
				line += fmt.Sprintf(", avg %.0fms", *m.AvgResponseTimeMs)
			}
			fmt.Println(line)
		}
	}

	return nil
}
