package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/display"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/monitor"
	"github.com/teranos/concord/sym"
)

// SessionsCmd represents the sessions command
var SessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: sym.Trace + " Inspect recorded resolution sessions",
	Long: sym.Trace + ` sessions — Inspect recorded resolution sessions

Every resolution opens a debug session and records staged events against
it: descriptor extraction, cache probe, strategy dispatch, persistence.
Without arguments the most recent sessions are listed; show replays one
session's events in order.

Examples:
  concord sessions                # Most recent sessions
  concord sessions --limit 50
  concord sessions show 4cc5ddbe-70f2-4e5f-8d51-fd4a46f4a0c8`,
	RunE: runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Replay one session's events in order",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsLimit int

func init() {
	SessionsCmd.AddCommand(sessionsShowCmd)
	SessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Number of sessions to show")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
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

	sessions, err := monitor.NewSQLiteRecorder(database, logger.Logger).RecentSessions(sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to query sessions: %w", err)
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(sessions)
	}

	if len(sessions) == 0 {
		pterm.Info.Println("No sessions recorded yet")
		return nil
	}

	rows := pterm.TableData{{"WHEN", "OPERATION", "TYPES", "STRATEGY", "OK", "TOOK", "SESSION"}}
	for _, s := range sessions {
		rows = append(rows, []string{
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Operation,
			s.SourceType + " " + sym.Resolve + " " + s.TargetType,
			formatSessionStrategy(s.StrategyUsed),
			formatSessionOutcome(s.Success),
			formatSessionDuration(s),
			s.ID[:8],
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
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

	events, err := monitor.NewSQLiteRecorder(database, logger.Logger).SessionEvents(args[0])
	if err != nil {
		return fmt.Errorf("failed to query session events: %w", err)
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(events)
	}

	if len(events) == 0 {
		pterm.Info.Printf("No events for session %s\n", args[0])
		return nil
	}

	fmt.Printf("%s Session %s\n", sym.Trace, args[0])
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	for _, e := range events {
		line := fmt.Sprintf("  [%s] %s/%s: %s",
			e.CreatedAt.Local().Format("15:04:05"), e.Stage, e.Level, e.Message)
		if len(e.Data) > 0 {
			if data, err := json.Marshal(e.Data); err == nil {
				line += " " + string(data)
			}
		}
		fmt.Println(line)
	}
	return nil
}

func formatSessionStrategy(strategy *string) string {
	if strategy == nil || *strategy == "" {
		return "-"
	}
	return sym.StrategyGlyph(*strategy) + " " + *strategy
}

func formatSessionOutcome(success *bool) string {
	switch {
	case success == nil:
		return "-"
	case *success:
		return "✓"
	default:
		return "✗"
	}
}

func formatSessionDuration(s monitor.Session) string {
	if s.EndedAt == nil {
		return "-"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
}
