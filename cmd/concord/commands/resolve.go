package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/concord/cache"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/display"
	"github.com/teranos/concord/internal/util"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/resolution"
	"github.com/teranos/concord/resolver"
	"github.com/teranos/concord/sym"
)

// ResolveCmd represents the resolve command
var ResolveCmd = &cobra.Command{
	Use:   "resolve <source-module> <source-data> <target-module> <target-data>",
	Short: sym.Resolve + " Resolve a semantic conflict between two module payloads",
	Long: sym.Resolve + ` resolve — Resolve a semantic conflict between two module payloads

Builds ephemeral descriptors from both payloads, probes the semantic cache,
and dispatches through the strategy chain: explicit mapping rules first,
cached pattern replay second, the AI oracle last. Successful resolutions
are cached under a semantic fingerprint and recorded in the durable store.

Data arguments are JSON; an argument that does not parse as JSON is treated
as a bare string value.

Batch mode resolves a JSON array of requests in one process, so later
requests that share a payload shape with earlier ones hit the cache.

Examples:
  concord resolve orders '{"total": 9.5, "currency": "EUR"}' billing '{"amount": 9.5}'
  concord resolve orders '{"total": 9.5}' billing '{}' --force-strategy oracle_fallback
  concord resolve orders '{"total": 9.5}' billing '{}' --no-cache
  concord resolve --batch requests.json --analyze`,
	Args: func(cmd *cobra.Command, args []string) error {
		if resolveBatchFile != "" {
			if len(args) != 0 {
				return fmt.Errorf("--batch takes no positional arguments")
			}
			return nil
		}
		return cobra.ExactArgs(4)(cmd, args)
	},
	RunE: runResolve,
}

var (
	resolveForceStrategy string
	resolveNoCache       bool
	resolveThreshold     float64
	resolveBatchFile     string
	resolveAnalyze       bool
)

func init() {
	ResolveCmd.Flags().StringVar(&resolveForceStrategy, "force-strategy", "", "Dispatch through a single strategy (explicit_mapping, pattern_matching, oracle_fallback)")
	ResolveCmd.Flags().BoolVar(&resolveNoCache, "no-cache", false, "Do not cache the result")
	ResolveCmd.Flags().Float64Var(&resolveThreshold, "threshold", 0, "Cache probe similarity threshold (0 = configured default)")
	ResolveCmd.Flags().StringVar(&resolveBatchFile, "batch", "", "Resolve a JSON array of requests from a file")
	ResolveCmd.Flags().BoolVar(&resolveAnalyze, "analyze", false, "Run cache usage analysis after a batch")
}

func runResolve(cmd *cobra.Command, args []string) error {
	useJSON := display.ShouldOutputJSON(cmd)
	verbosity, _ := cmd.Flags().GetCount("verbose")

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

	r, err := resolver.New(database, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to build resolver: %w", err)
	}

	opts := &resolver.Options{
		ForceStrategy:  resolveForceStrategy,
		CacheThreshold: resolveThreshold,
	}
	if resolveNoCache {
		opts.CacheResults = util.Ptr(false)
	}

	if resolveBatchFile != "" {
		return runResolveBatch(cmd.Context(), r, opts, useJSON, verbosity)
	}

	sourceModule, targetModule := args[0], args[2]
	result := r.Resolve(cmd.Context(), sourceModule, parseDataArg(args[1]), targetModule, parseDataArg(args[3]), opts)

	if useJSON {
		if err := display.OutputJSON(result); err != nil {
			return err
		}
	} else {
		renderResult(result, sourceModule, targetModule, verbosity)
	}

	if !result.Success {
		// A failed resolution is an outcome, not a usage error
		cmd.SilenceUsage = true
		return fmt.Errorf("resolution failed (strategy %s)", result.StrategyUsed)
	}
	return nil
}

// parseDataArg decodes a JSON argument; anything that does not parse is
// kept as a bare string value.
func parseDataArg(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

func renderResult(result *resolution.Result, sourceModule, targetModule string, verbosity int) {
	glyph := sym.StrategyGlyph(result.StrategyUsed)

	pterm.Println()
	if result.Success {
		pterm.Success.Printf("Resolved %s %s %s via %s %s (confidence %.2f)\n",
			sourceModule, sym.Resolve, targetModule, glyph, result.StrategyUsed, result.Confidence)
	} else {
		pterm.Error.Printf("Resolution failed: %s %s %s (strategy %s)\n",
			sourceModule, sym.Resolve, targetModule, result.StrategyUsed)
	}

	if result.ResolvedData != nil {
		if data, err := json.MarshalIndent(result.ResolvedData, "", "  "); err == nil {
			pterm.Println()
			pterm.Println(string(data))
		}
	}

	printConflicts("Resolved conflicts", result.ResolvedConflicts)
	printConflicts("Unresolved conflicts", result.UnresolvedConflicts)

	if logger.ShouldOutput(verbosity, logger.OutputTiming) {
		pterm.Println()
		pterm.Printf("Took %dms\n", result.Metadata.ExecutionTimeMs)
	}
}

func printConflicts(label string, notes []resolution.ConflictNote) {
	if len(notes) == 0 {
		return
	}
	pterm.Println()
	pterm.Info.Printf("%s:\n", label)
	for _, n := range notes {
		line := n.Description
		if n.Field != "" {
			line = n.Field + ": " + line
		}
		if n.Type != "" {
			line = "[" + n.Type + "] " + line
		}
		if n.Resolution != "" {
			line += " -> " + n.Resolution
		}
		pterm.Printf("  %s\n", line)
	}
}

// batchRequest is one entry in a --batch file.
type batchRequest struct {
	SourceModule string `json:"source_module"`
	Source       any    `json:"source"`
	TargetModule string `json:"target_module"`
	Target       any    `json:"target"`
}

// batchOutcome pairs a request with its result for summary and JSON output.
type batchOutcome struct {
	Request   batchRequest       `json:"request"`
	Result    *resolution.Result `json:"result"`
	FromCache bool               `json:"from_cache"`
}

func runResolveBatch(ctx context.Context, r *resolver.Resolver, opts *resolver.Options, useJSON bool, verbosity int) error {
	raw, err := os.ReadFile(resolveBatchFile)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}
	var requests []batchRequest
	if err := json.Unmarshal(raw, &requests); err != nil {
		return fmt.Errorf("failed to parse batch file %s: %w", resolveBatchFile, err)
	}
	if len(requests) == 0 {
		return fmt.Errorf("batch file %s contains no requests", resolveBatchFile)
	}

	var spinner *pterm.SpinnerPrinter
	if !useJSON {
		pterm.DefaultHeader.WithFullWidth().Printf("Concord %s Batch Resolution", sym.Resolve)
		pterm.Println()
		spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("Resolving %d requests from %s...", len(requests), resolveBatchFile))
	}

	// The cache-probe marker only works while results are persisted: a
	// successful resolve that added no entry was answered from the cache.
	markCacheHits := opts.ForceStrategy == "" && (opts.CacheResults == nil || *opts.CacheResults)

	outcomes := make([]batchOutcome, 0, len(requests))
	succeeded, cacheHits := 0, 0
	for _, req := range requests {
		before := r.Cache().Stats().TotalEntries
		result := r.Resolve(ctx, req.SourceModule, req.Source, req.TargetModule, req.Target, opts)

		fromCache := markCacheHits && result.Success && r.Cache().Stats().TotalEntries == before
		if result.Success {
			succeeded++
		}
		if fromCache {
			cacheHits++
		}
		outcomes = append(outcomes, batchOutcome{Request: req, Result: result, FromCache: fromCache})
	}

	var analysis *cache.UsageAnalysis
	if resolveAnalyze {
		analysis = r.Cache().AnalyzeUsage(ctx)
	}

	if spinner != nil {
		spinner.Stop()
	}

	if useJSON {
		out := map[string]any{"outcomes": outcomes}
		if analysis != nil {
			out["analysis"] = analysis
		}
		return display.OutputJSON(out)
	}

	rows := pterm.TableData{{"", "SOURCE", "TARGET", "STRATEGY", "CONF", "CACHE"}}
	for _, o := range outcomes {
		status := "✓"
		if !o.Result.Success {
			status = "✗"
		}
		cacheMark := ""
		if o.FromCache {
			cacheMark = sym.Cache
		}
		rows = append(rows, []string{
			status,
			o.Request.SourceModule,
			o.Request.TargetModule,
			sym.StrategyGlyph(o.Result.StrategyUsed) + " " + o.Result.StrategyUsed,
			fmt.Sprintf("%.2f", o.Result.Confidence),
			cacheMark,
		})
	}
	pterm.Println()
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Println()

	if succeeded == len(outcomes) {
		pterm.Success.Printf("%d/%d resolved, %d answered from cache\n", succeeded, len(outcomes), cacheHits)
	} else {
		pterm.Warning.Printf("%d/%d resolved, %d answered from cache\n", succeeded, len(outcomes), cacheHits)
	}

	if analysis != nil {
		renderAnalysis(analysis)
	}
	return nil
}

func renderAnalysis(analysis *cache.UsageAnalysis) {
	pterm.Println()
	if analysis.InsightsFailed {
		pterm.Warning.Println("Usage analysis unavailable (oracle error)")
		return
	}
	if len(analysis.Patterns)+len(analysis.Insights)+len(analysis.Recommendations) == 0 {
		pterm.Info.Println("No usage patterns yet")
		return
	}

	printAnalysisList("Patterns", analysis.Patterns)
	printAnalysisList("Insights", analysis.Insights)
	printAnalysisList("Recommendations", analysis.Recommendations)
}

func printAnalysisList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	pterm.Info.Printf("%s:\n", label)
	for _, item := range items {
		pterm.Printf("  %s\n", item)
	}
	pterm.Println()
}
