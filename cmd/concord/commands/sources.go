package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/display"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/resolver"
	"github.com/teranos/concord/store"
	"github.com/teranos/concord/sym"
)

// SourcesCmd represents the sources command
var SourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: sym.Source + " Manage registered data sources",
	Long: sym.Source + ` sources — Manage registered data sources

Data sources are producers the resolver can suggest when asked where a
piece of data should come from. Registration is append-only; registering
an existing source id supersedes the earlier description.

Examples:
  concord sources register billing-api --description "Invoice and payment records" --capabilities invoices,payments
  concord sources register crm --description "Customer profiles" --meta region=eu
  concord sources find "customer payment history"
  concord sources ls`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var sourcesRegisterCmd = &cobra.Command{
	Use:   "register <source-id>",
	Short: "Register a data source for intent matching",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesRegister,
}

var sourcesFindCmd = &cobra.Command{
	Use:   "find <intent>...",
	Short: "Rank registered sources against a natural language intent",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSourcesFind,
}

var sourcesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered data sources",
	RunE:  runSourcesLs,
}

var (
	sourceDescription  string
	sourceCapabilities []string
	sourceMeta         map[string]string
	sourcesFindLimit   int
	sourcesLsLimit     int
)

func init() {
	SourcesCmd.AddCommand(sourcesRegisterCmd)
	SourcesCmd.AddCommand(sourcesFindCmd)
	SourcesCmd.AddCommand(sourcesLsCmd)

	sourcesRegisterCmd.Flags().StringVar(&sourceDescription, "description", "", "What the source provides")
	sourcesRegisterCmd.Flags().StringSliceVar(&sourceCapabilities, "capabilities", nil, "Capability keywords (comma separated)")
	sourcesRegisterCmd.Flags().StringToStringVar(&sourceMeta, "meta", nil, "Metadata key=value pairs")
	sourcesFindCmd.Flags().IntVar(&sourcesFindLimit, "limit", 10, "Maximum candidates to show")
	sourcesLsCmd.Flags().IntVar(&sourcesLsLimit, "limit", 0, "Maximum sources to show (0 = all)")
}

func runSourcesRegister(cmd *cobra.Command, args []string) error {
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

	src := store.DataSource{
		SourceID:     args[0],
		Description:  sourceDescription,
		Capabilities: sourceCapabilities,
	}
	if len(sourceMeta) > 0 {
		src.Metadata = make(map[string]any, len(sourceMeta))
		for k, v := range sourceMeta {
			src.Metadata[k] = v
		}
	}

	recordID, err := store.New(database, logger.Logger).RegisterDataSource(src)
	if err != nil {
		return fmt.Errorf("failed to register data source: %w", err)
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]any{
			"source_id": src.SourceID,
			"record_id": recordID,
		})
	}

	pterm.Success.Printf("%s Registered data source %s\n", sym.Source, src.SourceID)
	return nil
}

func runSourcesFind(cmd *cobra.Command, args []string) error {
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

	intent := strings.Join(args, " ")
	candidates := r.FindCandidateSources(cmd.Context(), intent, sourcesFindLimit)

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(candidates)
	}

	if len(candidates) == 0 {
		pterm.Info.Printf("No sources matched %q\n", intent)
		return nil
	}

	rows := pterm.TableData{{"SOURCE", "RELEVANCE", "METADATA"}}
	for _, c := range candidates {
		rows = append(rows, []string{
			c.SourceID,
			fmt.Sprintf("%.2f", c.Relevance),
			formatMetadata(c.Metadata),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	return nil
}

func runSourcesLs(cmd *cobra.Command, args []string) error {
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

	sources, err := store.New(database, logger.Logger).DataSources(sourcesLsLimit)
	if err != nil {
		return fmt.Errorf("failed to load data sources: %w", err)
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(sources)
	}

	if len(sources) == 0 {
		pterm.Info.Println("No data sources registered yet")
		return nil
	}

	rows := pterm.TableData{{"SOURCE", "DESCRIPTION", "CAPABILITIES"}}
	for _, src := range sources {
		rows = append(rows, []string{
			src.SourceID,
			src.Description,
			strings.Join(src.Capabilities, ", "),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	return nil
}

// formatMetadata flattens a metadata map to sorted "k=v" pairs for table cells.
func formatMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(meta))
	for k, v := range meta {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}
