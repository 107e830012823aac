// Package sym defines canonical symbols for concord operations and system markers.
// These symbols are stable across CLI output, logs, and documentation.
//
// The registry in this file is the source of truth for which symbols exist;
// lookup tables and palette ordering are derived from it at init time.
package sym

// Symbol identifies a registered glyph.
type Symbol int

const (
	SymbolUnspecified Symbol = iota
	SymbolResolve
	SymbolCache
	SymbolSource
	SymbolConfig
	SymbolTrace
	SymbolWatch
	SymbolMapping
	SymbolPattern
	SymbolOracle
	SymbolDB
	SymbolWatchOpen
	SymbolWatchClose
)

// SymbolCategory groups symbols by role.
type SymbolCategory int

const (
	CategoryUnspecified SymbolCategory = iota
	// CategoryPrimary symbols front a CLI command.
	CategoryPrimary
	// CategoryStrategy symbols mark resolution strategies in output.
	CategoryStrategy
	// CategorySystem symbols mark infrastructure, not commands.
	CategorySystem
)

// Glyph string constants — the visual expression of each symbol.
//
// Primary operators — have CLI commands.
const (
	Resolve = "⇌" // resolve — run the resolution pipeline between two modules
	Cache   = "⟲" // cache — semantic cache inspection and maintenance
	Source  = "⊚" // sources — data source registry and discovery
	Config  = "≡" // config — configuration and system settings
	Trace   = "∿" // sessions — resolution telemetry traces
	Watch   = "꩜" // watch — cache purge ticker and mapping rules watcher
)

// Strategy markers — structural, shown next to strategy names in output.
// Ordered by dispatch priority: mappings first, cached patterns second,
// the oracle last.
const (
	Mapping = "↦" // explicit mapping rules
	Pattern = "≈" // cached pattern replay
	Oracle  = "✶" // AI oracle fallback
)

// System infrastructure symbols.
const (
	DB         = "⊔" // database/storage layer
	WatchOpen  = "✿" // graceful daemon startup
	WatchClose = "❀" // graceful daemon shutdown with final purge
)

// entry binds a Symbol to its glyph, command, and description.
type entry struct {
	symbol      Symbol
	glyph       string
	command     string
	label       string
	description string
	category    SymbolCategory
	palette     int // 1-based position in PaletteOrder, 0 = not in palette
}

// registry is the canonical mapping between Symbol values and symbol metadata.
var registry = []entry{
	{SymbolResolve, Resolve, "resolve", "Resolve", "Run the resolution pipeline between two modules", CategoryPrimary, 1},
	{SymbolCache, Cache, "cache", "Cache", "Semantic cache inspection and maintenance", CategoryPrimary, 2},
	{SymbolSource, Source, "sources", "Sources", "Data source registry and discovery", CategoryPrimary, 3},
	{SymbolConfig, Config, "config", "Configuration", "System settings and state", CategoryPrimary, 4},
	{SymbolTrace, Trace, "sessions", "Sessions", "Resolution telemetry traces", CategoryPrimary, 5},
	{SymbolWatch, Watch, "watch", "Watch", "Cache purge ticker and rules watcher daemon", CategoryPrimary, 6},
	{SymbolMapping, Mapping, "", "Mapping", "Explicit mapping rules", CategoryStrategy, 0},
	{SymbolPattern, Pattern, "", "Pattern", "Cached pattern replay", CategoryStrategy, 0},
	{SymbolOracle, Oracle, "", "Oracle", "AI oracle fallback", CategoryStrategy, 0},
	{SymbolDB, DB, "", "", "Database/storage layer", CategorySystem, 0},
	{SymbolWatchOpen, WatchOpen, "", "", "Graceful daemon startup", CategorySystem, 0},
	{SymbolWatchClose, WatchClose, "", "", "Graceful daemon shutdown with final purge", CategorySystem, 0},
}

// Lookup tables built from the registry at init time.
var (
	glyphToSymbol map[string]Symbol
	symbolToGlyph map[Symbol]string
)

func init() {
	glyphToSymbol = make(map[string]Symbol, len(registry))
	symbolToGlyph = make(map[Symbol]string, len(registry))
	for _, e := range registry {
		glyphToSymbol[e.glyph] = e.symbol
		symbolToGlyph[e.symbol] = e.glyph
	}
}

// Glyph returns the Unicode glyph string for a Symbol value.
func Glyph(s Symbol) string {
	return symbolToGlyph[s]
}

// FromGlyph returns the Symbol value for a Unicode glyph string.
func FromGlyph(glyph string) Symbol {
	if s, ok := glyphToSymbol[glyph]; ok {
		return s
	}
	return SymbolUnspecified
}

// PaletteOrder defines the canonical ordering for banners, help output,
// and status displays. Only includes primary operators.
var PaletteOrder = []string{Resolve, Cache, Source, Config, Trace, Watch}

// Commands lists the primary operator commands in palette order.
var Commands = []string{"resolve", "cache", "sources", "config", "sessions", "watch"}

// SymbolToCommand maps glyph strings to their text command equivalents.
var SymbolToCommand = map[string]string{
	Resolve: "resolve",
	Cache:   "cache",
	Source:  "sources",
	Config:  "config",
	Trace:   "sessions",
	Watch:   "watch",
}

// CommandToSymbol maps text commands to their canonical glyph strings.
var CommandToSymbol = map[string]string{
	"resolve":  Resolve,
	"cache":    Cache,
	"sources":  Source,
	"config":   Config,
	"sessions": Trace,
	"watch":    Watch,
}

// CommandDescriptions provides human-readable explanations for help and tooltips.
var CommandDescriptions = map[string]string{
	"resolve":  "Resolve — Run the resolution pipeline between two modules",
	"cache":    "Cache — Semantic cache inspection and maintenance",
	"sources":  "Sources — Data source registry and discovery",
	"config":   "Configuration — System settings and state",
	"sessions": "Sessions — Resolution telemetry traces",
	"watch":    "Watch — Cache purge ticker and rules watcher daemon",
}

// StrategyGlyphs maps resolution strategy names to their display glyphs.
var StrategyGlyphs = map[string]string{
	"explicit_mapping": Mapping,
	"pattern_matching": Pattern,
	"oracle_fallback":  Oracle,
}

// StrategyGlyph returns the glyph for a strategy name. Unknown names get a
// neutral dot so tabular output keeps its alignment.
func StrategyGlyph(name string) string {
	if g, ok := StrategyGlyphs[name]; ok {
		return g
	}
	return "·"
}
