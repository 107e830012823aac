package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: resolution results, errors with hints, final status
//	1 (-v)      - + Progress, startup info, strategy status, operation summaries
//	2 (-vv)     - + Cache lookup details, timing, config loaded, oracle HTTP requests
//	3 (-vvv)    - + Rule reloads, SQL queries, internal flow
//	4 (-vvvv)   - + Full oracle request/response bodies, data structure dumps

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Resolution results, command output
	OutputErrors                           // Errors with hints and resolution steps
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress       // Progress indicators (e.g., "Scoring 50/100 entries")
	OutputStartup        // Startup banners, config summary
	OutputStrategyStatus // Strategy registered/selected/forced status
	OutputOperationInfo  // High-level operation summaries

	// Level 2 (-vv) - Detailed
	OutputCacheLookups // Cache key derivation and similarity scoring details
	OutputTiming       // Operation timing (e.g., "resolution took 42ms")
	OutputConfig       // Config values loaded/applied
	OutputOracleCalls  // External oracle HTTP requests made
	OutputDBStats      // Database statistics and connection info

	// Level 3 (-vvv) - Debug
	OutputRuleReloads // Mapping rules file reload events
	OutputSQLQueries  // Individual SQL queries executed
	OutputInternalOp  // Internal operation flow (function entry/exit)

	// Level 4 (-vvvv) - Full dump
	OutputRequestBody  // Full oracle request bodies
	OutputResponseBody // Full oracle response bodies
	OutputDataDump     // Full data structure contents
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	// Level 0 - Always shown
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	// Level 1 - Informational
	OutputProgress:       VerbosityInfo,
	OutputStartup:        VerbosityInfo,
	OutputStrategyStatus: VerbosityInfo,
	OutputOperationInfo:  VerbosityInfo,

	// Level 2 - Detailed
	OutputCacheLookups: VerbosityDebug,
	OutputTiming:       VerbosityDebug,
	OutputConfig:       VerbosityDebug,
	OutputOracleCalls:  VerbosityDebug,
	OutputDBStats:      VerbosityDebug,

	// Level 3 - Debug
	OutputRuleReloads: VerbosityTrace,
	OutputSQLQueries:  VerbosityTrace,
	OutputInternalOp:  VerbosityTrace,

	// Level 4 - Full dump
	OutputRequestBody:  VerbosityAll,
	OutputResponseBody: VerbosityAll,
	OutputDataDump:     VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:        "results",
	OutputErrors:         "errors",
	OutputUserStatus:     "status",
	OutputProgress:       "progress",
	OutputStartup:        "startup",
	OutputStrategyStatus: "strategy-status",
	OutputOperationInfo:  "operation-info",
	OutputCacheLookups:   "cache-lookups",
	OutputTiming:         "timing",
	OutputConfig:         "config",
	OutputOracleCalls:    "oracle-http",
	OutputDBStats:        "db-stats",
	OutputRuleReloads:    "rule-reloads",
	OutputSQLQueries:     "sql",
	OutputInternalOp:     "internal",
	OutputRequestBody:    "request-body",
	OutputResponseBody:   "response-body",
	OutputDataDump:       "data-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// EnabledCategories returns all output categories enabled at the given verbosity
func EnabledCategories(verbosity int) []OutputCategory {
	var enabled []OutputCategory
	for cat, minLevel := range categoryLevels {
		if verbosity >= minLevel {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, and status"
	case VerbosityDebug:
		return "above + cache lookups, timing, config details"
	case VerbosityTrace:
		return "above + rule reloads, SQL, internal flow"
	case VerbosityAll:
		return "full output including oracle request/response bodies"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}
