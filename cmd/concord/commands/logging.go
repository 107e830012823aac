package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/concord/config"
	"github.com/teranos/concord/logger"
)

// applyLogConfig re-initializes logging from loaded configuration. The
// persistent pre-run set up console logging before config was available;
// config can switch output to JSON and pick a color theme. The
// CONCORD_LOG_THEME environment variable wins over the config theme.
func applyLogConfig(cmd *cobra.Command, cfg *config.Config) {
	verbosity, _ := cmd.Flags().GetCount("verbose")

	if cfg.Log.JSON {
		if err := logger.InitializeWithLevel(true, logger.VerbosityToLevel(verbosity)); err != nil {
			logger.Warnw("Failed to switch logger to JSON output", "error", err)
		}
		return
	}

	if os.Getenv("CONCORD_LOG_THEME") == "" {
		logger.SetTheme(cfg.GetLogTheme())
	}
}
