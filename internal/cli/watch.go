package cli

import (
	"fmt"
	"strings"

	"cvinsight/internal/errors"
	"cvinsight/internal/export"
	"cvinsight/internal/watch"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Analyze every resume PDF dropped into an inbox directory",
	Long: `Watch an inbox directory and analyze each PDF that appears in it, one at a
time, with the configured backend credential (backend.apiKey).

For every file the JSON export, and with --pdf the PDF snapshot, is written to
the outbox directory. PDFs already in the inbox at startup are processed too.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("inbox", "", "Directory to watch (default from config)")
	watchCmd.Flags().String("outbox", "", "Directory for exports (default from config)")
	watchCmd.Flags().Bool("pdf", false, "Also write PDF snapshots")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	overrideString(cmd, "inbox", &cfg.Watch.Inbox)
	overrideString(cmd, "outbox", &cfg.Watch.Outbox)
	if cmd.Flags().Changed("pdf") {
		cfg.Watch.ExportPDF, _ = cmd.Flags().GetBool("pdf")
	}

	if strings.TrimSpace(cfg.Backend.APIKey) == "" {
		return errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"watch needs backend.apiKey (CVINSIGHT_BACKEND_APIKEY or Vault)", nil)
	}

	comps, err := newComponents(cmd.Context(), cfg, logger, componentOptions{telemetry: true})
	if err != nil {
		return err
	}
	defer comps.Close()

	pipeline := &watch.Pipeline{
		Controller: comps.controller,
		APIKey:     cfg.Backend.APIKey,
		Outbox:     cfg.Watch.Outbox,
		Logger:     logger,
	}
	if cfg.Watch.ExportPDF {
		pipeline.Renderer = export.NewSnapshotter(cfg.Export.Snapshot)
	}

	watcher := watch.NewInboxWatcher(cfg.Watch.Inbox, cfg.Watch.Debounce, pipeline.Process, logger)
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, writing exports to %s\n", cfg.Watch.Inbox, cfg.Watch.Outbox)
	return watcher.Run(cmd.Context())
}
