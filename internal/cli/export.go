package cli

import (
	"fmt"
	"path/filepath"

	"cvinsight/internal/common"
	"cvinsight/internal/export"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [report.json]",
	Short: "Write the JSON and/or PDF export of a saved report",
	Long: `Write the exports the report page offers for a saved report, candidate
export or backend response.

--json writes <name>.json with the normalized candidate; --pdf renders the
report in headless Chrome and writes <name>.pdf. Without either flag only the
JSON export is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportJSON bool
	exportPDF  bool
	exportDir  string
)

func init() {
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "Write the JSON export")
	exportCmd.Flags().BoolVar(&exportPDF, "pdf", false, "Write the PDF snapshot")
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", "", "Output directory (default: app.outputDir)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	fp := common.NewFileProcessor(logger)

	dir := exportDir
	if dir == "" {
		dir = cfg.App.OutputDir
	}
	if !exportJSON && !exportPDF {
		exportJSON = true
	}

	contents, err := fp.ValidateAndReadFiles(args[0])
	if err != nil {
		return err
	}
	report, err := loadReport(contents[0], filepath.Base(args[0]), cfg.Backend.LegacyUnwrap)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if exportJSON {
		data, err := export.JSON(report.Candidate)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, export.JSONFilename(report.Candidate))
		if err := fp.WriteFile(path, data); err != nil {
			return err
		}
		fmt.Fprintln(out, path)
	}

	if exportPDF {
		data, err := export.NewSnapshotter(cfg.Export.Snapshot).Snapshot(cmd.Context(), report)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, export.PDFFilename(report.Candidate))
		if err := fp.WriteFile(path, data); err != nil {
			return err
		}
		fmt.Fprintln(out, path)
	}

	logger.Info("Export completed", "report_id", report.ID, "json", exportJSON, "pdf", exportPDF)
	return nil
}
