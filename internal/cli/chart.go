package cli

import (
	"context"
	"path/filepath"

	"cvinsight/internal/common"
	"cvinsight/internal/types"

	"github.com/spf13/cobra"
)

var chartCmd = &cobra.Command{
	Use:   "chart [report-or-response.json]",
	Short: "Print the experience chart slices of a report",
	Long: `Print the experience distribution used by the report's donut chart as JSON.

Each slice has a label, a value in months (missing or zero durations count
as 1), the index of the job it belongs to and its color.`,
	Args: cobra.ExactArgs(1),
	RunE: runChart,
}

var chartOutput string

func init() {
	chartCmd.Flags().StringVarP(&chartOutput, "output", "o", "", "Output file path (default: stdout)")
}

func runChart(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	return common.RunFileCommand(cmd.Context(), logger,
		common.CommandConfig{OutputFile: chartOutput, OutputFormat: "json"}, args[0],
		func(ctx context.Context, filename string, content []byte) ([]types.ChartSlice, error) {
			report, err := loadReport(content, filepath.Base(filename), cfg.Backend.LegacyUnwrap)
			if err != nil {
				return nil, err
			}
			return report.Chart, nil
		})
}
