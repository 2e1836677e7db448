package cli

import (
	"context"
	"path/filepath"

	"cvinsight/internal/common"
	"cvinsight/internal/types"

	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [backend-response.json]",
	Short: "Normalize a saved backend response without calling the service",
	Long: `Unwrap and normalize a response body saved from the analysis service.

The envelope, the double-encoded result and the raw_output variants are all
accepted, exactly as they are when the service is called directly.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		format, err := common.ResolveFormat(normalizeConfig.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
		normalizeConfig.OutputFormat = format
		return err
	},
	RunE: runNormalize,
}

var normalizeConfig common.CommandConfig

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	normalizeCmd.Flags().StringVar(&normalizeConfig.OutputFormat, "format", "", "Output format: json, text, markdown or html")
	_ = normalizeCmd.RegisterFlagCompletionFunc("format", completeFormats)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	return common.RunFileCommand(cmd.Context(), logger, normalizeConfig, args[0],
		func(ctx context.Context, filename string, content []byte) (*types.Report, error) {
			report, err := loadReport(content, filepath.Base(filename), cfg.Backend.LegacyUnwrap)
			if err != nil {
				return nil, err
			}
			logger.Debug("Normalized backend response",
				"file", filename,
				"jobs", len(report.Candidate.Employment),
				"chart_slices", len(report.Chart))
			return report, nil
		})
}
