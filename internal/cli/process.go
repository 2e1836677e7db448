package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"cvinsight/internal/common"
	"cvinsight/internal/export"
	"cvinsight/internal/session"
	"cvinsight/internal/types"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process [resume.pdf]",
	Short: "Analyze a resume PDF and print the report",
	Long: `Upload a resume PDF to the analysis service and print the normalized report.

The OpenAI API key is taken from --api-key, falling back to backend.apiKey
(config file, CVINSIGHT_BACKEND_APIKEY or Vault). Use --pdf to also write a
PDF snapshot of the rendered report.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		format, err := common.ResolveFormat(processConfig.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
		processConfig.OutputFormat = format
		return err
	},
	RunE: runProcess,
}

var (
	processConfig common.CommandConfig
	processAPIKey string
	processPDF    string
)

func init() {
	processCmd.Flags().StringVarP(&processConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().StringVar(&processConfig.OutputFormat, "format", "", "Output format: json, text, markdown or html")
	processCmd.Flags().StringVar(&processAPIKey, "api-key", "", "OpenAI API key sent to the analysis service")
	processCmd.Flags().StringVar(&processPDF, "pdf", "", "Also write a PDF snapshot of the report to this file")

	_ = processCmd.RegisterFlagCompletionFunc("format", completeFormats)
}

func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg := getConfigFromContext(cmd.Context())
	return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	apiKey := processAPIKey
	if strings.TrimSpace(apiKey) == "" {
		apiKey = cfg.Backend.APIKey
	}

	comps, err := newComponents(cmd.Context(), cfg, logger, componentOptions{})
	if err != nil {
		return err
	}
	defer comps.Close()

	analyze := func(ctx context.Context, filename string, content []byte) (*types.Report, error) {
		report, err := comps.controller.Submit(ctx, "cli", session.Submission{
			Filename: filepath.Base(filename),
			Content:  content,
			APIKey:   apiKey,
		})
		if err != nil {
			return nil, err
		}

		if processPDF != "" {
			data, err := export.NewSnapshotter(cfg.Export.Snapshot).Snapshot(ctx, report)
			if err != nil {
				return nil, err
			}
			if err := common.NewFileProcessor(logger).WriteFile(processPDF, data); err != nil {
				return nil, err
			}
			logger.Info("PDF snapshot written", "file", processPDF)
		}
		return report, nil
	}

	if err := common.RunFileCommand(cmd.Context(), logger, processConfig, args[0], analyze); err != nil {
		return fmt.Errorf("failed to process resume: %w", err)
	}
	logger.Info("Resume processing completed successfully")
	return nil
}
