package cli

import (
	"fmt"

	"cvinsight/internal/common"
	"cvinsight/internal/errors"
	"cvinsight/internal/schemas"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [report.json]",
	Short: "Check a report or candidate export against its JSON schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := getLoggerFromContext(cmd.Context())

	contents, err := common.NewFileProcessor(logger).ValidateAndReadFiles(args[0])
	if err != nil {
		return err
	}

	kind, err := schemas.Validate(contents[0])
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeSchemaViolation,
			fmt.Sprintf("%s is not a valid document", args[0]), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid %s\n", args[0], kind)
	return nil
}
