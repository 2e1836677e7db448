package common

import (
	"context"

	"cvinsight/internal/errors"
)

// OperationFunc turns the contents of the command's input file into the value to print.
type OperationFunc[Output any] func(ctx context.Context, filename string, content []byte) (Output, error)

// RunFileCommand encapsulates the common logic for file-based CLI commands:
// validate and read the input, run the operation, format and write the result.
func RunFileCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	filename string,
	operation OperationFunc[Output],
) error {
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)

	if err := fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	contents, err := fileProcessor.ValidateAndReadFiles(filename)
	if err != nil {
		return err
	}

	result, err := operation(ctx, filename, contents[0])
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
