package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
	"github.com/KaramelBytes/tabsight/internal/server"
	"github.com/KaramelBytes/tabsight/internal/utils"
)

// reportedError has already been written to stdout as an error document.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// fail prints the error document for cmd and returns an error that Execute
// turns into exit status 1 without printing again.
func fail(cmd *cobra.Command, e server.Echo, err error) error {
	if logger != nil {
		logger.Debug("command failed", zap.String("command", cmd.Name()), zap.Error(err))
	}
	b, merr := utils.PrettyJSON(server.ErrorDocument(cmd.Name(), e, err))
	if merr != nil {
		return merr
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return &reportedError{err}
}

// echoFrom derives the echoed context from positional arguments.
func echoFrom(cmd *cobra.Command, args []string) server.Echo {
	e := server.Echo{DatasetID: dsID}
	if len(args) > 0 {
		e.DatasetID = datasetID(args[0])
	}
	if len(args) > 1 {
		e.Column = args[1]
	}
	if cmd.Name() == server.OpInsights {
		e.UserID = insUserID
	}
	return e
}

// exactArgs is cobra.ExactArgs with the failure reported as an error document.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fail(cmd, echoFrom(cmd, args), err)
		}
		return nil
	}
}

// write sends data to --output or stdout.
func write(cmd *cobra.Command, data []byte) error {
	if outputPath != "" {
		if err := utils.SafeWriteFile(outputPath, data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", outputPath)
		return nil
	}
	_, err := cmd.OutOrStdout().Write(data)
	return err
}

// emit writes v as indented JSON.
func emit(cmd *cobra.Command, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	return write(cmd, append(b, '\n'))
}

// runFile loads the dataset named by args[0], calls fn with a runner built
// from pc and emits its result. Every failure becomes an error document.
func runFile(cmd *cobra.Command, args []string, pc pipeline.Config, fn func(r *pipeline.Runner, id string, ds *dataset.Dataset) (any, error)) error {
	e := echoFrom(cmd, args)
	ds, err := loadDataset(args[0])
	if err != nil {
		return fail(cmd, e, err)
	}
	out, err := fn(newRunner(pc), e.DatasetID, ds)
	if err != nil {
		return fail(cmd, e, err)
	}
	if err := emit(cmd, out); err != nil {
		return fail(cmd, e, err)
	}
	return nil
}
