// Package cli implements formctl, the operator tool for checking field lists
// and converting record dumps offline.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// Exit codes for formctl commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The input was read but rejected (schema or record errors)
	ExitCommandError = 2 // Command error (missing files, bad flags)
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError count as ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the formctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "formctl",
		Short: "Inspect FormHub field lists and export record dumps",
		Long: `formctl works on files, not on a running server.

It compiles a form's field list (YAML or JSON) to the storage schema the
server would use, and converts a JSON dump of records into any export
format, validating every record on the way.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output on stderr")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

func (o *RootOptions) logf(cmd *cobra.Command, format string, args ...any) {
	if o.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}
