package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/schema"
	"github.com/spf13/cobra"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Format string
}

// compileOutput is the JSON shape printed by compile --format json.
type compileOutput struct {
	Fields  []schema.Entry `json:"fields"`
	Mutable []string       `json:"mutable"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <fields.yaml|fields.json>",
		Short: "Compile a field list to its storage schema",
		Long: `Compile a form's field list and print the storage schema the server
would bind for it: one entry per stored field with its value type,
whether it is required, and its allowed values.

Display-only fields (header, paragraph) produce no entry.

Exit codes:
  0 - field list compiles
  1 - field list was rejected
  2 - command error (missing file, bad flag)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format: text or json")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, path string) error {
	if opts.Format != "text" && opts.Format != "json" {
		return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("unknown format %q", opts.Format)}
	}

	fields, err := readFields(path)
	if err != nil {
		return err
	}
	opts.logf(cmd, "read %d fields from %s", len(fields), path)

	desc, mutable, err := formsvc.Compile(fields)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "compile " + path, Err: err}
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeCompileJSON(out, desc, mutable)
	}
	return writeCompileText(out, desc, mutable)
}

func writeCompileJSON(w io.Writer, desc schema.Descriptor, mutable schema.MutableSet) error {
	out := compileOutput{Fields: desc.Entries, Mutable: mutableNames(desc, mutable)}
	if out.Fields == nil {
		out.Fields = []schema.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeCompileText(w io.Writer, desc schema.Descriptor, mutable schema.MutableSet) error {
	if desc.Len() == 0 {
		_, err := fmt.Fprintln(w, "no stored fields")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tREQUIRED\tMUTABLE\tALLOWED")
	for _, e := range desc.Entries {
		allowed := "-"
		if e.Enumerated() {
			allowed = strings.Join(e.AllowedValues, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n", e.Name, e.ValueType, e.Required, mutable.Has(e.Name), allowed)
	}
	return tw.Flush()
}

// mutableNames returns the mutable fields in declaration order.
func mutableNames(desc schema.Descriptor, mutable schema.MutableSet) []string {
	names := []string{}
	for _, n := range desc.Names() {
		if mutable.Has(n) {
			names = append(names, n)
		}
	}
	return names
}
