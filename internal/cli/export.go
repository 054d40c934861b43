package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	recordstore "github.com/dalemusser/formhub/internal/app/store/records"
	"github.com/dalemusser/formhub/internal/app/store/substrate"
	"github.com/dalemusser/formhub/internal/app/system/export"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Fields  string
	Records string
	Format  string
	Output  string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Validate a JSON record dump and write it in an export format",
		Long: `Read a field list and a JSON array of record payloads, validate every
payload against the compiled schema exactly as the server does on create,
and write the records in the requested export format.

Formats: csv, html, rtf, txt, xlsx, json.

Exit codes:
  0 - every record was valid and written
  1 - field list or a record was rejected
  2 - command error (missing file, bad flag)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Fields, "fields", "", "field list file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.Records, "records", "", "JSON file holding an array of record payloads")
	cmd.Flags().StringVar(&opts.Format, "format", string(export.CSV), "export format")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("fields")
	_ = cmd.MarkFlagRequired("records")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "format", Err: err}
	}

	fields, err := readFields(opts.Fields)
	if err != nil {
		return err
	}
	payloads, err := readPayloads(opts.Records)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.Verbose {
		if l, lerr := zap.NewDevelopment(); lerr == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	var buf bytes.Buffer
	if err := exportRecords(cmd.Context(), logger, fields, payloads, format, &buf); err != nil {
		return err
	}
	opts.logf(cmd, "exported %d records as %s", len(payloads), format)

	if opts.Output == "" {
		_, err := io.Copy(cmd.OutOrStdout(), &buf)
		return err
	}
	if err := os.WriteFile(opts.Output, buf.Bytes(), 0o644); err != nil {
		return &ExitError{Code: ExitCommandError, Message: "write output", Err: err}
	}
	return nil
}

// exportRecords binds the field list to an in-memory collection, inserts
// every payload through the record store and encodes the result.
func exportRecords(ctx context.Context, logger *zap.Logger, fields []models.Field, payloads []map[string]any, format export.Format, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	desc, mutable, err := formsvc.Compile(fields)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "compile field list", Err: err}
	}

	reg := registry.New(substrate.NewMemory(), logger)
	b, err := reg.Bind(ctx, primitive.NewObjectID(), 1, desc, mutable)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "bind schema", Err: err}
	}
	defer func() { _ = reg.Release(ctx, b.FormID) }()

	store := recordstore.New()
	for i, p := range payloads {
		if _, err := store.Create(ctx, b, p); err != nil {
			return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("record %d", i+1), Err: err}
		}
	}

	recs, err := store.Collect(ctx, b)
	if err != nil {
		return err
	}
	return export.Encode(w, format, desc.Names(), recs)
}

// readPayloads loads a JSON array of objects. Numbers are kept as
// json.Number so text fields receive them verbatim.
func readPayloads(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "read records", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out []map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: "parse records", Err: err}
	}
	return out, nil
}
