// Package export encodes record sets into downloadable files.
//
// Every tabular format (csv, html, rtf, txt, xlsx) is rendered from the same
// Table, so column order and empty-cell handling are identical across them.
// Records carry only user-declared values; ids, the form reference and the
// version never appear in an export.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	HTML Format = "html"
	RTF  Format = "rtf"
	TXT  Format = "txt"
	XLSX Format = "xlsx"
	JSON Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{CSV, HTML, RTF, TXT, XLSX, JSON}

// ParseFormat returns the Format named s (case-insensitive) or an
// *apperr.ExportError.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", &apperr.ExportError{Format: s}
}

// ContentType returns the MIME type for f.
func ContentType(f Format) string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case HTML:
		return "text/html; charset=utf-8"
	case RTF:
		return "application/rtf"
	case TXT:
		return "text/plain; charset=utf-8"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case JSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// FileName builds the download name, e.g. "survey_v2.csv".
func FileName(formName string, version int, f Format) string {
	return fmt.Sprintf("%s_v%d.%s", formName, version, f)
}

// Table is the flat intermediate form shared by all tabular encoders.
// Cells hold the original Value so encoders that keep types (xlsx) can.
// A zero Value (empty Type) marks an absent cell.
type Table struct {
	Header []string
	Rows   [][]models.Value
}

// NewTable lays records out under columns, one row per record, in input
// order.
func NewTable(columns []string, records []models.Record) Table {
	t := Table{
		Header: append([]string(nil), columns...),
		Rows:   make([][]models.Value, 0, len(records)),
	}
	for _, r := range records {
		row := make([]models.Value, len(columns))
		for i, c := range columns {
			if v, ok := r.Values[c]; ok {
				row[i] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// cell renders a table cell as text; absent cells are "".
func cell(v models.Value) string {
	if v.Type == "" {
		return ""
	}
	return v.String()
}

// StringRows returns the rows rendered as text.
func (t Table) StringRows() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = cell(v)
		}
	}
	return out
}

// Encode writes records in format f. columns fixes the column order of the
// tabular formats and is normally the form version's field names in
// declaration order.
func Encode(w io.Writer, f Format, columns []string, records []models.Record) error {
	var err error
	switch f {
	case JSON:
		err = writeJSON(w, records)
	case CSV:
		err = writeCSV(w, NewTable(columns, records))
	case HTML:
		err = writeHTML(w, NewTable(columns, records))
	case RTF:
		err = writeRTF(w, NewTable(columns, records))
	case TXT:
		err = writeTXT(w, NewTable(columns, records))
	case XLSX:
		err = writeXLSX(w, NewTable(columns, records))
	default:
		return &apperr.ExportError{Format: string(f)}
	}
	if err != nil {
		return &apperr.ExportError{Format: string(f), Err: err}
	}
	return nil
}
