package export

import (
	"encoding/csv"
	"io"

	"github.com/dalemusser/formhub/internal/domain/models"
)

// utf8BOM lets Excel detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func writeCSV(w io.Writer, t Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(t.Header); err != nil {
		return err
	}
	for r, row := range t.StringRows() {
		// Only text cells get the formula guard; numbers such as -5 stay numbers.
		for i := range row {
			if t.Rows[r][i].Type == models.TypeString {
				row[i] = sanitizeCSVField(row[i])
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sanitizeCSVField defuses spreadsheet formula injection by prefixing
// cells that start with a formula trigger with a single quote.
func sanitizeCSVField(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}
