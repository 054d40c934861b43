package export

import (
	"io"
	"strings"
	"text/tabwriter"
)

// writeTXT writes space-aligned columns with a dashed rule under the header.
func writeTXT(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	writeLine := func(cells []string) error {
		for i := range cells {
			cells[i] = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(cells[i])
		}
		_, err := io.WriteString(tw, strings.Join(cells, "\t")+"\n")
		return err
	}

	if err := writeLine(append([]string(nil), t.Header...)); err != nil {
		return err
	}
	rule := make([]string, len(t.Header))
	for i, h := range t.Header {
		rule[i] = strings.Repeat("-", max(len(h), 1))
	}
	if err := writeLine(rule); err != nil {
		return err
	}
	for _, row := range t.StringRows() {
		if err := writeLine(row); err != nil {
			return err
		}
	}
	return tw.Flush()
}
