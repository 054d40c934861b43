package export

import (
	"html"
	"io"
	"strings"
)

// writeHTML renders the table as a standalone document. Cell text is
// escaped, never filtered, so every value survives verbatim.
func writeHTML(w io.Writer, t Table) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Records</title>\n</head>\n<body>\n<table>\n<thead>\n<tr>")
	for _, h := range t.Header {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(h))
		b.WriteString("</th>")
	}
	b.WriteString("</tr>\n</thead>\n<tbody>\n")
	for _, row := range t.StringRows() {
		b.WriteString("<tr>")
		for _, c := range row {
			b.WriteString("<td>")
			b.WriteString(html.EscapeString(c))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>\n</body>\n</html>\n")
	_, err := io.WriteString(w, b.String())
	return err
}
