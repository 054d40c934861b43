package export

import (
	"fmt"
	"io"
	"strings"
)

// cellWidthTwips is the fixed width of every RTF table column.
const cellWidthTwips = 2000

func writeRTF(w io.Writer, t Table) error {
	var b strings.Builder
	b.WriteString("{\\rtf1\\ansi\\deff0{\\fonttbl{\\f0 Helvetica;}}\n")

	writeRow := func(cells []string, bold bool) {
		b.WriteString("\\trowd\\trgaph108")
		for i := range cells {
			fmt.Fprintf(&b, "\\cellx%d", (i+1)*cellWidthTwips)
		}
		b.WriteString("\n")
		for _, c := range cells {
			b.WriteString("\\pard\\intbl ")
			if bold {
				b.WriteString("{\\b ")
			}
			b.WriteString(rtfEscape(c))
			if bold {
				b.WriteString("}")
			}
			b.WriteString("\\cell\n")
		}
		b.WriteString("\\row\n")
	}

	writeRow(t.Header, true)
	for _, row := range t.StringRows() {
		writeRow(row, false)
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// rtfEscape escapes control characters and writes non-ASCII runes as \uN?.
func rtfEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString("\\line ")
		case r == '\r' || r == '\t':
			b.WriteByte(' ')
		case r < 0x80:
			b.WriteRune(r)
		case r <= 0xFFFF:
			// RTF \u takes a signed 16-bit value.
			fmt.Fprintf(&b, "\\u%d?", int16(uint16(r)))
		default:
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			fmt.Fprintf(&b, "\\u%d?\\u%d?", int16(uint16(hi)), int16(uint16(lo)))
		}
	}
	return b.String()
}
