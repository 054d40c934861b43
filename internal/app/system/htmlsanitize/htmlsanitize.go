// Package htmlsanitize cleans the rich-text descriptions projects and forms
// carry. Form builders render them as HTML, so formatting, links, lists and
// tables are kept while scripts, event handlers and javascript: URLs go.
package htmlsanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.AllowAttrs("class").OnElements("table")
	return p
}

// Sanitize returns s with unsafe markup removed.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}
