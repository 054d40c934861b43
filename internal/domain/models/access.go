// internal/domain/models/access.go
package models

import "strings"

// AccessMode controls who besides the owner may use a project or form.
type AccessMode string

const (
	AccessPublic     AccessMode = "public"
	AccessPrivate    AccessMode = "private"
	AccessRestricted AccessMode = "restricted"
)

// ParseAccessMode parses s case-insensitively. "restrict" is accepted as an
// alias for restricted. An empty string yields def.
func ParseAccessMode(s string, def AccessMode) (AccessMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, true
	case "public":
		return AccessPublic, true
	case "private":
		return AccessPrivate, true
	case "restricted", "restrict":
		return AccessRestricted, true
	}
	return "", false
}
