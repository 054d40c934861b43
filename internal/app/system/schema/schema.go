// Package schema compiles a form's field list into the storage schema used by
// its record collection.
//
// Compile is pure: it performs no I/O and returns the same Descriptor for the
// same input. Display-only kinds (header, paragraph) produce no entry and are
// never mutable.
package schema

import (
	"github.com/dalemusser/formhub/internal/domain/models"
)

// Entry is the storage rule for one field.
type Entry struct {
	Name                string           `json:"name"`
	ValueType           models.ValueType `json:"value_type"`
	Required            bool             `json:"required"`
	AllowedValues       []string         `json:"allowed_values,omitempty"`
	DefaultEmptyAllowed bool             `json:"default_empty_allowed"`
}

// Enumerated reports whether the entry restricts values to AllowedValues.
func (e Entry) Enumerated() bool {
	return e.AllowedValues != nil
}

// Allows reports whether s is one of the entry's allowed values.
func (e Entry) Allows(s string) bool {
	for _, v := range e.AllowedValues {
		if v == s {
			return true
		}
	}
	return false
}

// Descriptor is the compiled schema of one form version, in declaration order.
type Descriptor struct {
	Entries []Entry `json:"fields"`
	index   map[string]int
}

// Lookup returns the entry for name.
func (d Descriptor) Lookup(name string) (Entry, bool) {
	if d.index != nil {
		i, ok := d.index[name]
		if !ok {
			return Entry{}, false
		}
		return d.Entries[i], true
	}
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Names returns the stored field names in declaration order.
func (d Descriptor) Names() []string {
	out := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Name
	}
	return out
}

// Len returns the number of stored fields.
func (d Descriptor) Len() int { return len(d.Entries) }

// MutableSet is the allowlist of field names a record update may touch.
type MutableSet map[string]struct{}

// Has reports whether name may be updated.
func (m MutableSet) Has(name string) bool {
	_, ok := m[name]
	return ok
}
