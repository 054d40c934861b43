package schema

import (
	"strings"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
)

// Compile turns fields into a Descriptor and the set of mutable field names.
//
// Errors are *apperr.SchemaError and name the first offending field.
func Compile(fields []models.Field) (Descriptor, MutableSet, error) {
	desc := Descriptor{
		Entries: make([]Entry, 0, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	mutable := make(MutableSet, len(fields))

	for i, f := range fields {
		if !f.Kind.IsKnown() {
			return Descriptor{}, nil, &apperr.SchemaError{Index: i, Field: f.Name, Reason: "unknown type '" + string(f.Kind) + "'"}
		}
		if f.Kind.IsDisplay() {
			continue
		}

		name := strings.TrimSpace(f.Name)
		if name == "" {
			return Descriptor{}, nil, &apperr.SchemaError{Index: i, Reason: "name is required"}
		}
		if name != f.Name {
			return Descriptor{}, nil, &apperr.SchemaError{Index: i, Field: f.Name, Reason: "name must not have surrounding whitespace"}
		}
		if strings.Contains(name, ".") || strings.HasPrefix(name, "$") {
			return Descriptor{}, nil, &apperr.SchemaError{Index: i, Field: name, Reason: "name must not contain '.' or start with '$'"}
		}
		if _, dup := desc.index[name]; dup {
			return Descriptor{}, nil, &apperr.SchemaError{Index: i, Field: name, Reason: "duplicate name"}
		}

		e := Entry{Name: name, Required: f.Required}
		switch {
		case f.Kind == models.KindNumber:
			e.ValueType = models.TypeNumber
		case f.Kind == models.KindFile:
			e.ValueType = models.TypeBytes
		case f.Kind.IsEnumerated():
			if len(f.Options) == 0 {
				return Descriptor{}, nil, &apperr.SchemaError{Index: i, Field: name, Reason: "at least one option is required"}
			}
			e.ValueType = models.TypeString
			e.AllowedValues = make([]string, 0, len(f.Options)+1)
			if !f.Required {
				// "" first so that "no selection" is representable.
				e.AllowedValues = append(e.AllowedValues, "")
				e.DefaultEmptyAllowed = true
			}
			for _, o := range f.Options {
				e.AllowedValues = append(e.AllowedValues, o.Value)
			}
		default:
			e.ValueType = models.TypeString
		}

		desc.index[name] = len(desc.Entries)
		desc.Entries = append(desc.Entries, e)
		mutable[name] = struct{}{}
	}

	return desc, mutable, nil
}
