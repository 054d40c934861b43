// internal/domain/models/field.go
package models

// FieldKind names the input widget a Field renders as. The set is closed;
// anything else is rejected when a field list is compiled.
type FieldKind string

const (
	KindText          FieldKind = "text"
	KindTextarea      FieldKind = "textarea"
	KindDate          FieldKind = "date"
	KindNumber        FieldKind = "number"
	KindFile          FieldKind = "file"
	KindParagraph     FieldKind = "paragraph"
	KindHeader        FieldKind = "header"
	KindCheckboxGroup FieldKind = "checkbox-group"
	KindRadioGroup    FieldKind = "radio-group"
	KindSelect        FieldKind = "select"
	KindAutocomplete  FieldKind = "autocomplete"
)

// IsDisplay reports whether the kind is display-only (no stored value).
func (k FieldKind) IsDisplay() bool {
	return k == KindParagraph || k == KindHeader
}

// IsEnumerated reports whether values of this kind are restricted to the
// field's option values.
func (k FieldKind) IsEnumerated() bool {
	switch k {
	case KindCheckboxGroup, KindRadioGroup, KindSelect, KindAutocomplete:
		return true
	}
	return false
}

// IsKnown reports whether k is one of the supported kinds.
func (k FieldKind) IsKnown() bool {
	switch k {
	case KindText, KindTextarea, KindDate, KindNumber, KindFile,
		KindParagraph, KindHeader,
		KindCheckboxGroup, KindRadioGroup, KindSelect, KindAutocomplete:
		return true
	}
	return false
}

// Option is one selectable choice of an enumerated field.
type Option struct {
	Label    string `bson:"label" json:"label" yaml:"label"`
	Value    string `bson:"value" json:"value" yaml:"value"`
	Selected bool   `bson:"selected" json:"selected" yaml:"selected"`
}

// Field describes one input slot of a form.
//
// Subtype, Label, Placeholder and Value are presentation hints carried through
// from the form builder; only Name, Kind, Required and Options affect storage.
type Field struct {
	Name        string    `bson:"name" json:"name" yaml:"name"`
	Kind        FieldKind `bson:"type" json:"type" yaml:"type"`
	Subtype     string    `bson:"subtype,omitempty" json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Label       string    `bson:"label,omitempty" json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder string    `bson:"placeholder,omitempty" json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Required    bool      `bson:"required" json:"required" yaml:"required"`
	Value       string    `bson:"value,omitempty" json:"value,omitempty" yaml:"value,omitempty"`
	Options     []Option  `bson:"values,omitempty" json:"values,omitempty" yaml:"values,omitempty"`
}

// Normalize drops whichever of Value/Options does not apply to the kind.
// Enumerated fields keep their options and lose the scalar default; every
// other kind loses its options.
func (f Field) Normalize() Field {
	if f.Kind.IsEnumerated() {
		f.Value = ""
	} else {
		f.Options = nil
	}
	return f
}

// NormalizeFields returns a normalized copy of fields.
func NormalizeFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = f.Normalize()
	}
	return out
}
