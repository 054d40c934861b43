// Package apperr defines the closed set of error kinds the form and record
// core can return. Callers branch on Kind (or errors.Is/errors.As), never on
// message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for rendering.
type Kind int

const (
	KindInternal Kind = iota
	KindSchema
	KindValidation
	KindNotFound
	KindForbidden
	KindDuplicate
	KindExport
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindDuplicate:
		return "duplicate"
	case KindExport:
		return "export"
	}
	return "internal"
}

var (
	// ErrNotFound means the form, version, binding or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the access policy denied the operation.
	ErrForbidden = errors.New("forbidden")
)

// SchemaError reports a malformed field list.
type SchemaError struct {
	Index  int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("field %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("field '%s': %s", e.Field, e.Reason)
}

// ValidationError reports the first record value that does not fit the schema.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("'%s' %s", e.Field, e.Reason)
}

// DuplicateError reports a unique-key conflict on a form or project.
type DuplicateError struct {
	Key string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("'%s' is already taken", e.Key)
}

// ExportError reports an unsupported or failed export.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export %q: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("unsupported export format %q", e.Format)
}

func (e *ExportError) Unwrap() error { return e.Err }

// KindOf classifies err. Unknown errors (including storage failures) are
// KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var (
		se *SchemaError
		ve *ValidationError
		de *DuplicateError
		ee *ExportError
	)
	switch {
	case errors.As(err, &se):
		return KindSchema
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &de):
		return KindDuplicate
	case errors.As(err, &ee):
		return KindExport
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindInternal
}
