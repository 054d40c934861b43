// internal/domain/models/record.go
package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValueType is the storage type of a compiled field.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeNumber ValueType = "number"
	TypeBytes  ValueType = "bytes"
)

// Value is a stored field value. Exactly one of Str, Num, Bytes is meaningful,
// selected by Type.
type Value struct {
	Type  ValueType
	Str   string
	Num   float64
	Bytes []byte
}

func StringValue(s string) Value  { return Value{Type: TypeString, Str: s} }
func NumberValue(n float64) Value { return Value{Type: TypeNumber, Num: n} }
func BytesValue(b []byte) Value   { return Value{Type: TypeBytes, Bytes: b} }

// Interface returns the value as a plain Go value: string, float64 or []byte.
func (v Value) Interface() any {
	switch v.Type {
	case TypeNumber:
		return v.Num
	case TypeBytes:
		return v.Bytes
	default:
		return v.Str
	}
}

// String renders the value for flat, text-based outputs. Bytes are base64.
func (v Value) String() string {
	switch v.Type {
	case TypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case TypeBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	default:
		return v.Str
	}
}

// Equal reports whether two values have the same type and content.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeNumber:
		return v.Num == o.Num
	case TypeBytes:
		return bytes.Equal(v.Bytes, o.Bytes)
	default:
		return v.Str == o.Str
	}
}

// MarshalJSON encodes numbers as JSON numbers, strings as strings and bytes
// as base64 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Record is one submission stored in a form-version collection.
type Record struct {
	ID      primitive.ObjectID `json:"id"`
	FormID  primitive.ObjectID `json:"form"`
	Version int                `json:"version"`
	Values  map[string]Value   `json:"values"`
}
