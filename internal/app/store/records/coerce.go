package recordstore

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/schema"
	"github.com/dalemusser/formhub/internal/domain/models"
)

// Validation reasons. They read as the tail of "'<field>' <reason>".
const (
	reasonRequired   = "is required"
	reasonNumeric    = "must be numeric"
	reasonString     = "must be a string"
	reasonBytes      = "must be base64 encoded bytes"
	reasonNotAllowed = "must be one of the allowed options"
)

func invalid(field, reason string) error {
	return &apperr.ValidationError{Field: field, Reason: reason}
}

// coerce converts a decoded payload value into the entry's storage type.
// raw is what encoding/json (with or without UseNumber) produces, or []byte.
// Create and Update handle nil themselves and never pass it here.
func coerce(e schema.Entry, raw any) (models.Value, error) {
	switch e.ValueType {
	case models.TypeNumber:
		return coerceNumber(e.Name, raw)
	case models.TypeBytes:
		return coerceBytes(e.Name, raw)
	}

	s, err := coerceString(e.Name, raw)
	if err != nil {
		return models.Value{}, err
	}
	if e.Required && s == "" {
		return models.Value{}, invalid(e.Name, reasonRequired)
	}
	if e.Enumerated() && !e.Allows(s) {
		return models.Value{}, invalid(e.Name, reasonNotAllowed)
	}
	return models.StringValue(s), nil
}

func coerceString(field string, raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", invalid(field, reasonString)
}

func coerceNumber(field string, raw any) (models.Value, error) {
	switch v := raw.(type) {
	case float64:
		return models.NumberValue(v), nil
	case int:
		return models.NumberValue(float64(v)), nil
	case int64:
		return models.NumberValue(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return models.Value{}, invalid(field, reasonNumeric)
		}
		return models.NumberValue(f), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return models.Value{}, invalid(field, reasonNumeric)
		}
		return models.NumberValue(f), nil
	}
	return models.Value{}, invalid(field, reasonNumeric)
}

func coerceBytes(field string, raw any) (models.Value, error) {
	switch v := raw.(type) {
	case []byte:
		return models.BytesValue(append([]byte(nil), v...)), nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return models.Value{}, invalid(field, reasonBytes)
		}
		return models.BytesValue(b), nil
	}
	return models.Value{}, invalid(field, reasonBytes)
}
