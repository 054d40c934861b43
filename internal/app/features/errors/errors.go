// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/reqid"
	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Format    string `json:"format,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorLogger renders core errors as JSON and logs the ones that are the
// server's fault.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger. A nil logger discards output.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{Log: logger}
}

// Status maps an error to its HTTP status code.
//
// Forbidden renders as 404 so callers cannot probe for forms they may not
// see.
func Status(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindSchema, apperr.KindValidation, apperr.KindExport:
		return http.StatusBadRequest
	case apperr.KindNotFound, apperr.KindForbidden:
		return http.StatusNotFound
	case apperr.KindDuplicate:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Render writes err as a JSON error response. msg names the operation and
// is only used in the server-error log line.
func (e *ErrorLogger) Render(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := Status(err)
	body := Body{RequestID: reqid.FromContext(r.Context())}

	var (
		se *apperr.SchemaError
		ve *apperr.ValidationError
		ee *apperr.ExportError
	)
	switch {
	case status == http.StatusInternalServerError:
		e.Log.Error(msg,
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", body.RequestID))
		body.Error = "internal error"
	case status == http.StatusNotFound:
		body.Error = "not found"
	case stderrors.As(err, &se):
		body.Error, body.Field = err.Error(), se.Field
	case stderrors.As(err, &ve):
		body.Error, body.Field = err.Error(), ve.Field
	case stderrors.As(err, &ee):
		body.Error, body.Format = err.Error(), ee.Format
	default:
		body.Error = err.Error()
	}
	WriteJSON(w, status, body)
}

// LogBadRequest renders a 400 for malformed input that never reached the
// core (bad JSON, bad ids, bad query parameters).
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	e.Log.Debug(msg, zap.Error(err), zap.String("path", r.URL.Path))
	WriteJSON(w, http.StatusBadRequest, Body{
		Error:     msg,
		RequestID: reqid.FromContext(r.Context()),
	})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
