package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/formhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithCaller injects the caller id into the request context, bypassing the
// identity middleware.
func WithCaller(r *http.Request, caller primitive.ObjectID) *http.Request {
	return r.WithContext(auth.WithCaller(r.Context(), caller))
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates an HTTP request whose body is body encoded as JSON.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
