package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.RecordOp("create", nil)
	m.Export("csv", errors.New("boom"))
	m.SetBindings(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	called := false
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestCountersAndExposition(t *testing.T) {
	m := metrics.New()
	m.RecordOp("create", nil)
	m.RecordOp("create", &apperr.ValidationError{Field: "age", Reason: "must be numeric"})
	m.RecordOp("get", apperr.ErrNotFound)
	m.Export("csv", nil)
	m.SetBindings(2)

	n, err := promtest.GatherAndCount(m.Registry(), "formhub_record_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/forms/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/forms/abc", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	assert.Contains(t, text, `formhub_record_operations_total{op="create",outcome="validation"} 1`)
	assert.Contains(t, text, `formhub_record_operations_total{op="get",outcome="not_found"} 1`)
	assert.Contains(t, text, `formhub_exports_total{format="csv",outcome="ok"} 1`)
	assert.Contains(t, text, "formhub_registry_bindings 2")
	assert.True(t, strings.Contains(text, `route="/forms/{id}"`), "route pattern label")
	assert.Contains(t, text, `status="418"`)
}
