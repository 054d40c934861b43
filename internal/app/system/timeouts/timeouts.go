// Package timeouts provides centralized timeout values for handler operations.
//
// These timeouts are used with context.WithTimeout for database operations
// and other I/O in HTTP handlers. Using centralized values ensures consistency
// and makes it easy to adjust timeouts across the application.
//
// Timeouts can be overridden at startup with ConfigureFromEnv. Values not
// set there keep their defaults.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Short: single record or form reads
//   - Medium: record writes, form and project listings
//   - Long: form edits that bind a new version, project clone and delete
//   - Batch: record exports and startup rehydration
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values, used when the environment sets none.
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultBatch  = 60 * time.Second
)

// mu protects all timeout values from concurrent access.
var mu sync.RWMutex

// Configurable timeout values. These start with defaults and can be
// overridden by ConfigureFromEnv. Access via getter functions.
var (
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
	batch  = DefaultBatch
)

// Ping returns the timeout for health checks and connectivity verification.
// Used by health endpoints to verify database connectivity.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for simple operations like single-document reads.
// Examples: get a form, get a record.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the timeout for moderate operations like list queries.
// Examples: list forms, create or update a record.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Long returns the timeout for complex operations touching multiple collections.
// Examples: create a form version, clone or delete a project.
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return long
}

// Batch returns the timeout for bulk operations.
// Examples: exporting every record of a form version, rehydrating bindings.
func Batch() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return batch
}

// EnvPrefix prefixes the timeout environment variables read by
// ConfigureFromEnv.
const EnvPrefix = "FORMHUB_TIMEOUT_"

// ConfigureFromEnv reads timeout configuration from environment variables.
// Environment variables (all optional, defaults used if not set or invalid):
//   - FORMHUB_TIMEOUT_PING: e.g., "2s", "500ms"
//   - FORMHUB_TIMEOUT_SHORT: e.g., "5s"
//   - FORMHUB_TIMEOUT_MEDIUM: e.g., "10s"
//   - FORMHUB_TIMEOUT_LONG: e.g., "30s"
//   - FORMHUB_TIMEOUT_BATCH: e.g., "60s", "2m" (exports)
//
// Returns the number of timeouts successfully configured from environment.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()

	targets := []struct {
		name string
		dst  *time.Duration
	}{
		{"PING", &ping},
		{"SHORT", &short},
		{"MEDIUM", &medium},
		{"LONG", &long},
		{"BATCH", &batch},
	}

	configured := 0
	for _, t := range targets {
		v := os.Getenv(EnvPrefix + t.name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*t.dst = d
			configured++
		}
	}
	return configured
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context was canceled due to deadline exceeded.
// Use this for long-running or critical operations where timeout debugging is important.
//
// Example:
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "export records")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
