// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/formhub/internal/app/system/ratelimit"
	"github.com/dalemusser/formhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Record backends accepted by record_backend.
const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// appConfigKeys defines the configuration keys for FormHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, record_backend, etc.
//   - Environment variables: FORMHUB_MONGO_URI, FORMHUB_RECORD_BACKEND, etc.
//   - Command-line flags: --mongo_uri, --record_backend, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "formhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Record storage
	{Name: "record_backend", Default: BackendMongo, Desc: "Record storage backend: 'mongo', 'sqlite' or 'memory'"},
	{Name: "sqlite_path", Default: "./data/records.db", Desc: "SQLite database file for the sqlite record backend"},

	// Caller identity
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key shared with the login service"},
	{Name: "session_name", Default: "formhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "caller_header", Default: "", Desc: "Trusted request header carrying the caller id (blank disables)"},

	// Exports and metrics
	{Name: "export_max_records", Default: 0, Desc: "Maximum records in one export (0 = unlimited)"},
	{Name: "submit_rate_limit", Default: 120, Desc: "Record submissions per client IP per minute (0 = unlimited)"},
	{Name: "trusted_proxies", Default: []string{}, Desc: "Proxy CIDRs or IPs whose X-Forwarded-For/X-Real-IP headers are believed (empty trusts none)"},
	{Name: "metrics_enabled", Default: true, Desc: "Expose Prometheus metrics at /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, FORMHUB_* for app) and flags,
// merged with precedence flags > env > files > defaults. Timeout overrides
// (FORMHUB_TIMEOUT_*) are applied here so every later hook sees them.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "FORMHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		RecordBackend: appValues.String("record_backend"),
		SQLitePath:    appValues.String("sqlite_path"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		CallerHeader:  appValues.String("caller_header"),

		ExportMaxRecords: appValues.Int("export_max_records"),
		SubmitRateLimit:  appValues.Int("submit_rate_limit"),
		TrustedProxies:   appValues.StringSlice("trusted_proxies"),
		MetricsEnabled:   appValues.Bool("metrics_enabled"),
	}

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeout overrides applied", zap.Int("count", n))
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked even for the sqlite and memory record backends
// because form and project metadata always live in MongoDB.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.RecordBackend {
	case BackendMongo, BackendMemory:
	case BackendSQLite:
		if appCfg.SQLitePath == "" {
			return fmt.Errorf("record_backend 'sqlite' requires sqlite_path")
		}
	default:
		return fmt.Errorf("unknown record_backend %q (want mongo, sqlite or memory)", appCfg.RecordBackend)
	}

	if appCfg.ExportMaxRecords < 0 {
		return fmt.Errorf("export_max_records must not be negative")
	}
	if appCfg.SubmitRateLimit < 0 {
		return fmt.Errorf("submit_rate_limit must not be negative")
	}
	if _, err := ratelimit.ParseProxies(appCfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted_proxies: %w", err)
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}

	if appCfg.RecordBackend == BackendMemory && coreCfg != nil && coreCfg.Env == "prod" {
		logger.Warn("memory record backend in production: records are lost on restart")
	}
	return nil
}
