// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles the
// framework-level settings (ports, TLS, logging, CORS, body limits); this
// struct holds what is specific to FormHub.
type AppConfig struct {
	// MongoDB connection configuration (form and project metadata)
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Record storage
	RecordBackend string // Where form-version record collections live: "mongo", "sqlite" or "memory"
	SQLitePath    string // Database file when RecordBackend is "sqlite"

	// Caller identity (login itself is handled elsewhere)
	SessionKey    string // Shared key the login service signs session cookies with
	SessionName   string // Cookie name for sessions (default: formhub-session)
	SessionDomain string // Cookie domain (blank means current host)
	CallerHeader  string // Trusted header carrying the caller id (blank disables)

	// Exports and submissions
	ExportMaxRecords int      // Largest record set one export may contain (0 = unlimited)
	SubmitRateLimit  int      // Record submissions per client IP per minute (0 = unlimited)
	TrustedProxies   []string // Proxy CIDRs or IPs allowed to name the client IP in forwarding headers

	// Metrics
	MetricsEnabled bool // Serve /metrics and collect request metrics
}
