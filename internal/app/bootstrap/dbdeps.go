// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/formhub/internal/app/store/substrate"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/metrics"
	"github.com/dalemusser/formhub/internal/app/system/ratelimit"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	FormHubMongoClient   *mongo.Client
	FormHubMongoDatabase *mongo.Database

	// Records is the substrate record collections are created in. SQLite is
	// set as well when the sqlite backend is selected so Shutdown can close
	// it.
	Records substrate.Substrate
	SQLite  *substrate.SQLite

	// Runtime is filled in by Startup. WAFFLE passes DBDeps by value, so the
	// pointer is what carries startup state through to BuildHandler.
	Runtime *Runtime
}

// Runtime is the process-wide state built once at startup.
type Runtime struct {
	Registry *registry.Registry
	Metrics  *metrics.Metrics
	Service  *formsvc.Service

	// SubmitLimiter throttles record creation per client IP; nil when
	// submit_rate_limit is 0.
	SubmitLimiter *ratelimit.Limiter
	// Proxies are the trusted_proxies the limiter reads client IPs through.
	Proxies ratelimit.Proxies
}
