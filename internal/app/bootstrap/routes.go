// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	errorsfeature "github.com/dalemusser/formhub/internal/app/features/errors"
	formsfeature "github.com/dalemusser/formhub/internal/app/features/forms"
	healthfeature "github.com/dalemusser/formhub/internal/app/features/health"
	projectsfeature "github.com/dalemusser/formhub/internal/app/features/projects"
	"github.com/dalemusser/formhub/internal/app/system/auth"
	"github.com/dalemusser/formhub/internal/app/system/reqid"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for FormHub.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so deps.Runtime already holds the rehydrated
// service.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	identity, err := auth.NewIdentity(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.CallerHeader, secure, logger)
	if err != nil {
		logger.Error("caller identity init failed", zap.Error(err))
		return nil, err
	}
	return newRouter(deps, identity, logger), nil
}

func newRouter(deps DBDeps, identity *auth.Identity, logger *zap.Logger) chi.Router {
	rt := deps.Runtime
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(reqid.Middleware)
	r.Use(rt.Metrics.Middleware)

	// Global identity middleware: loads the caller id into context.
	r.Use(identity.LoadCaller)

	// Health check endpoint for load balancers and orchestrators
	var records healthfeature.Pinger
	if deps.SQLite != nil {
		records = deps.SQLite
	}
	healthHandler := healthfeature.NewHandler(deps.FormHubMongoClient, deps.Records.Backend(), records, rt.Registry, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics.Handler())
	}

	projectsHandler := projectsfeature.NewHandler(rt.Service, errLog, logger)
	r.Mount("/projects", projectsfeature.Routes(projectsHandler, identity))

	formsHandler := formsfeature.NewHandler(rt.Service, errLog, logger)
	formsHandler.Submit = rt.SubmitLimiter
	formsHandler.Proxies = rt.Proxies
	r.Mount("/forms", formsfeature.Routes(formsHandler, identity))

	return r
}
