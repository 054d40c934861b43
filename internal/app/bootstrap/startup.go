// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	formstore "github.com/dalemusser/formhub/internal/app/store/forms"
	projectstore "github.com/dalemusser/formhub/internal/app/store/projects"
	"github.com/dalemusser/formhub/internal/app/system/formsvc"
	"github.com/dalemusser/formhub/internal/app/system/metrics"
	"github.com/dalemusser/formhub/internal/app/system/ratelimit"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup builds the registry and service, then re-binds every stored form
// version to its record collection before any request is served.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime == nil {
		return fmt.Errorf("startup: DBDeps has no runtime")
	}
	rt, err := buildRuntime(ctx, appCfg, deps, logger)
	if err != nil {
		return err
	}
	*deps.Runtime = *rt
	return nil
}

// buildRuntime wires the core over deps and rehydrates the registry.
func buildRuntime(ctx context.Context, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*Runtime, error) {
	proxies, err := ratelimit.ParseProxies(appCfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted_proxies: %w", err)
	}
	var m *metrics.Metrics
	if appCfg.MetricsEnabled {
		m = metrics.New()
	}
	reg := registry.New(deps.Records, logger)
	svc := formsvc.New(formsvc.Deps{
		Forms:            formstore.New(deps.FormHubMongoDatabase),
		Projects:         projectstore.New(deps.FormHubMongoDatabase),
		Registry:         reg,
		Metrics:          m,
		Logger:           logger,
		ExportMaxRecords: appCfg.ExportMaxRecords,
	})

	rctx, cancel := timeouts.WithTimeout(ctx, timeouts.Batch(), logger, "rehydrate registry")
	defer cancel()
	n, err := svc.Rehydrate(rctx)
	if err != nil {
		return nil, fmt.Errorf("rehydrate registry: %w", err)
	}
	logger.Info("startup complete",
		zap.String("record_backend", deps.Records.Backend()),
		zap.Int("bindings", n))

	return &Runtime{
		Registry:      reg,
		Metrics:       m,
		Service:       svc,
		SubmitLimiter: ratelimit.New(appCfg.SubmitRateLimit, time.Minute),
		Proxies:       proxies,
	}, nil
}
