// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown closes the record substrate and the MongoDB client.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var errs []error
	if deps.Runtime != nil {
		deps.Runtime.SubmitLimiter.Stop()
	}
	if deps.SQLite != nil {
		logger.Info("closing SQLite record store")
		if err := deps.SQLite.Close(); err != nil {
			logger.Error("SQLite close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if deps.FormHubMongoClient != nil {
		logger.Info("disconnecting FormHub MongoDB client")
		if err := deps.FormHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
