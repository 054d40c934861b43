// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dalemusser/formhub/internal/app/store/substrate"
	"github.com/dalemusser/formhub/internal/app/system/indexes"
	"github.com/dalemusser/formhub/internal/app/system/timeouts"
	"github.com/dalemusser/formhub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects MongoDB and opens the configured record substrate.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping MongoDB: %w", err)
	}
	db := client.Database(appCfg.MongoDatabase)
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize))

	deps := DBDeps{
		FormHubMongoClient:   client,
		FormHubMongoDatabase: db,
		Runtime:              &Runtime{},
	}

	switch appCfg.RecordBackend {
	case BackendSQLite:
		if dir := filepath.Dir(appCfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				_ = client.Disconnect(context.Background())
				return DBDeps{}, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		s, err := substrate.OpenSQLite(appCfg.SQLitePath)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, err
		}
		deps.SQLite, deps.Records = s, s
	case BackendMemory:
		deps.Records = substrate.NewMemory()
	default:
		deps.Records = substrate.NewMongo(db)
	}
	logger.Info("record backend ready", zap.String("record_backend", deps.Records.Backend()))

	return deps, nil
}

// EnsureSchema creates the metadata collections with their validators, then
// their indexes. Record collections are created on demand when a form
// version is bound.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()
	if err := validators.EnsureAll(ctx, deps.FormHubMongoDatabase); err != nil {
		logger.Error("collection validators", zap.Error(err))
		return err
	}
	return indexes.EnsureAll(ctx, deps.FormHubMongoDatabase)
}
