// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/freshershub/internal/app/system/cache"
	"github.com/dalemusser/freshershub/internal/app/system/indexes"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/app/system/validators"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/memory"
	"github.com/dalemusser/freshershub/internal/backend/mongobackend"
	"github.com/dalemusser/freshershub/internal/backend/s3storage"
	"github.com/dalemusser/freshershub/internal/backend/tokens"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const cachePrefix = "freshershub:"

// ConnectDB builds the backend selected by backend_mode, its object
// storage, and the optional unread-count cache.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	deps := DBDeps{Runtime: &Runtime{}}

	issuer, err := tokens.NewIssuer(appCfg.JWTSecret, appCfg.AccessTokenTTL)
	if err != nil {
		return DBDeps{}, fmt.Errorf("token issuer: %w", err)
	}

	switch appCfg.BackendMode {
	case BackendMemory:
		logger.Warn("using in-memory backend; data is lost on restart")
		deps.Memory = memory.New(issuer, appCfg.BaseURL)
		memoryUniques(deps.Memory)
		deps.Backend = deps.Memory.Client()

	default:
		opts := options.Client().
			ApplyURI(appCfg.MongoURI).
			SetMaxPoolSize(appCfg.MongoMaxPoolSize).
			SetMinPoolSize(appCfg.MongoMinPoolSize)

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
		}
		logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)

		storage, err := objectStorage(ctx, appCfg, logger)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, err
		}
		deps.Backend = mongobackend.NewClient(deps.MongoDatabase, issuer, storage, appCfg.BaseURL, logger)
	}

	deps.Cache = cache.New(appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB, cachePrefix)
	if deps.Cache != nil {
		pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		defer cancel()
		if err := deps.Cache.Ping(pingCtx); err != nil {
			// The cache is optional; counts fall back to the database.
			logger.Warn("redis unavailable; unread counts read from the database", zap.Error(err))
		} else {
			logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr))
		}
	}

	return deps, nil
}

// memoryUniques mirrors the unique indexes the Mongo schema declares.
func memoryUniques(b *memory.Backend) {
	b.Unique("profiles", "email", "student_id")
	b.Unique("departments", "code")
}

// objectStorage returns the configured S3 storage, or nil so the mongo
// backend falls back to GridFS.
func objectStorage(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (backend.Storage, error) {
	if appCfg.StorageType != StorageS3 {
		logger.Info("using GridFS object storage")
		return nil, nil
	}
	s, err := s3storage.New(ctx, s3storage.Config{
		Region:    appCfg.StorageS3Region,
		Bucket:    appCfg.StorageS3Bucket,
		Prefix:    appCfg.StorageS3Prefix,
		PublicURL: appCfg.StoragePublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 storage: %w", err)
	}
	logger.Info("using S3 object storage",
		zap.String("bucket", appCfg.StorageS3Bucket),
		zap.String("region", appCfg.StorageS3Region))
	return s, nil
}

// EnsureSchema creates the MongoDB collections with their validators, then
// the indexes. The memory backend has neither.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("indexes ensured")
	return nil
}
