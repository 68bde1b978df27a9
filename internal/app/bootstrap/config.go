// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Backend modes.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Storage types.
const (
	StorageGridFS = "gridfs"
	StorageS3     = "s3"
)

const minSecretLen = 32

// appConfigKeys defines the configuration keys for FreshersHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: FRESHERSHUB_MONGO_URI, FRESHERSHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "backend_mode", Default: BackendMongo, Desc: "Backend: 'mongo' or 'memory' (local development only)"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "freshershub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "jwt_secret", Default: "dev-only-jwt-secret-change-me-0123456789", Desc: "Access token signing secret"},
	{Name: "access_token_ttl", Default: "24h", Desc: "Access token lifetime"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "freshershub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime"},

	// File storage configuration
	{Name: "storage_type", Default: StorageGridFS, Desc: "Storage backend: 'gridfs' or 's3'"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "", Desc: "S3 key prefix"},
	{Name: "storage_public_url", Default: "", Desc: "Base URL stored objects are served from"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL of the app"},

	// Unread-count cache
	{Name: "redis_addr", Default: "", Desc: "Redis address for the unread-count cache (blank disables it)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "unread_cache_ttl", Default: "30s", Desc: "How long cached unread counts live"},

	{Name: "fanout_policy", Default: string(notify.PolicyAll), Desc: "Event notification recipients: 'all' or 'department'"},

	{Name: "upload_compensate", Default: false, Desc: "Remove stored files whose metadata row could not be written"},
	{Name: "max_upload_mb", Default: 20, Desc: "Largest accepted upload in megabytes"},
	{Name: "upload_timeout", Default: "2m", Desc: "Deadline for storing one upload"},

	{Name: "sentry_dsn", Default: "", Desc: "Sentry DSN (blank disables error reporting)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "admin_email", Default: "", Desc: "Email of a profile promoted to admin on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, FRESHERSHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "FRESHERSHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		BackendMode:      strings.ToLower(appValues.String("backend_mode")),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:      appValues.String("jwt_secret"),
		AccessTokenTTL: appValues.Duration("access_token_ttl", 24*time.Hour),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		// File storage
		StorageType:      strings.ToLower(appValues.String("storage_type")),
		StorageS3Region:  appValues.String("storage_s3_region"),
		StorageS3Bucket:  appValues.String("storage_s3_bucket"),
		StorageS3Prefix:  appValues.String("storage_s3_prefix"),
		StoragePublicURL: appValues.String("storage_public_url"),

		BaseURL: appValues.String("base_url"),

		RedisAddr:      appValues.String("redis_addr"),
		RedisPassword:  appValues.String("redis_password"),
		RedisDB:        appValues.Int("redis_db"),
		UnreadCacheTTL: appValues.Duration("unread_cache_ttl", 30*time.Second),

		FanoutPolicy: appValues.String("fanout_policy"),

		UploadCompensate: appValues.Bool("upload_compensate"),
		MaxUploadMB:      appValues.Int("max_upload_mb"),
		UploadTimeout:    appValues.Duration("upload_timeout", 2*time.Minute),

		SentryDSN: appValues.String("sentry_dsn"),

		// Audit logging
		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		AdminEmail: appValues.String("admin_email"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.BackendMode {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
	case BackendMemory:
		if coreCfg != nil && coreCfg.Env == "prod" {
			return fmt.Errorf("backend_mode 'memory' is not allowed in prod")
		}
	default:
		return fmt.Errorf("backend_mode must be %q or %q, got %q", BackendMongo, BackendMemory, appCfg.BackendMode)
	}

	switch appCfg.StorageType {
	case StorageGridFS:
	case StorageS3:
		if appCfg.StorageS3Bucket == "" {
			return fmt.Errorf("storage_type 's3' requires storage_s3_bucket")
		}
	default:
		return fmt.Errorf("storage_type must be %q or %q, got %q", StorageGridFS, StorageS3, appCfg.StorageType)
	}

	if _, err := notify.ParsePolicy(appCfg.FanoutPolicy); err != nil {
		return err
	}
	for key, v := range map[string]string{"audit_log_auth": appCfg.AuditLogAuth, "audit_log_admin": appCfg.AuditLogAdmin} {
		if !auditlog.ValidMode(v) {
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, v)
		}
	}

	if len(appCfg.JWTSecret) < minSecretLen {
		return fmt.Errorf("jwt_secret must be at least %d characters", minSecretLen)
	}
	if len(appCfg.SessionKey) < minSecretLen {
		return fmt.Errorf("session_key must be at least %d characters", minSecretLen)
	}
	if appCfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("access_token_ttl must be positive")
	}
	if appCfg.MaxUploadMB < 0 {
		return fmt.Errorf("max_upload_mb must not be negative")
	}
	return nil
}
