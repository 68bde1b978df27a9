// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
type AppConfig struct {
	// Backend selection: "mongo" (default) or "memory" for local development.
	BackendMode string

	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Access tokens issued by the auth service
	JWTSecret      string
	AccessTokenTTL time.Duration

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: freshershub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// File storage configuration
	StorageType      string // "gridfs" or "s3"
	StorageS3Region  string
	StorageS3Bucket  string
	StorageS3Prefix  string
	StoragePublicURL string // Base URL objects are served from (CDN or bucket website)

	// Base URL the app is reachable at; stored file URLs are built from it.
	BaseURL string

	// Redis cache for unread notification counts. Empty addr disables it.
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	UnreadCacheTTL time.Duration

	// Event notification fan-out: "all" or "department".
	FanoutPolicy string

	// Uploads
	UploadCompensate bool // remove stored files whose metadata row failed
	MaxUploadMB      int
	UploadTimeout    time.Duration

	// Error reporting
	SentryDSN string

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogAdmin string

	// Profile promoted to admin on startup
	AdminEmail string
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (c AppConfig) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadMB) << 20
}
