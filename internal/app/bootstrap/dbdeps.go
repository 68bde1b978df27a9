// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	eventsfeature "github.com/dalemusser/freshershub/internal/app/features/events"
	"github.com/dalemusser/freshershub/internal/app/system/cache"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/memory"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	// Set in mongo mode only.
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Set in memory mode only.
	Memory *memory.Backend

	// Backend is the signed-out client every request session derives from.
	Backend *backend.Client

	// Cache is nil when redis_addr is empty.
	Cache *cache.Client

	// Runtime carries resources created after ConnectDB that Shutdown must
	// release. Hooks receive DBDeps by value, so it is a pointer.
	Runtime *Runtime
}

// Runtime holds long-lived resources started by later hooks.
type Runtime struct {
	events      *eventsfeature.Handler
	flushSentry func()
}
