package mongobackend

import (
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/tokens"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// NewClient assembles a signed-out backend client on db. A nil storage
// falls back to GridFS in the same database.
func NewClient(db *mongo.Database, issuer *tokens.Issuer, storage backend.Storage, baseURL string, logger *zap.Logger) *backend.Client {
	if storage == nil {
		storage = NewGridFS(db, baseURL)
	}
	return backend.NewClient(
		NewAuth(db, issuer, 0),
		NewTables(db),
		storage,
		NewChangeStreams(db, logger),
	)
}
