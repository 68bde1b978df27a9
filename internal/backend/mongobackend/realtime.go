package mongobackend

import (
	"context"
	"fmt"

	"github.com/dalemusser/freshershub/internal/backend"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ChangeStreams implements backend.Realtime with MongoDB change streams.
// Change streams need a replica set or sharded cluster.
type ChangeStreams struct {
	db  *mongo.Database
	log *zap.Logger
}

// NewChangeStreams wraps db.
func NewChangeStreams(db *mongo.Database, logger *zap.Logger) *ChangeStreams {
	return &ChangeStreams{db: db, log: logger}
}

type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
}

func (c *ChangeStreams) Subscribe(ctx context.Context, table string) (*backend.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	cs, err := c.db.Collection(table).Watch(streamCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", table, err)
	}

	out := make(chan backend.ChangeEvent)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		for cs.Next(streamCtx) {
			var doc changeDoc
			if err := cs.Decode(&doc); err != nil {
				c.log.Warn("change stream decode failed", zap.String("table", table), zap.Error(err))
				continue
			}
			op, ok := opFor(doc.OperationType)
			if !ok {
				continue
			}
			ev := backend.ChangeEvent{Table: table, Op: op, ID: fmt.Sprint(doc.DocumentKey.ID)}
			select {
			case out <- ev:
			case <-streamCtx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && streamCtx.Err() == nil {
			c.log.Error("change stream ended", zap.String("table", table), zap.Error(err))
		}
	}()

	return backend.NewSubscription(out, cancel), nil
}

func opFor(operationType string) (string, bool) {
	switch operationType {
	case "insert":
		return backend.OpInsert, true
	case "update", "replace":
		return backend.OpUpdate, true
	case "delete":
		return backend.OpDelete, true
	}
	return "", false
}
