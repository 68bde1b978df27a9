// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/freshershub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("profiles", profilesSchema())
	ensure("departments", departmentsSchema())
	ensure("resources", resourcesSchema())
	ensure("events", eventsSchema())
	ensure("plans", plansSchema())
	ensure("forum_posts", forumPostsSchema())
	ensure("forum_comments", forumCommentsSchema())
	ensure("notifications", notificationsSchema())
	ensure("warnings", warningsSchema())

	// No validators; the collections are still created up front.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

// nonBlank matches a string with at least one non-space character.
var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func object(required bson.A, props bson.M) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   required,
			"properties": props,
		},
	}
}

func profilesSchema() bson.M {
	return object(bson.A{"email", "full_name", "role"}, bson.M{
		"email":         nonBlank,
		"full_name":     nonBlank,
		"full_name_ci":  bson.M{"bsonType": "string"},
		"student_id":    bson.M{"bsonType": "string"},
		"department_id": bson.M{"bsonType": "string"},
		"role":          bson.M{"enum": bson.A{models.RoleUser, models.RoleAdmin}},
		"is_restricted": bson.M{"bsonType": "bool"},
		"is_visible":    bson.M{"bsonType": "bool"},
	})
}

func departmentsSchema() bson.M {
	return object(bson.A{"code", "name"}, bson.M{
		"code": nonBlank,
		"name": nonBlank,
	})
}

func resourcesSchema() bson.M {
	return object(bson.A{"title", "type", "flow", "status"}, bson.M{
		"department_id": bson.M{"bsonType": "string"},
		"title":         nonBlank,
		"content_url":   bson.M{"bsonType": "string"},
		"type":          bson.M{"enum": bson.A{models.ResourceTypePDF, models.ResourceTypeVideo, models.ResourceTypeLink}},
		"flow":          bson.M{"enum": bson.A{models.FlowResources, models.FlowOrientation}},
		"status":        bson.M{"enum": bson.A{models.StatusPending, models.StatusApproved, models.StatusRejected}},
		"downloads":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
	})
}

func eventsSchema() bson.M {
	return object(bson.A{"title", "start_time", "end_time", "type"}, bson.M{
		"title":       nonBlank,
		"start_time":  bson.M{"bsonType": "date"},
		"end_time":    bson.M{"bsonType": "date"},
		"type":        bson.M{"enum": bson.A{models.EventLecture, models.EventExam, models.EventAssignment, models.EventOther}},
		"departments": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
	})
}

func plansSchema() bson.M {
	return object(bson.A{"user_id", "title", "start_time", "end_time"}, bson.M{
		"user_id":    nonBlank,
		"title":      nonBlank,
		"start_time": bson.M{"bsonType": "date"},
		"end_time":   bson.M{"bsonType": "date"},
		"completed":  bson.M{"bsonType": "bool"},
	})
}

func forumPostsSchema() bson.M {
	return object(bson.A{"author_id", "title", "content"}, bson.M{
		"author_id": nonBlank,
		"title":     nonBlank,
		"content":   bson.M{"bsonType": "string"},
		"flagged":   bson.M{"bsonType": "bool"},
	})
}

func forumCommentsSchema() bson.M {
	return object(bson.A{"post_id", "author_id", "content"}, bson.M{
		"post_id":   nonBlank,
		"author_id": nonBlank,
		"content":   bson.M{"bsonType": "string"},
		"flagged":   bson.M{"bsonType": "bool"},
	})
}

func notificationsSchema() bson.M {
	return object(bson.A{"user_id", "message", "read"}, bson.M{
		"user_id": nonBlank,
		"message": nonBlank,
		"read":    bson.M{"bsonType": "bool"},
	})
}

func warningsSchema() bson.M {
	return object(bson.A{"user_id", "reason"}, bson.M{
		"user_id": nonBlank,
		"reason":  nonBlank,
	})
}
