package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/validators"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := make(map[string]bool)
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{
		"profiles", "departments", "resources", "events", "plans",
		"forum_posts", "forum_comments", "notifications", "warnings", "audit_events",
	} {
		if !have[want] {
			t.Errorf("expected collection %q to exist", want)
		}
	}
}

func TestValidators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	now := time.Now().UTC()

	tests := []struct {
		name    string
		coll    string
		doc     bson.M
		wantErr bool
	}{
		{"valid profile", "profiles", bson.M{"_id": "p1", "email": "a@uni.ac.uk", "full_name": "Ada", "role": "user"}, false},
		{"profile bad role", "profiles", bson.M{"_id": "p2", "email": "b@uni.ac.uk", "full_name": "Bo", "role": "superadmin"}, true},
		{"profile blank name", "profiles", bson.M{"_id": "p3", "email": "c@uni.ac.uk", "full_name": "   ", "role": "user"}, true},
		{"valid department", "departments", bson.M{"_id": "d1", "code": "CS", "name": "Computer Science"}, false},
		{"department missing name", "departments", bson.M{"_id": "d2", "code": "EE"}, true},
		{"valid resource", "resources", bson.M{"_id": "r1", "title": "Guide", "type": "pdf", "flow": "resources", "status": "pending"}, false},
		{"resource bad status", "resources", bson.M{"_id": "r2", "title": "Guide", "type": "pdf", "flow": "resources", "status": "archived"}, true},
		{"valid event", "events", bson.M{"_id": "e1", "title": "Welcome", "start_time": now, "end_time": now.Add(time.Hour), "type": "lecture"}, false},
		{"event bad type", "events", bson.M{"_id": "e2", "title": "Party", "start_time": now, "end_time": now, "type": "party"}, true},
		{"plan missing times", "plans", bson.M{"_id": "pl1", "user_id": "p1", "title": "Study"}, true},
		{"valid notification", "notifications", bson.M{"_id": "n1", "user_id": "p1", "message": "hi", "read": false}, false},
		{"warning missing reason", "warnings", bson.M{"_id": "w1", "user_id": "p1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertOne() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
