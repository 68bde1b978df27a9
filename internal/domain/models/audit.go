package models

import "time"

// AuditEvent is one recorded auth or admin action.
type AuditEvent struct {
	ID        string            `bson:"_id" json:"id"`
	Category  string            `bson:"category" json:"category"`
	EventType string            `bson:"event_type" json:"event_type"`
	ActorID   string            `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	UserID    string            `bson:"user_id,omitempty" json:"user_id,omitempty"`
	IP        string            `bson:"ip,omitempty" json:"ip,omitempty"`
	Success   bool              `bson:"success" json:"success"`
	Reason    string            `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Details   map[string]string `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}
