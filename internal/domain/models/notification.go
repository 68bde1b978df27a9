package models

import "time"

// Notification type tags.
const (
	NotifyRole        = "role"
	NotifyWarning     = "warning"
	NotifyRestriction = "restriction"
	NotifyEvent       = "event"
	NotifyBroadcast   = "broadcast"
	NotifyResource    = "resource"
)

type Notification struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Message   string    `bson:"message" json:"message"`
	Read      bool      `bson:"read" json:"read"`
	Type      string    `bson:"type,omitempty" json:"type,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Warning is an append-only moderation entry counted against a user.
type Warning struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Reason    string    `bson:"reason" json:"reason"`
	IssuedBy  string    `bson:"issued_by,omitempty" json:"issued_by,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
