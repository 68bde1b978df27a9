package models

import "time"

// Event types stored in Event.Type.
const (
	EventLecture    = "lecture"
	EventExam       = "exam"
	EventAssignment = "assignment"
	EventOther      = "other"
)

// IsValidEventType reports whether t is a known event type.
func IsValidEventType(t string) bool {
	switch t {
	case EventLecture, EventExam, EventAssignment, EventOther:
		return true
	}
	return false
}

// Event is an admin-managed calendar entry. Departments, when non-empty,
// scopes the entry to those departments.
type Event struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	StartTime   time.Time `bson:"start_time" json:"start_time"`
	EndTime     time.Time `bson:"end_time" json:"end_time"`
	Location    string    `bson:"location,omitempty" json:"location,omitempty"`
	Type        string    `bson:"type" json:"type"`
	Departments []string  `bson:"departments,omitempty" json:"departments,omitempty"`
	CreatedBy   string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Plan is a user-private calendar entry.
type Plan struct {
	ID          string     `bson:"_id" json:"id"`
	UserID      string     `bson:"user_id" json:"user_id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	StartTime   time.Time  `bson:"start_time" json:"start_time"`
	EndTime     time.Time  `bson:"end_time" json:"end_time"`
	ReminderAt  *time.Time `bson:"reminder_at,omitempty" json:"reminder_at,omitempty"`
	Color       string     `bson:"color,omitempty" json:"color,omitempty"`
	Completed   bool       `bson:"completed" json:"completed"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
}
