package models

import "time"

// Attachment references a library resource from a forum post.
type Attachment struct {
	ResourceID string `bson:"resource_id,omitempty" json:"resource_id,omitempty"`
	Title      string `bson:"title" json:"title"`
	URL        string `bson:"url" json:"url"`
}

type ForumPost struct {
	ID        string          `bson:"_id" json:"id"`
	AuthorID  string          `bson:"author_id" json:"author_id"`
	Author    *ProfileSummary `bson:"-" json:"author,omitempty"`
	Title     string          `bson:"title" json:"title"`
	Content   string          `bson:"content" json:"content"`
	Resources []Attachment    `bson:"resources,omitempty" json:"resources,omitempty"`
	Flagged   bool            `bson:"flagged" json:"flagged"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at" json:"updated_at"`
}

type ForumComment struct {
	ID        string          `bson:"_id" json:"id"`
	PostID    string          `bson:"post_id" json:"post_id"`
	AuthorID  string          `bson:"author_id" json:"author_id"`
	Author    *ProfileSummary `bson:"-" json:"author,omitempty"`
	Content   string          `bson:"content" json:"content"`
	Flagged   bool            `bson:"flagged" json:"flagged"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
}
