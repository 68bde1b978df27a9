package forumstore

import (
	"encoding/json"
	"time"

	"github.com/dalemusser/freshershub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// postRow and commentRow decode rows whose author and resources columns vary
// in shape: author arrives as a one-element array from a join or as a plain
// document, and resources as an array or a JSON-encoded string.
type postRow struct {
	ID        string        `bson:"_id"`
	AuthorID  string        `bson:"author_id"`
	Author    bson.RawValue `bson:"author"`
	Title     string        `bson:"title"`
	Content   string        `bson:"content"`
	Resources bson.RawValue `bson:"resources"`
	Flagged   bool          `bson:"flagged"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type commentRow struct {
	ID        string        `bson:"_id"`
	PostID    string        `bson:"post_id"`
	AuthorID  string        `bson:"author_id"`
	Author    bson.RawValue `bson:"author"`
	Content   string        `bson:"content"`
	Flagged   bool          `bson:"flagged"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (r postRow) post() models.ForumPost {
	return models.ForumPost{
		ID:        r.ID,
		AuthorID:  r.AuthorID,
		Author:    author(r.Author),
		Title:     r.Title,
		Content:   r.Content,
		Resources: attachments(r.Resources),
		Flagged:   r.Flagged,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r commentRow) comment() models.ForumComment {
	return models.ForumComment{
		ID:        r.ID,
		PostID:    r.PostID,
		AuthorID:  r.AuthorID,
		Author:    author(r.Author),
		Content:   r.Content,
		Flagged:   r.Flagged,
		CreatedAt: r.CreatedAt,
	}
}

func author(v bson.RawValue) *models.ProfileSummary {
	switch v.Type {
	case bson.TypeArray:
		var list []models.ProfileSummary
		if err := v.Unmarshal(&list); err != nil || len(list) == 0 {
			return nil
		}
		return &list[0]
	case bson.TypeEmbeddedDocument:
		var s models.ProfileSummary
		if err := v.Unmarshal(&s); err != nil {
			return nil
		}
		return &s
	}
	return nil
}

func attachments(v bson.RawValue) []models.Attachment {
	var list []models.Attachment
	switch v.Type {
	case bson.TypeArray:
		if err := v.Unmarshal(&list); err != nil {
			return nil
		}
	case bson.TypeString:
		s := v.StringValue()
		if s == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil
		}
	}
	return list
}
