package models

import "time"

type Resource struct {
	ID           string `bson:"_id" json:"id"`
	DepartmentID string `bson:"department_id" json:"department_id"`
	UploaderID   string `bson:"uploader_id,omitempty" json:"uploader_id,omitempty"`

	Title       string `bson:"title" json:"title"`
	TitleCI     string `bson:"title_ci" json:"-"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// ContentURL is either the external link or the public URL of the stored object.
	ContentURL  string `bson:"content_url" json:"content_url"`
	StoragePath string `bson:"storage_path,omitempty" json:"storage_path,omitempty"`

	Type   string `bson:"type" json:"type"`     // pdf | video | link
	Flow   string `bson:"flow" json:"flow"`     // resources | orientation
	Status string `bson:"status" json:"status"` // pending | approved | rejected

	Downloads int64 `bson:"downloads" json:"downloads"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
