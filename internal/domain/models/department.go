// internal/domain/models/department.go
package models

// Department is static reference data managed by admins.
type Department struct {
	ID   string `bson:"_id" json:"id"`
	Code string `bson:"code" json:"code"`
	Name string `bson:"name" json:"name"`
}
