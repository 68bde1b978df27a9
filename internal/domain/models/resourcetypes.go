// internal/domain/models/resourcetypes.go
package models

// Content kinds stored in Resource.Type.
const (
	ResourceTypePDF   = "pdf"
	ResourceTypeVideo = "video"
	ResourceTypeLink  = "link"
)

// Workflow tags stored in Resource.Flow.
const (
	FlowResources   = "resources"
	FlowOrientation = "orientation"
)

// Moderation states stored in Resource.Status. Every resource starts pending.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ResourceTypes is the full set of allowed content kinds.
var ResourceTypes = []string{ResourceTypePDF, ResourceTypeVideo, ResourceTypeLink}

// IsValidResourceType reports whether t is an allowed content kind.
func IsValidResourceType(t string) bool {
	for _, v := range ResourceTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsValidFlow reports whether f is a known workflow tag.
func IsValidFlow(f string) bool {
	return f == FlowResources || f == FlowOrientation
}

// IsValidResourceStatus reports whether s is one of the three moderation states.
func IsValidResourceStatus(s string) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}
