package inputval

import (
	"strings"

	"github.com/dalemusser/freshershub/internal/domain/models"
)

// IsValidResourceType reports whether s names a resource kind.
func IsValidResourceType(s string) bool {
	return models.IsValidResourceType(strings.ToLower(strings.TrimSpace(s)))
}

// IsValidEventType reports whether s names an event kind.
func IsValidEventType(s string) bool {
	return models.IsValidEventType(strings.ToLower(strings.TrimSpace(s)))
}
