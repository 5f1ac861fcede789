package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a short session identifier.
// Format: first 8 characters of a type-4 UUID, enough to disambiguate
// the handful of sessions a project root ever holds at once.
func NewSessionID() string {
	return uuid.New().String()[:8]
}
