package util

import (
	"github.com/google/uuid"
)

// NewUUID returns a UUIDv7 string, or a random UUIDv4 when the clock-based
// generator fails.
func NewUUID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
