package utils

import "github.com/google/uuid"

// GenerateID returns a new opaque identifier.
func GenerateID() string {
	return uuid.NewString()
}
