// Package uuidx generates the v7 UUIDs used for session and tool-call
// identifiers.
package uuidx

import "github.com/google/uuid"

// New returns a new version 7 UUID, panicking if generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a new version 7 UUID rendered as a string.
func NewString() string {
	return New().String()
}
