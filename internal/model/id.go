package model

import "github.com/google/uuid"

// NewID returns a fresh node id. Ids are random UUIDs and are never reused.
func NewID() string {
	return uuid.New().String()
}
