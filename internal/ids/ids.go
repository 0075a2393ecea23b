// Package ids generates opaque, stable identities for procedure kernel
// entities (Tasks, Pending Events). Identities are UUIDv7 so natural sort
// order tracks creation order, which is convenient when eyeballing logs.
package ids

import "github.com/google/uuid"

// New returns a new opaque identity string.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}
