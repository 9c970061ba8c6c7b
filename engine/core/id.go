package core

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a unique identifier for persisted entities. IDs are time-ordered
// (UUID v1) so ledger rows sort roughly by creation time.
type ID string

// NewID generates a new time-ordered ID.
func NewID() (ID, error) {
	u, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return ID(u.String()), nil
}

// MustNewID generates a new ID and panics on failure.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}
