// Package uuid mints identifiers for sweep runs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator mints UUIDv7 run identifiers. The time-ordered layout keeps
// scan_runs rows clustered by start time.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a new run identifier in canonical string form.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
