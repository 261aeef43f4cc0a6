// Package uuid includes tests for the run identifier generator.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestNewIDProducesVersion7 ensures run IDs parse and carry version 7.
// Downstream code re-parses the string form, so it must stay canonical.
func TestNewIDProducesVersion7(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	id, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	parsed, err := goUUID.Parse(id)
	if err != nil {
		t.Fatalf("run id %q is not a valid UUID: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}

// TestNewIDsSortByCreation checks IDs minted in sequence sort in order,
// matching how run listings page through scan_runs.
func TestNewIDsSortByCreation(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	prev, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	for i := 0; i < 8; i++ {
		next, err := gen.NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if next == prev {
			t.Fatalf("expected unique run ids, got %s twice", next)
		}
		if next < prev {
			t.Fatalf("run id %s sorts before earlier %s", next, prev)
		}
		prev = next
	}
}
