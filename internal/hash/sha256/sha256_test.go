// Package sha256 includes tests for the find body hasher.
package sha256

import "testing"

// TestHashKnownBody verifies the digest of a representative find body.
func TestHashKnownBody(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("<html><body>Answers for 2025</body></html>"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "e40c7bc595d3b2b686c16e04635fb3368d39a95ba87b7198421a06a60af4f3de"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	again, err := h.Hash([]byte("<html><body>Answers for 2025</body></html>"))
	if err != nil {
		t.Fatalf("Hash() repeat error = %v", err)
	}
	if again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
}

// TestHashDigestShape checks the digest is 64 lowercase hex characters.
// Archive object names embed a digest prefix, so the shape must hold.
func TestHashDigestShape(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("<html><body>Invalid PIN</body></html>"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
	for i := 0; i < len(got); i++ {
		c := got[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("unexpected digest character %q in %s", c, got)
		}
	}
}

// TestHashDistinguishesBodies ensures different bodies get different digests.
func TestHashDistinguishesBodies(t *testing.T) {
	t.Parallel()

	h := New()
	match, err := h.Hash([]byte("<html><body>Answers for 2025</body></html>"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	reject, err := h.Hash([]byte("<html><body>Invalid PIN</body></html>"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if match == reject {
		t.Fatalf("expected distinct digests, both were %s", match)
	}
}
