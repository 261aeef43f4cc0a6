package scan

import (
	"context"
	"io"
	"time"
)

// Prober executes a single candidate check against the target endpoint.
type Prober interface {
	Probe(ctx context.Context, pin string) (ProbeResult, error)
}

// Journal persists finds durably and derives the resume set from them.
type Journal interface {
	ResumeSet() (map[string]struct{}, error)
	AppendMatch(pin, summary string) error
	AppendPotential(pin string) error
	ClearScratch() error
	ScratchPath() string
	ScratchSize() (int64, error)
}

// Archive writes raw match bodies and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Notifier pushes find notices to Pub/Sub (or similar).
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Recorder persists findings for later inspection.
type Recorder interface {
	RecordFinding(ctx context.Context, f Finding) error
}

// Hasher computes digests for archive keys and find records.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
