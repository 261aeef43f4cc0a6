// Package memory contains an in-memory publisher used when no Pub/Sub
// project is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Notice is one recorded publish call.
type Notice struct {
	Topic   string
	Payload any
}

// Publisher keeps find notices in process. Sweeps run fine without a
// broker; the notices stay inspectable afterwards.
type Publisher struct {
	mu      sync.Mutex
	notices []Notice
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the notice and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, Notice{Topic: topic, Payload: payload})
	return fmt.Sprintf("local-%s-%d", topic, len(p.notices)), nil
}

// Notices returns a copy of the recorded publishes.
func (p *Publisher) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notice, len(p.notices))
	copy(out, p.notices)
	return out
}
