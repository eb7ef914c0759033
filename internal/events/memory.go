package events

import (
	"context"
	"sync"
)

// MemoryPublisher collects published envelopes in memory for tests.
type MemoryPublisher struct {
	mu        sync.Mutex
	published []Envelope
}

// NewMemoryPublisher returns an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements Publisher.
func (p *MemoryPublisher) Publish(_ context.Context, envelope Envelope) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, envelope)
	return envelope.EventID, nil
}

// Published returns a copy of every envelope published so far.
func (p *MemoryPublisher) Published() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.published))
	copy(out, p.published)
	return out
}

// OfType returns the published envelopes matching the given event type.
func (p *MemoryPublisher) OfType(eventType string) []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Envelope
	for _, e := range p.published {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
