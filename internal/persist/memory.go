package persist

import (
	"context"
	"sync"

	"github.com/omnibrowser/redix/internal/event"
)

// Memory is the in-process adapter: no durability, no failure modes. It
// backs tests, ephemeral runtimes, and the degraded mode of real backends.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []event.Event
	closed bool
}

// NewMemory creates an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{}
}

// Init implements Adapter. Never fails.
func (m *Memory) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Append implements Adapter. Duplicate event IDs are ignored.
func (m *Memory) Append(ctx context.Context, ev event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, existing := range m.events {
		if existing.ID == ev.ID {
			return nil
		}
	}
	m.events = append(m.events, ev)
	return nil
}

// Load implements Adapter.
func (m *Memory) Load(ctx context.Context) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]event.Event, len(m.events))
	copy(out, m.events)
	return out, nil
}

// Truncate implements Adapter.
func (m *Memory) Truncate(ctx context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if keep < 0 {
		keep = 0
	}
	if keep < len(m.events) {
		for i := keep; i < len(m.events); i++ {
			m.events[i] = event.Event{}
		}
		m.events = m.events[:keep]
	}
	return nil
}

// Reset implements Adapter.
func (m *Memory) Reset(ctx context.Context) error {
	return m.Truncate(ctx, 0)
}

// Close implements Adapter. Idempotent.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
