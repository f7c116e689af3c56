// Package audit records security-relevant events emitted by the
// permission engine: checks that were denied, role grants and revokes,
// and cache lifecycle operations.
package audit

import (
	"context"
	"sync"
)

// Logger receives audit events. Implementations must be safe for
// concurrent use.
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Close() error
}

// NopLogger drops every event. Used when auditing is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }

// MemoryLogger retains events in memory. Intended for tests.
type MemoryLogger struct {
	mu     sync.Mutex
	events []*Event
}

// NewMemoryLogger creates an empty in-memory logger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(_ context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *MemoryLogger) Close() error { return nil }

// Events returns a copy of everything logged so far
func (l *MemoryLogger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Event, len(l.events))
	copy(out, l.events)
	return out
}
