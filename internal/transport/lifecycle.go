package transport

import (
	"context"
	"sync"
)

// Lifecycle tracks the process-wide open/closed state of a transport.
// Adapters embed it so that Open and Close are idempotent.
type Lifecycle struct {
	mu   sync.Mutex
	open bool
}

// Open runs start once per closed-to-open transition. Calling Open on an
// open transport does nothing.
func (l *Lifecycle) Open(ctx context.Context, start func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		return nil
	}
	if start != nil {
		if err := start(ctx); err != nil {
			return err
		}
	}
	l.open = true
	return nil
}

// Close runs stop once per open-to-closed transition. Calling Close on a
// closed transport does nothing.
func (l *Lifecycle) Close(stop func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return nil
	}
	l.open = false
	if stop != nil {
		return stop()
	}
	return nil
}

// IsOpen reports whether the transport is open.
func (l *Lifecycle) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}
