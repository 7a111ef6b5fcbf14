// Package pool implements ports.ConnectionSet over framed connections.
package pool

import (
	"context"
	"fmt"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/pkg/log"
)

// DefaultMaxMessageBytes is the receive capacity used when none is configured.
const DefaultMaxMessageBytes = 64 << 20

// Set is an ordered, fixed-size pool of connections to one group of workers.
// It is not safe for concurrent use; the master is its only caller.
type Set struct {
	name     string
	conns    []ports.Conn
	capacity int
	metrics  ports.Metrics
	logger   log.Logger
}

// Option configures a Set.
type Option func(*Set)

// WithMaxMessageBytes sets the receive capacity. Longer messages are truncated.
func WithMaxMessageBytes(n int) Option {
	return func(s *Set) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithMetrics records every message written or read.
func WithMetrics(m ports.Metrics) Option {
	return func(s *Set) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Set) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a pool named name. The slice order fixes the worker indexes.
func New(name string, conns []ports.Conn, opts ...Option) *Set {
	s := &Set{
		name:     name,
		conns:    append([]ports.Conn(nil), conns...),
		capacity: DefaultMaxMessageBytes,
		logger:   log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements ports.ConnectionSet.
func (s *Set) Name() string { return s.name }

// Size implements ports.ConnectionSet.
func (s *Set) Size() int { return len(s.conns) }

// Write implements ports.ConnectionSet.
func (s *Set) Write(ctx context.Context, index int, msg []byte) error {
	c, err := s.member(index)
	if err != nil {
		return err
	}
	if err := c.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s[%d] write: %w", s.name, index, err)
	}
	if s.metrics != nil {
		s.metrics.MessageSent(s.name, len(msg))
	}
	s.logger.Debug("wrote message", log.String("pool", s.name), log.Int("index", index), log.Int("bytes", len(msg)))
	return nil
}

// WriteAll implements ports.ConnectionSet. Members already written before a
// failure are not rolled back.
func (s *Set) WriteAll(ctx context.Context, msg []byte) error {
	for i := range s.conns {
		if err := s.Write(ctx, i, msg); err != nil {
			return err
		}
	}
	return nil
}

// Read implements ports.ConnectionSet.
func (s *Set) Read(ctx context.Context, index int) ([]byte, error) {
	c, err := s.member(index)
	if err != nil {
		return nil, err
	}
	msg, err := c.Receive(ctx, s.capacity)
	if err != nil {
		return nil, fmt.Errorf("%s[%d] read: %w", s.name, index, err)
	}
	if s.metrics != nil {
		s.metrics.MessageReceived(s.name, len(msg))
	}
	s.logger.Debug("read message", log.String("pool", s.name), log.Int("index", index), log.Int("bytes", len(msg)))
	return msg, nil
}

// Close closes every member and returns the first error.
func (s *Set) Close() error {
	var first error
	for i, c := range s.conns {
		if err := c.Close(); err != nil && first == nil {
			first = fmt.Errorf("%s[%d] close: %w", s.name, i, err)
		}
	}
	return first
}

func (s *Set) member(index int) (ports.Conn, error) {
	if index < 0 || index >= len(s.conns) {
		return nil, fmt.Errorf("%s[%d]: %w: size %d", s.name, index, domain.ErrIndexOutOfRange, len(s.conns))
	}
	return s.conns[index], nil
}

var _ ports.ConnectionSet = (*Set)(nil)
