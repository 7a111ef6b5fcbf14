package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/pkg/log"
)

// DefaultChunkMax is the per-transfer ceiling: the largest signed 32-bit count.
const DefaultChunkMax = math.MaxInt32

// DefaultMaxFrame is the largest message length a peer may declare. A header
// above it fails the receive before any payload is read.
const DefaultMaxFrame = 1 << 30

// headerSize is the width of the length prefix.
const headerSize = 8

// Connection is a framed, blocking connection to one peer.
type Connection struct {
	link     ports.Link
	peer     string
	chunkMax int
	maxFrame int
	metrics  ports.Metrics
	logger   log.Logger
	closed   atomic.Bool
}

// Option configures a Connection.
type Option func(*Connection)

// WithChunkMax bounds the size of a single link transfer.
func WithChunkMax(n int) Option {
	return func(c *Connection) {
		if n > 0 {
			c.chunkMax = n
		}
	}
}

// WithMaxFrame bounds the message length a peer may declare.
func WithMaxFrame(n int) Option {
	return func(c *Connection) {
		if n > 0 {
			c.maxFrame = n
		}
	}
}

// WithMetrics records every chunk transfer.
func WithMetrics(m ports.Metrics) Option {
	return func(c *Connection) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the logger used for transport failures.
func WithLogger(l log.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConnection wraps link with chunked length-prefix framing.
func NewConnection(link ports.Link, peer string, opts ...Option) *Connection {
	c := &Connection{
		link:     link,
		peer:     peer,
		chunkMax: DefaultChunkMax,
		maxFrame: DefaultMaxFrame,
		logger:   log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peer returns the label of the remote endpoint.
func (c *Connection) Peer() string { return c.peer }

// MaxFrame returns the largest message length accepted from the peer.
func (c *Connection) MaxFrame() int { return c.maxFrame }

// ChunkMax returns the per-transfer ceiling in use.
func (c *Connection) ChunkMax() int { return c.chunkMax }

// IsConnected reports whether the connection has not been closed.
func (c *Connection) IsConnected() bool {
	return !c.closed.Load()
}

// Close closes the underlying link. Closing twice is a no-op.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.link.Close()
}

// Send transmits payload as a length header plus ceil(len/ChunkMax) chunks.
func (c *Connection) Send(ctx context.Context, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("send to %s: %w", c.peer, domain.ErrNotConnected)
	}
	var header [headerSize]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))
	if err := c.transfer(ctx, header[:]); err != nil {
		return err
	}
	for off := 0; off < len(payload); off += c.chunkMax {
		end := off + c.chunkMax
		if end > len(payload) || end < off {
			end = len(payload)
		}
		if err := c.transfer(ctx, payload[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// Receive reads the next message and returns at most capacity bytes of it.
// A non-positive capacity keeps the whole message.
func (c *Connection) Receive(ctx context.Context, capacity int) ([]byte, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("receive from %s: %w", c.peer, domain.ErrNotConnected)
	}
	header, err := c.recv(ctx, headerSize)
	if err != nil {
		return nil, err
	}
	declared := binary.BigEndian.Uint64(header)
	if declared > uint64(c.maxFrame) {
		c.logger.Error("declared length exceeds frame limit",
			log.String("peer", c.peer),
			log.Uint64("declared", declared),
			log.Int("limit", c.maxFrame),
		)
		return nil, fmt.Errorf("receive from %s: %w: declared length %d exceeds %d", c.peer, domain.ErrTransport, declared, c.maxFrame)
	}
	length := int(declared)
	keep := length
	if capacity > 0 && capacity < keep {
		keep = capacity
	}

	buf := make([]byte, 0, min(keep, 1<<20))
	for remaining := length; remaining > 0; {
		n := remaining
		if n > c.chunkMax {
			n = c.chunkMax
		}
		chunk, err := c.recv(ctx, n)
		if err != nil {
			return nil, err
		}
		if room := keep - len(buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			buf = append(buf, chunk...)
		}
		remaining -= n
	}
	if keep < length {
		c.logger.Warn("message truncated to receive capacity",
			log.String("peer", c.peer),
			log.Int("length", length),
			log.Int("capacity", keep),
		)
	}
	return buf, nil
}

func (c *Connection) transfer(ctx context.Context, chunk []byte) error {
	if err := c.link.Send(ctx, chunk); err != nil {
		return c.fail("send", err)
	}
	if c.metrics != nil {
		c.metrics.ChunkSent(len(chunk))
	}
	return nil
}

func (c *Connection) recv(ctx context.Context, n int) ([]byte, error) {
	b, err := c.link.Recv(ctx, n)
	if err != nil {
		return nil, c.fail("receive", err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("receive %s: %w: got %d bytes, want %d", c.peer, domain.ErrShortRead, len(b), n)
	}
	return b, nil
}

func (c *Connection) fail(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", op, c.peer, err)
	}
	c.logger.Error("transport failure", log.String("op", op), log.String("peer", c.peer), log.Err(err))
	if errors.Is(err, domain.ErrTransport) || errors.Is(err, domain.ErrShortRead) || errors.Is(err, domain.ErrNotConnected) {
		return fmt.Errorf("%s %s: %w", op, c.peer, err)
	}
	return fmt.Errorf("%s %s: %w: %v", op, c.peer, domain.ErrTransport, err)
}

var _ ports.Conn = (*Connection)(nil)
