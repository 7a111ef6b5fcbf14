// Package mem is an in-process transport. Links are pairs of buffered
// channels, which makes it suitable for tests and single-process runs where
// the master and its workers are goroutines.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/internal/transport"
)

// DefaultDepth is the number of transfers a direction buffers before Send blocks.
const DefaultDepth = 1024

// Network creates connected link pairs.
type Network struct {
	transport.Lifecycle

	depth int

	mu    sync.Mutex
	pipes []*pipe
}

// NewNetwork returns a closed network. depth <= 0 selects DefaultDepth.
func NewNetwork(depth int) *Network {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Network{depth: depth}
}

// Name implements ports.Transport.
func (n *Network) Name() string { return "mem" }

// Open implements ports.Transport.
func (n *Network) Open(ctx context.Context) error {
	return n.Lifecycle.Open(ctx, nil)
}

// Close implements ports.Transport. It closes every pipe created so far.
func (n *Network) Close() error {
	return n.Lifecycle.Close(func() error {
		n.mu.Lock()
		defer n.mu.Unlock()
		for _, p := range n.pipes {
			p.shutdown()
		}
		n.pipes = nil
		return nil
	})
}

// Pipe returns the two ends of a new link: one for the master, one for the worker.
func (n *Network) Pipe() (ports.Link, ports.Link, error) {
	if !n.IsOpen() {
		return nil, nil, fmt.Errorf("mem pipe: %w", domain.ErrNotConnected)
	}
	p := &pipe{
		down: make(chan []byte, n.depth),
		up:   make(chan []byte, n.depth),
		done: make(chan struct{}),
	}
	n.mu.Lock()
	n.pipes = append(n.pipes, p)
	n.mu.Unlock()
	return &end{p: p, out: p.down, in: p.up}, &end{p: p, out: p.up, in: p.down}, nil
}

type pipe struct {
	down chan []byte
	up   chan []byte
	done chan struct{}
	once sync.Once
}

func (p *pipe) shutdown() {
	p.once.Do(func() { close(p.done) })
}

// end is one side of a pipe.
type end struct {
	p   *pipe
	out chan<- []byte
	in  <-chan []byte
}

func (e *end) Send(ctx context.Context, chunk []byte) error {
	buf := append([]byte(nil), chunk...)
	select {
	case <-e.p.done:
		return fmt.Errorf("mem send: %w", domain.ErrNotConnected)
	default:
	}
	select {
	case e.out <- buf:
		return nil
	case <-e.p.done:
		return fmt.Errorf("mem send: %w", domain.ErrNotConnected)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *end) Recv(ctx context.Context, n int) ([]byte, error) {
	select {
	case b := <-e.in:
		return checkTransfer(b, n)
	case <-e.p.done:
		// Transfers queued before the close are still delivered.
		select {
		case b := <-e.in:
			return checkTransfer(b, n)
		default:
			return nil, fmt.Errorf("mem recv: %w", domain.ErrNotConnected)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func checkTransfer(b []byte, n int) ([]byte, error) {
	if len(b) != n {
		return nil, fmt.Errorf("mem recv: %w: transfer of %d bytes, want %d", domain.ErrShortRead, len(b), n)
	}
	return b, nil
}

// Close shuts down both directions of the pipe.
func (e *end) Close() error {
	e.p.shutdown()
	return nil
}

var (
	_ ports.Transport = (*Network)(nil)
	_ ports.Link      = (*end)(nil)
)
