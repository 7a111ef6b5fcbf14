// Package tcp binds links to TCP streams. The master dials every worker;
// each worker listens and accepts exactly one master connection.
package tcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/internal/transport"
	"github.com/bft-labs/distsolve/pkg/log"
)

// DefaultDialTimeout bounds how long the master waits for a worker to come up.
const DefaultDialTimeout = 30 * time.Second

// Transport creates TCP links.
type Transport struct {
	transport.Lifecycle

	dialTimeout time.Duration
	logger      log.Logger
}

// New returns a closed TCP transport.
func New(dialTimeout time.Duration, logger log.Logger) *Transport {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Transport{dialTimeout: dialTimeout, logger: logger}
}

// Name implements ports.Transport.
func (t *Transport) Name() string { return "tcp" }

// Open implements ports.Transport.
func (t *Transport) Open(ctx context.Context) error {
	return t.Lifecycle.Open(ctx, nil)
}

// Close implements ports.Transport.
func (t *Transport) Close() error {
	return t.Lifecycle.Close(nil)
}

// Dial connects to addr, retrying with backoff until the dial timeout expires.
func (t *Transport) Dial(ctx context.Context, addr string) (ports.Link, error) {
	if !t.IsOpen() {
		return nil, fmt.Errorf("dial %s: %w", addr, domain.ErrNotConnected)
	}
	ctx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	var d net.Dialer
	b := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			t.logger.Debug("dialed worker", log.String("addr", addr), log.Int("attempt", attempt))
			return newLink(conn), nil
		}
		t.logger.Debug("dial failed, retrying", log.String("addr", addr), log.Int("attempt", attempt), log.Err(err))
		if werr := b.Wait(ctx); werr != nil {
			return nil, fmt.Errorf("dial %s: %w: %v", addr, domain.ErrTransport, err)
		}
	}
}

// DialAll dials every address concurrently and returns links in address order.
func (t *Transport) DialAll(ctx context.Context, addrs []string) ([]ports.Link, error) {
	links := make([]ports.Link, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addrs {
		g.Go(func() error {
			l, err := t.Dial(gctx, addr)
			if err != nil {
				return err
			}
			links[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, l := range links {
			if l != nil {
				l.Close()
			}
		}
		return nil, err
	}
	return links, nil
}

// Listener accepts the master's connection on the worker side.
type Listener struct {
	ln net.Listener
}

// Listen binds addr.
func (t *Transport) Listen(addr string) (*Listener, error) {
	if !t.IsOpen() {
		return nil, fmt.Errorf("listen %s: %w", addr, domain.ErrNotConnected)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Accept waits for one connection or for ctx to end.
func (l *Listener) Accept(ctx context.Context) (ports.Link, error) {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()
	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w: %v", domain.ErrTransport, err)
	}
	return newLink(conn), nil
}

// Close stops listening.
func (l *Listener) Close() error { return l.ln.Close() }

// recvPrealloc caps the buffer reserved before a transfer's bytes arrive.
const recvPrealloc = 64 << 10

// link adapts a stream connection. Chunk boundaries are not preserved on
// the wire; the framing layer reads exact sizes so they need not be.
type link struct {
	conn net.Conn
}

func newLink(conn net.Conn) *link {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &link{conn: conn}
}

func (l *link) Send(ctx context.Context, chunk []byte) error {
	stop := l.watch(ctx)
	defer stop()
	if _, err := l.conn.Write(chunk); err != nil {
		return l.mapErr(ctx, err)
	}
	return nil
}

func (l *link) Recv(ctx context.Context, n int) ([]byte, error) {
	stop := l.watch(ctx)
	defer stop()
	// The buffer grows with the bytes that actually arrive, so a large
	// declared size costs nothing until the peer sends it.
	var buf bytes.Buffer
	buf.Grow(min(n, recvPrealloc))
	if _, err := io.CopyN(&buf, l.conn, int64(n)); err != nil {
		if errors.Is(err, io.EOF) && buf.Len() > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, l.mapErr(ctx, err)
	}
	return buf.Bytes(), nil
}

func (l *link) Close() error { return l.conn.Close() }

// watch interrupts blocked I/O when ctx ends.
func (l *link) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() { l.conn.SetDeadline(time.Now()) })
	return func() {
		if !stop() {
			l.conn.SetDeadline(time.Time{})
		}
	}
}

func (l *link) mapErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("tcp %s: %w", l.conn.RemoteAddr(), domain.ErrShortRead)
	}
	return fmt.Errorf("tcp %s: %w: %v", l.conn.RemoteAddr(), domain.ErrTransport, err)
}

var (
	_ ports.Transport = (*Transport)(nil)
	_ ports.Link      = (*link)(nil)
)
