// Package natslink carries links over NATS core subjects.
//
// Every master/worker link owns a subject pair under a configurable prefix:
//
//	<prefix>.<pool>.<index>.down   master -> worker
//	<prefix>.<pool>.<index>.up     worker -> master
//	<prefix>.<pool>.<index>.ready  handshake request/reply
//
// One publishing connection per side and one subscriber per subject keep
// each direction FIFO, which is all the framing layer needs.
package natslink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/internal/transport"
	"github.com/bft-labs/distsolve/pkg/log"
)

// DefaultPrefix is the subject root used when none is configured.
const DefaultPrefix = "distsolve"

// The master repeats the ready request until the worker answers or ctx ends.
const (
	handshakeTimeout = 250 * time.Millisecond
	handshakeRetry   = 50 * time.Millisecond
)

// Config holds the NATS connection settings.
type Config struct {
	URL    string
	Prefix string
	Name   string
}

// Transport owns one NATS connection shared by every link it creates.
type Transport struct {
	transport.Lifecycle

	cfg    Config
	logger log.Logger

	mu sync.Mutex
	nc *nats.Conn
}

// New returns a closed NATS transport.
func New(cfg Config, logger log.Logger) *Transport {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Transport{cfg: cfg, logger: logger}
}

// Name implements ports.Transport.
func (t *Transport) Name() string { return "nats" }

// Open connects to the server.
func (t *Transport) Open(ctx context.Context) error {
	return t.Lifecycle.Open(ctx, func(context.Context) error {
		opts := []nats.Option{
			nats.Timeout(2 * time.Second),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(3),
		}
		if t.cfg.Name != "" {
			opts = append(opts, nats.Name(t.cfg.Name))
		}
		nc, err := nats.Connect(t.cfg.URL, opts...)
		if err != nil {
			return fmt.Errorf("connect %s: %w: %v", t.cfg.URL, domain.ErrTransport, err)
		}
		t.mu.Lock()
		t.nc = nc
		t.mu.Unlock()
		t.logger.Info("nats transport open", log.String("url", t.cfg.URL), log.String("prefix", t.cfg.Prefix))
		return nil
	})
}

// Close drains pending publishes and closes the connection.
func (t *Transport) Close() error {
	return t.Lifecycle.Close(func() error {
		t.mu.Lock()
		nc := t.nc
		t.nc = nil
		t.mu.Unlock()
		if nc == nil {
			return nil
		}
		if err := nc.Flush(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			t.logger.Warn("nats flush on close failed", log.Err(err))
		}
		nc.Close()
		return nil
	})
}

// ChunkMax returns the largest transfer the server accepts.
func (t *Transport) ChunkMax() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nc == nil {
		return 0
	}
	return int(t.nc.MaxPayload())
}

// Subject returns the subject for one direction of a link.
func (t *Transport) Subject(pool string, index int, dir string) string {
	return fmt.Sprintf("%s.%s.%d.%s", t.cfg.Prefix, pool, index, dir)
}

func (t *Transport) conn() (*nats.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nc == nil {
		return nil, domain.ErrNotConnected
	}
	return t.nc, nil
}

// Dial opens the master end of the link to worker index of pool. It blocks
// until the worker answers the ready handshake or ctx ends.
func (t *Transport) Dial(ctx context.Context, pool string, index int) (ports.Link, error) {
	nc, err := t.conn()
	if err != nil {
		return nil, fmt.Errorf("dial %s[%d]: %w", pool, index, err)
	}
	up, err := nc.SubscribeSync(t.Subject(pool, index, "up"))
	if err != nil {
		return nil, fmt.Errorf("dial %s[%d]: %w: %v", pool, index, domain.ErrTransport, err)
	}
	up.SetPendingLimits(-1, -1)

	ready := t.Subject(pool, index, "ready")
	for attempt := 1; ; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
		_, err := nc.RequestWithContext(rctx, ready, nil)
		cancel()
		if err == nil {
			t.logger.Debug("worker ready", log.String("pool", pool), log.Int("index", index), log.Int("attempt", attempt))
			break
		}
		// No responders comes back at once; pause before asking again.
		select {
		case <-ctx.Done():
			up.Unsubscribe()
			return nil, fmt.Errorf("dial %s[%d]: %w", pool, index, ctx.Err())
		case <-time.After(handshakeRetry):
		}
	}
	return &link{nc: nc, out: t.Subject(pool, index, "down"), in: up}, nil
}

// Accept opens the worker end of the link for index of pool. It returns
// once the master has completed the ready handshake.
func (t *Transport) Accept(ctx context.Context, pool string, index int) (ports.Link, error) {
	nc, err := t.conn()
	if err != nil {
		return nil, fmt.Errorf("accept %s[%d]: %w", pool, index, err)
	}
	down, err := nc.SubscribeSync(t.Subject(pool, index, "down"))
	if err != nil {
		return nil, fmt.Errorf("accept %s[%d]: %w: %v", pool, index, domain.ErrTransport, err)
	}
	down.SetPendingLimits(-1, -1)

	seen := make(chan struct{})
	var once sync.Once
	ready, err := nc.Subscribe(t.Subject(pool, index, "ready"), func(m *nats.Msg) {
		m.Respond(nil)
		once.Do(func() { close(seen) })
	})
	if err != nil {
		down.Unsubscribe()
		return nil, fmt.Errorf("accept %s[%d]: %w: %v", pool, index, domain.ErrTransport, err)
	}
	if err := nc.Flush(); err != nil {
		down.Unsubscribe()
		ready.Unsubscribe()
		return nil, fmt.Errorf("accept %s[%d]: %w: %v", pool, index, domain.ErrTransport, err)
	}

	select {
	case <-seen:
	case <-ctx.Done():
		down.Unsubscribe()
		ready.Unsubscribe()
		return nil, fmt.Errorf("accept %s[%d]: %w", pool, index, ctx.Err())
	}
	return &link{nc: nc, out: t.Subject(pool, index, "up"), in: down, extra: ready}, nil
}

type link struct {
	nc    *nats.Conn
	out   string
	in    *nats.Subscription
	extra *nats.Subscription
}

func (l *link) Send(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.nc.Publish(l.out, chunk); err != nil {
		return fmt.Errorf("publish %s: %w: %v", l.out, domain.ErrTransport, err)
	}
	return nil
}

func (l *link) Recv(ctx context.Context, n int) ([]byte, error) {
	msg, err := l.in.NextMsgWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("next %s: %w: %v", l.in.Subject, domain.ErrTransport, err)
	}
	if len(msg.Data) != n {
		return nil, fmt.Errorf("next %s: %w: got %d bytes, want %d", l.in.Subject, domain.ErrShortRead, len(msg.Data), n)
	}
	return msg.Data, nil
}

func (l *link) Close() error {
	if l.extra != nil {
		l.extra.Unsubscribe()
	}
	if err := l.in.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}

var (
	_ ports.Transport = (*Transport)(nil)
	_ ports.Link      = (*link)(nil)
)
