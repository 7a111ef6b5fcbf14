package tcp

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/internal/transport"
)

func openTransport(t *testing.T) *Transport {
	t.Helper()
	tr := New(2*time.Second, nil)
	require.NoError(t, tr.Open(context.Background()))
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTransport_RequiresOpen(t *testing.T) {
	tr := New(time.Second, nil)
	_, err := tr.Dial(context.Background(), "127.0.0.1:1")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	_, err = tr.Listen("127.0.0.1:0")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestTransport_FramedRoundTrip(t *testing.T) {
	tr := openTransport(t)
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := bytes.Repeat([]byte("abcdefgh"), 1000)
	errCh := make(chan error, 1)
	go func() {
		l, err := ln.Accept(ctx)
		if err != nil {
			errCh <- err
			return
		}
		conn := transport.NewConnection(l, "master", transport.WithChunkMax(333))
		defer conn.Close()
		msg, err := conn.Receive(ctx, 0)
		if err != nil {
			errCh <- err
			return
		}
		errCh <- conn.Send(ctx, msg[:16])
	}()

	links, err := tr.DialAll(ctx, []string{ln.Addr()})
	require.NoError(t, err)
	conn := transport.NewConnection(links[0], "worker", transport.WithChunkMax(333))
	defer conn.Close()

	require.NoError(t, conn.Send(ctx, payload))
	got, err := conn.Receive(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, payload[:16], got)
}

func TestTransport_DialTimesOut(t *testing.T) {
	tr := New(150*time.Millisecond, nil)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	// Reserve a port, then free it so nothing is listening there.
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr()
	require.NoError(t, ln.Close())

	_, err = tr.Dial(context.Background(), addr)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestLink_RecvHonoursContext(t *testing.T) {
	tr := openTransport(t)
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		l, err := ln.Accept(context.Background())
		if err == nil {
			time.Sleep(time.Second)
			l.Close()
		}
	}()

	l, err := tr.Dial(context.Background(), ln.Addr())
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Recv(ctx, 8)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListener_AcceptHonoursContext(t *testing.T) {
	tr := openTransport(t)
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = ln.Accept(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// acceptedPair returns the dialled and accepted ends of one connection.
func acceptedPair(t *testing.T) (dialed, accepted ports.Link) {
	t.Helper()
	tr := openTransport(t)
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	type result struct {
		l   ports.Link
		err error
	}
	ch := make(chan result, 1)
	go func() {
		l, err := ln.Accept(context.Background())
		ch <- result{l, err}
	}()
	d, err := tr.Dial(context.Background(), ln.Addr())
	require.NoError(t, err)
	r := <-ch
	require.NoError(t, r.err)
	t.Cleanup(func() { d.Close(); r.l.Close() })
	return d, r.l
}

func TestLink_RecvLargeDeclaredSizeShortStream(t *testing.T) {
	d, a := acceptedPair(t)
	require.NoError(t, d.Send(context.Background(), []byte("abc")))
	require.NoError(t, d.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.Recv(ctx, 1<<30)
	assert.ErrorIs(t, err, domain.ErrShortRead)
}

func TestConnection_RejectsOversizedHeader(t *testing.T) {
	d, a := acceptedPair(t)
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], 1<<40)
	require.NoError(t, d.Send(context.Background(), header[:]))

	conn := transport.NewConnection(a, "master", transport.WithMaxFrame(1<<20))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := conn.Receive(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "exceeds")
}
