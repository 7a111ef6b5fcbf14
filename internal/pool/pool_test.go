package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/distsolve/internal/adapters/metrics"
	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
)

// fakeConn records sends and replays queued receives.
type fakeConn struct {
	sent     [][]byte
	inbox    [][]byte
	capacity []int
	sendErr  error
	closed   bool
}

func (f *fakeConn) Send(_ context.Context, p []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), p...))
	return nil
}

func (f *fakeConn) Receive(_ context.Context, capacity int) ([]byte, error) {
	f.capacity = append(f.capacity, capacity)
	if len(f.inbox) == 0 {
		return nil, domain.ErrTransport
	}
	m := f.inbox[0]
	f.inbox = f.inbox[1:]
	return m, nil
}

func (f *fakeConn) IsConnected() bool { return !f.closed }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type countingMetrics struct {
	metrics.Nop
	sent, received int
}

func (c *countingMetrics) MessageSent(string, int)     { c.sent++ }
func (c *countingMetrics) MessageReceived(string, int) { c.received++ }

func newSet(n int, opts ...Option) (*Set, []*fakeConn) {
	fakes := make([]*fakeConn, n)
	conns := make([]ports.Conn, n)
	for i := range fakes {
		fakes[i] = &fakeConn{}
		conns[i] = fakes[i]
	}
	return New("prediffers", conns, opts...), fakes
}

func TestSet_SizeAndName(t *testing.T) {
	s, _ := newSet(3)
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, "prediffers", s.Name())
}

func TestSet_WriteAllInIndexOrder(t *testing.T) {
	m := &countingMetrics{}
	s, fakes := newSet(3, WithMetrics(m))

	require.NoError(t, s.WriteAll(context.Background(), []byte("x")))
	for i, f := range fakes {
		assert.Equal(t, [][]byte{[]byte("x")}, f.sent, "member %d", i)
	}
	assert.Equal(t, 3, m.sent)
}

func TestSet_WriteAllAbortsAtFirstFailure(t *testing.T) {
	s, fakes := newSet(3)
	boom := errors.New("boom")
	fakes[1].sendErr = boom

	err := s.WriteAll(context.Background(), []byte("x"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "prediffers[1]")
	assert.Len(t, fakes[0].sent, 1)
	assert.Empty(t, fakes[2].sent)
}

func TestSet_IndexOutOfRange(t *testing.T) {
	s, _ := newSet(2)
	ctx := context.Background()

	for _, idx := range []int{-1, 2, 100} {
		assert.ErrorIs(t, s.Write(ctx, idx, nil), domain.ErrIndexOutOfRange)
		_, err := s.Read(ctx, idx)
		assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	}
}

func TestSet_ReadUsesCapacity(t *testing.T) {
	m := &countingMetrics{}
	s, fakes := newSet(2, WithMaxMessageBytes(512), WithMetrics(m))
	fakes[1].inbox = [][]byte{[]byte("reply")}

	got, err := s.Read(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("reply"), got)
	assert.Equal(t, []int{512}, fakes[1].capacity)
	assert.Equal(t, 1, m.received)

	_, err = s.Read(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestSet_PerIndexOrderPreserved(t *testing.T) {
	s, fakes := newSet(1)
	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, s.Write(ctx, 0, []byte(m)))
	}
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, fakes[0].sent)
}

func TestSet_Close(t *testing.T) {
	s, fakes := newSet(2)
	require.NoError(t, s.Close())
	for _, f := range fakes {
		assert.True(t, f.closed)
	}
}
