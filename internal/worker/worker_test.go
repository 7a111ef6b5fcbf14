package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/distsolve/internal/codec"
	"github.com/bft-labs/distsolve/internal/domain"
)

// scriptConn replays inbox and records every reply.
type scriptConn struct {
	inbox  [][]byte
	outbox []domain.Envelope
}

func (c *scriptConn) Send(_ context.Context, p []byte) error {
	env, err := codec.Decode(p)
	if err != nil {
		return err
	}
	c.outbox = append(c.outbox, env)
	return nil
}

func (c *scriptConn) Receive(context.Context, int) ([]byte, error) {
	if len(c.inbox) == 0 {
		return nil, domain.ErrTransport
	}
	m := c.inbox[0]
	c.inbox = c.inbox[1:]
	return m, nil
}

func (c *scriptConn) IsConnected() bool { return true }
func (c *scriptConn) Close() error      { return nil }

func msg(t *testing.T, op domain.Operation, payload []byte) []byte {
	t.Helper()
	b, err := codec.Encode(domain.NewEnvelope(op, payload))
	require.NoError(t, err)
	return b
}

func initMsg(t *testing.T, dest int) []byte {
	t.Helper()
	payload, err := codec.EncodeInit(domain.InitInfo{Dataset: "d", FullDomain: domain.Box{FreqEnd: 1, TimeEnd: 1}})
	require.NoError(t, err)
	env := domain.NewEnvelope(domain.OpInit, payload)
	env.Dest = dest
	b, err := codec.Encode(env)
	require.NoError(t, err)
	return b
}

func boxMsg(t *testing.T) []byte {
	t.Helper()
	payload, err := codec.EncodeBox(domain.Box{FreqEnd: 1, TimeEnd: 1})
	require.NoError(t, err)
	return msg(t, domain.OpSetWorkDomain, payload)
}

func stepMsg(t *testing.T, step domain.Step) []byte {
	t.Helper()
	payload, err := codec.EncodeStep(step)
	require.NoError(t, err)
	return msg(t, domain.OpStep, payload)
}

type fakePrediffer struct {
	rank    int
	boxes   int
	updates [][]byte
	failOn  string
}

func (f *fakePrediffer) Init(_ context.Context, rank int, _ domain.InitInfo) error {
	f.rank = rank
	return nil
}

func (f *fakePrediffer) SetWorkDomain(context.Context, domain.Box) error {
	f.boxes++
	return nil
}

func (f *fakePrediffer) Step(context.Context, domain.Step) ([]byte, error) {
	if f.failOn == "step" {
		return nil, errors.New("step failed")
	}
	return []byte("parms"), nil
}

func (f *fakePrediffer) Equations(context.Context) ([]byte, error) {
	return []byte("eq"), nil
}

func (f *fakePrediffer) Update(_ context.Context, result []byte) error {
	f.updates = append(f.updates, result)
	return nil
}

func TestServePrediffer_RepliesOncePerRequest(t *testing.T) {
	conn := &scriptConn{inbox: [][]byte{
		initMsg(t, 4),
		boxMsg(t),
		stepMsg(t, domain.NewSimpleStep("s", nil)),
		stepMsg(t, domain.NewSolveStep("v", nil)),
		msg(t, domain.OpGetEquations, nil),
		msg(t, domain.OpSolve, codec.AppendConverged([]byte{7}, true)),
		msg(t, domain.OpQuit, nil),
	}}
	h := &fakePrediffer{}

	require.NoError(t, ServePrediffer(context.Background(), conn, h))

	ops := make([]domain.Operation, len(conn.outbox))
	for i, env := range conn.outbox {
		ops[i] = env.Op
	}
	assert.Equal(t, []domain.Operation{
		domain.OpInit,
		domain.OpSetWorkDomain,
		domain.OpStep,
		domain.OpParmInfo,
		domain.OpGetEquations,
	}, ops)
	assert.Equal(t, []byte("parms"), conn.outbox[3].Payload)
	assert.Equal(t, []byte("eq"), conn.outbox[4].Payload)
	assert.Equal(t, 4, h.rank)
	assert.Equal(t, 1, h.boxes)
	assert.Equal(t, [][]byte{{7, 1}}, h.updates)
}

func TestServePrediffer_RejectsSolverMessages(t *testing.T) {
	conn := &scriptConn{inbox: [][]byte{msg(t, domain.OpParmInfo, nil)}}
	err := ServePrediffer(context.Background(), conn, &fakePrediffer{})
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestServePrediffer_HandlerErrorIsFatal(t *testing.T) {
	conn := &scriptConn{inbox: [][]byte{stepMsg(t, domain.NewSimpleStep("s", nil))}}
	err := ServePrediffer(context.Background(), conn, &fakePrediffer{failOn: "step"})
	require.Error(t, err)
	assert.Empty(t, conn.outbox)
}

func TestServe_TransportErrorEndsLoop(t *testing.T) {
	err := ServePrediffer(context.Background(), &scriptConn{}, &fakePrediffer{})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestServe_BadEnvelope(t *testing.T) {
	conn := &scriptConn{inbox: [][]byte{{0x42}}}
	err := ServeSolver(context.Background(), conn, &fakeSolver{})
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

type fakeSolver struct {
	parm   int
	eqs    int
	rounds int
}

func (f *fakeSolver) Init(context.Context, int, domain.InitInfo) error { return nil }
func (f *fakeSolver) SetWorkDomain(context.Context, domain.Box) error  { return nil }
func (f *fakeSolver) Step(context.Context, domain.Step) error          { return nil }

func (f *fakeSolver) ParmInfo(context.Context, []byte) error {
	f.parm++
	return nil
}

func (f *fakeSolver) Equations(context.Context, []byte) error {
	f.eqs++
	return nil
}

func (f *fakeSolver) Solve(context.Context) ([]byte, bool, error) {
	f.rounds++
	return []byte{0xAA}, f.rounds >= 2, nil
}

func TestServeSolver_ForwardedPayloadsGetNoReply(t *testing.T) {
	conn := &scriptConn{inbox: [][]byte{
		initMsg(t, 2),
		boxMsg(t),
		stepMsg(t, domain.NewSolveStep("v", nil)),
		msg(t, domain.OpParmInfo, []byte("p0")),
		msg(t, domain.OpParmInfo, []byte("p1")),
		msg(t, domain.OpGetEquations, []byte("e0")),
		msg(t, domain.OpGetEquations, []byte("e1")),
		msg(t, domain.OpSolve, nil),
		msg(t, domain.OpGetEquations, []byte("e0")),
		msg(t, domain.OpGetEquations, []byte("e1")),
		msg(t, domain.OpSolve, nil),
		msg(t, domain.OpQuit, nil),
	}}
	h := &fakeSolver{}

	require.NoError(t, ServeSolver(context.Background(), conn, h))

	require.Len(t, conn.outbox, 5)
	assert.Equal(t, domain.OpInit, conn.outbox[0].Op)
	assert.Equal(t, domain.OpSetWorkDomain, conn.outbox[1].Op)
	assert.Equal(t, domain.OpStep, conn.outbox[2].Op)

	for i, want := range []bool{false, true} {
		res := conn.outbox[3+i]
		assert.Equal(t, domain.OpSolve, res.Op)
		params, converged, err := codec.SplitConverged(res.Payload)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xAA}, params)
		assert.Equal(t, want, converged)
	}
	assert.Equal(t, 2, h.parm)
	assert.Equal(t, 4, h.eqs)
}

func TestServe_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ServeSolver(ctx, &cancelConn{}, &fakeSolver{})
	assert.ErrorIs(t, err, context.Canceled)
}

type cancelConn struct{ scriptConn }

func (cancelConn) Receive(ctx context.Context, _ int) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
