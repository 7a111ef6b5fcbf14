// Package distsolve drives a distributed least-squares calibration: a master
// cuts an observation domain into work domains and, for each one, runs a
// scatter/gather protocol between a pool of prediffers and a pool of
// solvers.
//
// Example usage:
//
//	preds := distsolve.NewPool("prediffers", predLinks, distsolve.PoolConfig{})
//	solvers := distsolve.NewPool("solvers", solverLinks, distsolve.PoolConfig{})
//	ctl, err := distsolve.NewMaster(preds, solvers, distsolve.WithMaxIterations(50))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctl.SetInitInfo(ctx, info); err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctl.SetWorkDomainSpec(distsolve.Shape{TimeSize: 3600}); err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctl.ProcessSteps(ctx, distsolve.NewSolveStep("gain", nil)); err != nil {
//	    log.Fatal(err)
//	}
//	_ = ctl.Quit(ctx)
package distsolve

import (
	"context"
	"fmt"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/master"
	"github.com/bft-labs/distsolve/internal/pool"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/internal/transport"
	"github.com/bft-labs/distsolve/internal/worker"
	"github.com/bft-labs/distsolve/pkg/log"
)

type (
	// Control is the master side of the protocol.
	Control = master.Control

	// Option configures a Control.
	Option = master.Option

	// State is the master lifecycle state.
	State = master.State

	// EventHandler observes master progress. Embed BaseEventHandler to
	// implement only the callbacks you need.
	EventHandler     = master.EventHandler
	BaseEventHandler = master.BaseEventHandler

	Box      = domain.Box
	Shape    = domain.Shape
	InitInfo = domain.InitInfo
	Step     = domain.Step

	// Link is the raw chunk transport a Conn is framed over.
	Link = ports.Link
	// Conn is a framed connection to one peer.
	Conn = ports.Conn
	// ConnectionSet is an indexed pool of connections to one worker group.
	ConnectionSet = ports.ConnectionSet
	Metrics       = ports.Metrics

	// Pool is the ConnectionSet built by NewPool.
	Pool = pool.Set

	Prediffer = worker.Prediffer
	Solver    = worker.Solver
)

// Master lifecycle states.
const (
	StateUninitialized = master.StateUninitialized
	StateInitialized   = master.StateInitialized
	StateRunning       = master.StateRunning
	StateFailed        = master.StateFailed
	StateTerminated    = master.StateTerminated
)

// Errors callers are expected to test with errors.Is.
var (
	ErrTransport          = domain.ErrTransport
	ErrProtocol           = domain.ErrProtocol
	ErrNotInitialized     = domain.ErrNotInitialized
	ErrAlreadyInitialized = domain.ErrAlreadyInitialized
	ErrTerminated         = domain.ErrTerminated
	ErrMaxIterations      = domain.ErrMaxIterations
	ErrInvalidDomain      = domain.ErrInvalidDomain
	ErrInvalidShape       = domain.ErrInvalidShape
	ErrInvalidConfig      = domain.ErrInvalidConfig
)

// NewMaster creates a master over the two pools. solvers may be empty when
// only simple steps will be run.
func NewMaster(prediffers, solvers ConnectionSet, opts ...Option) (*Control, error) {
	return master.New(prediffers, solvers, opts...)
}

// WithLogger sets the master logger.
func WithLogger(l log.Logger) Option { return master.WithLogger(l) }

// WithMetrics sets the master metrics sink.
func WithMetrics(m Metrics) Option { return master.WithMetrics(m) }

// WithEventHandler registers a progress observer.
func WithEventHandler(h EventHandler) Option { return master.WithEventHandler(h) }

// WithMaxIterations caps the solve loop per work domain. 0 means unlimited.
func WithMaxIterations(n int) Option { return master.WithMaxIterations(n) }

// NewSimpleStep returns a step that needs no joint optimization.
func NewSimpleStep(name string, payload []byte) Step { return domain.NewSimpleStep(name, payload) }

// NewSolveStep returns a step that runs the iterative solve protocol.
func NewSolveStep(name string, payload []byte) Step { return domain.NewSolveStep(name, payload) }

// PoolConfig tunes the connections NewPool and NewConn build. Zero values
// select the defaults.
type PoolConfig struct {
	// ChunkMax bounds a single link transfer.
	ChunkMax int
	// MaxMessageBytes bounds a received message; longer ones are truncated.
	MaxMessageBytes int
	// MaxFrameBytes bounds the length a peer may declare. A larger header
	// fails the receive.
	MaxFrameBytes int
	Metrics       Metrics
	Logger        log.Logger
}

func (c PoolConfig) connOptions() []transport.Option {
	return []transport.Option{
		transport.WithChunkMax(c.ChunkMax),
		transport.WithMaxFrame(c.MaxFrameBytes),
		transport.WithMetrics(c.Metrics),
		transport.WithLogger(c.Logger),
	}
}

// NewConn frames link for use as one pool member or as a worker's
// connection to the master.
func NewConn(link Link, peer string, cfg PoolConfig) Conn {
	return transport.NewConnection(link, peer, cfg.connOptions()...)
}

// NewPool frames every link and collects them, in order, into a pool.
// Member i is addressed as index i by the master.
func NewPool(name string, links []Link, cfg PoolConfig) *Pool {
	conns := make([]ports.Conn, len(links))
	for i, l := range links {
		conns[i] = NewConn(l, fmt.Sprintf("%s[%d]", name, i), cfg)
	}
	return pool.New(name, conns,
		pool.WithMaxMessageBytes(cfg.MaxMessageBytes),
		pool.WithMetrics(cfg.Metrics),
		pool.WithLogger(cfg.Logger),
	)
}

// ServePrediffer runs h against the master on conn until Quit.
func ServePrediffer(ctx context.Context, conn Conn, h Prediffer, cfg PoolConfig) error {
	return worker.ServePrediffer(ctx, conn, h, worker.WithLogger(cfg.Logger), worker.WithMaxMessageBytes(cfg.MaxMessageBytes))
}

// ServeSolver runs h against the master on conn until Quit.
func ServeSolver(ctx context.Context, conn Conn, h Solver, cfg PoolConfig) error {
	return worker.ServeSolver(ctx, conn, h, worker.WithLogger(cfg.Logger), worker.WithMaxMessageBytes(cfg.MaxMessageBytes))
}
