package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/distsolve/internal/codec"
	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/pkg/log"
)

// Prediffer computes partial equations over the data shard it owns.
type Prediffer interface {
	// Init receives the handshake. rank is the worker's global index.
	Init(ctx context.Context, rank int, info domain.InitInfo) error
	SetWorkDomain(ctx context.Context, box domain.Box) error
	// Step runs a step on the current work domain. For a solve step the
	// returned bytes describe the parameters the solver must expect.
	Step(ctx context.Context, step domain.Step) ([]byte, error)
	// Equations returns the partial normal equations for the current
	// parameter estimate.
	Equations(ctx context.Context) ([]byte, error)
	// Update installs the solver result, convergence byte included.
	Update(ctx context.Context, result []byte) error
}

// Solver merges partial equations into a new global estimate.
type Solver interface {
	Init(ctx context.Context, rank int, info domain.InitInfo) error
	SetWorkDomain(ctx context.Context, box domain.Box) error
	Step(ctx context.Context, step domain.Step) error
	// ParmInfo receives one prediffer's parameter description.
	ParmInfo(ctx context.Context, payload []byte) error
	// Equations receives one prediffer's partial equations.
	Equations(ctx context.Context, payload []byte) error
	// Solve combines the equations received this round.
	Solve(ctx context.Context) (params []byte, converged bool, err error)
}

type config struct {
	logger   log.Logger
	capacity int
}

// Option configures a serve loop.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxMessageBytes bounds the size of a received message.
func WithMaxMessageBytes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// dispatchFunc handles one request and returns the reply envelope, or nil
// when the request expects none.
type dispatchFunc func(ctx context.Context, env domain.Envelope) (*domain.Envelope, error)

// ServePrediffer runs h until the master sends Quit, ctx ends or the
// connection fails. A clean Quit returns nil.
func ServePrediffer(ctx context.Context, conn ports.Conn, h Prediffer, opts ...Option) error {
	return serve(ctx, conn, "prediffer", opts, func(ctx context.Context, env domain.Envelope) (*domain.Envelope, error) {
		switch env.Op {
		case domain.OpInit:
			info, err := codec.DecodeInit(env.Payload)
			if err != nil {
				return nil, err
			}
			return ackOf(env), h.Init(ctx, env.Dest, info)
		case domain.OpSetWorkDomain:
			box, err := codec.DecodeBox(env.Payload)
			if err != nil {
				return nil, err
			}
			return ackOf(env), h.SetWorkDomain(ctx, box)
		case domain.OpStep:
			step, err := codec.DecodeStep(env.Payload)
			if err != nil {
				return nil, err
			}
			info, err := h.Step(ctx, step)
			if err != nil {
				return nil, err
			}
			if step.Kind == domain.StepSolve {
				reply := domain.NewEnvelope(domain.OpParmInfo, info)
				return &reply, nil
			}
			return ackOf(env), nil
		case domain.OpGetEquations:
			eq, err := h.Equations(ctx)
			if err != nil {
				return nil, err
			}
			reply := domain.NewEnvelope(domain.OpGetEquations, eq)
			return &reply, nil
		case domain.OpSolve:
			return nil, h.Update(ctx, env.Payload)
		case domain.OpEndWorkDomain:
			return ackOf(env), nil
		default:
			return nil, fmt.Errorf("%w: prediffer cannot handle %s", domain.ErrProtocol, env.Op)
		}
	})
}

// ServeSolver runs h until the master sends Quit, ctx ends or the
// connection fails. A clean Quit returns nil.
func ServeSolver(ctx context.Context, conn ports.Conn, h Solver, opts ...Option) error {
	return serve(ctx, conn, "solver", opts, func(ctx context.Context, env domain.Envelope) (*domain.Envelope, error) {
		switch env.Op {
		case domain.OpInit:
			info, err := codec.DecodeInit(env.Payload)
			if err != nil {
				return nil, err
			}
			return ackOf(env), h.Init(ctx, env.Dest, info)
		case domain.OpSetWorkDomain:
			box, err := codec.DecodeBox(env.Payload)
			if err != nil {
				return nil, err
			}
			return ackOf(env), h.SetWorkDomain(ctx, box)
		case domain.OpStep:
			step, err := codec.DecodeStep(env.Payload)
			if err != nil {
				return nil, err
			}
			return ackOf(env), h.Step(ctx, step)
		case domain.OpParmInfo:
			return nil, h.ParmInfo(ctx, env.Payload)
		case domain.OpGetEquations:
			return nil, h.Equations(ctx, env.Payload)
		case domain.OpSolve:
			params, converged, err := h.Solve(ctx)
			if err != nil {
				return nil, err
			}
			reply := domain.NewEnvelope(domain.OpSolve, codec.AppendConverged(params, converged))
			return &reply, nil
		case domain.OpEndWorkDomain:
			return ackOf(env), nil
		default:
			return nil, fmt.Errorf("%w: solver cannot handle %s", domain.ErrProtocol, env.Op)
		}
	})
}

func ackOf(req domain.Envelope) *domain.Envelope {
	ack := domain.NewEnvelope(req.Op, nil)
	return &ack
}

func serve(ctx context.Context, conn ports.Conn, role string, opts []Option, dispatch dispatchFunc) error {
	cfg := config{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger

	for handled := 0; ; handled++ {
		msg, err := conn.Receive(ctx, cfg.capacity)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error("receive failed", log.String("role", role), log.Err(err))
			return fmt.Errorf("%s receive: %w", role, err)
		}
		env, err := codec.Decode(msg)
		if err != nil {
			logger.Error("bad envelope", log.String("role", role), log.Err(err))
			return fmt.Errorf("%s decode: %w", role, err)
		}
		if env.Op == domain.OpQuit {
			logger.Info("quit received", log.String("role", role), log.Int("handled", handled))
			return nil
		}

		reply, err := dispatch(ctx, env)
		if err != nil {
			logger.Error("handler failed", log.String("role", role), log.Stringer("op", env.Op), log.Err(err))
			return fmt.Errorf("%s %s: %w", role, env.Op, err)
		}
		logger.Debug("request handled", log.String("role", role), log.Stringer("op", env.Op), log.Bool("reply", reply != nil))
		if reply == nil {
			continue
		}
		out, err := codec.Encode(*reply)
		if err != nil {
			return fmt.Errorf("%s encode %s: %w", role, reply.Op, err)
		}
		if err := conn.Send(ctx, out); err != nil {
			logger.Error("reply failed", log.String("role", role), log.Stringer("op", reply.Op), log.Err(err))
			return fmt.Errorf("%s reply %s: %w", role, reply.Op, err)
		}
	}
}
