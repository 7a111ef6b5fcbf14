package master

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/distsolve/internal/codec"
	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/obsdomain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/pkg/log"
)

// PoolStats counts the calls a Control made on one pool.
type PoolStats struct {
	Broadcasts int
	Writes     int
	Reads      int
}

// Stats counts the calls a Control made on both pools.
type Stats struct {
	Prediffers PoolStats
	Solvers    PoolStats
}

// Control is the master: it owns the prediffer and solver pools and
// sequences every exchange with them. Operations are serialized; the
// iteration cap may be changed concurrently.
type Control struct {
	prediffers ports.ConnectionSet
	solvers    ports.ConnectionSet

	logger  log.Logger
	metrics ports.Metrics
	events  EventHandler

	lifecycle     *Lifecycle
	maxIterations atomic.Int64

	mu    sync.Mutex
	full  domain.Box
	shape domain.Shape

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Control over the two pools. Neither pool may be nil and
// the prediffer pool may not be empty.
func New(prediffers, solvers ports.ConnectionSet, opts ...Option) (*Control, error) {
	if prediffers == nil || solvers == nil {
		return nil, fmt.Errorf("%w: both worker pools are required", domain.ErrInvalidConfig)
	}
	if prediffers.Size() == 0 {
		return nil, fmt.Errorf("%w: prediffer pool is empty", domain.ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Control{
		prediffers: prediffers,
		solvers:    solvers,
		logger:     o.logger,
		metrics:    o.metrics,
		events:     o.eventHandler,
	}
	c.lifecycle = NewLifecycle(o.logger, o.metrics, emitterAdapter{handler: o.eventHandler})
	c.maxIterations.Store(int64(o.maxIterations))
	return c, nil
}

// State returns the current lifecycle state.
func (c *Control) State() State { return c.lifecycle.State() }

// SetMaxIterations changes the solve iteration cap. Zero means unbounded.
// It is safe to call while a step is running; the next round sees it.
func (c *Control) SetMaxIterations(n int) {
	if n < 0 {
		n = 0
	}
	c.maxIterations.Store(int64(n))
}

// MaxIterations returns the current solve iteration cap.
func (c *Control) MaxIterations() int { return int(c.maxIterations.Load()) }

// Stats returns a snapshot of the call counters.
func (c *Control) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// SetInitInfo performs the one-time handshake. Every worker receives an
// Init envelope addressed by its global index, prediffers first, and must
// answer with exactly one reply. Any failure is fatal.
func (c *Control) SetInitInfo(ctx context.Context, info domain.InitInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.lifecycle.Guard(StateUninitialized); err != nil {
		return fmt.Errorf("set init info: %w", err)
	}
	if err := info.FullDomain.Validate(); err != nil {
		return fmt.Errorf("set init info: %w", err)
	}
	payload, err := codec.EncodeInit(info)
	if err != nil {
		return fmt.Errorf("set init info: %w", err)
	}

	p := c.prediffers.Size()
	for i := 0; i < p; i++ {
		if err := c.sendInit(ctx, c.prediffers, i, i, payload); err != nil {
			return c.fail("init", err)
		}
	}
	for j := 0; j < c.solvers.Size(); j++ {
		if err := c.sendInit(ctx, c.solvers, j, p+j, payload); err != nil {
			return c.fail("init", err)
		}
	}
	if err := c.readAll(ctx, c.prediffers); err != nil {
		return c.fail("init", err)
	}
	if err := c.readAll(ctx, c.solvers); err != nil {
		return c.fail("init", err)
	}

	c.full = info.FullDomain
	if err := c.lifecycle.TransitionTo(StateInitialized, "init handshake complete"); err != nil {
		return err
	}
	c.logger.Info("workers initialized",
		log.Int("prediffers", p),
		log.Int("solvers", c.solvers.Size()),
		log.Stringer("domain", info.FullDomain),
	)
	return nil
}

func (c *Control) sendInit(ctx context.Context, pool ports.ConnectionSet, index, global int, payload []byte) error {
	env := domain.NewEnvelope(domain.OpInit, payload)
	env.Dest = global
	msg, err := codec.Encode(env)
	if err != nil {
		return err
	}
	return c.write(ctx, pool, index, msg)
}

// SetWorkDomainSpec stores the partition shape used by ProcessSteps. It
// performs no I/O.
func (c *Control) SetWorkDomainSpec(shape domain.Shape) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.lifecycle.State(); s == StateTerminated {
		return fmt.Errorf("set work domain spec: %w", domain.ErrTerminated)
	}
	if math.IsNaN(shape.FreqSize) || math.IsNaN(shape.TimeSize) ||
		math.IsInf(shape.FreqSize, 0) || math.IsInf(shape.TimeSize, 0) {
		return fmt.Errorf("set work domain spec: %w: freq %g time %g", domain.ErrInvalidShape, shape.FreqSize, shape.TimeSize)
	}
	c.shape = shape
	return nil
}

// ProcessSteps runs step once for every partition of the full domain,
// starting a fresh traversal on every call.
func (c *Control) ProcessSteps(ctx context.Context, step domain.Step) error {
	c.mu.Lock()
	full, shape := c.full, c.shape
	c.mu.Unlock()

	if err := c.lifecycle.Guard(StateInitialized); err != nil {
		return fmt.Errorf("process steps: %w", err)
	}
	p, err := obsdomain.NewPartitioner(full, shape)
	if err != nil {
		return fmt.Errorf("process steps: %w", err)
	}
	return c.ProcessStepsWith(ctx, p, step)
}

// ProcessStepsWith runs step for every partition p still yields. The caller
// owns p and decides whether to Reset it between calls.
func (c *Control) ProcessStepsWith(ctx context.Context, p *obsdomain.Partitioner, step domain.Step) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.lifecycle.Guard(StateInitialized); err != nil {
		return fmt.Errorf("process steps: %w", err)
	}
	if step.Kind != domain.StepSimple && step.Kind != domain.StepSolve {
		return fmt.Errorf("process steps: %w: step kind %s", domain.ErrProtocol, step.Kind)
	}
	if step.Kind == domain.StepSolve && c.solvers.Size() == 0 {
		return fmt.Errorf("process steps: %w: solve step needs a solver", domain.ErrInvalidConfig)
	}
	payload, err := codec.EncodeStep(step)
	if err != nil {
		return fmt.Errorf("process steps: %w", err)
	}
	stepMsg, err := codec.Encode(domain.NewEnvelope(domain.OpStep, payload))
	if err != nil {
		return fmt.Errorf("process steps: %w", err)
	}

	if err := c.lifecycle.TransitionTo(StateRunning, "processing "+step.Kind.String()+" step "+step.Name); err != nil {
		return err
	}

	var box domain.Box
	for index := 0; p.Next(&box); index++ {
		start := time.Now()
		if err := c.processWorkDomain(ctx, box, step, stepMsg); err != nil {
			return c.fail(fmt.Sprintf("work domain %d %s", index, box), err)
		}
		elapsed := time.Since(start)
		c.metrics.WorkDomainProcessed(step.Kind.String())
		c.events.OnWorkDomain(WorkDomainEvent{Index: index, Box: box, Step: step.Name, Duration: elapsed})
		c.logger.Info("work domain processed",
			log.Int("index", index),
			log.Stringer("box", box),
			log.String("step", step.Name),
			log.Duration("elapsed", elapsed),
		)
	}

	return c.lifecycle.TransitionTo(StateInitialized, "domain exhausted")
}

func (c *Control) processWorkDomain(ctx context.Context, box domain.Box, step domain.Step, stepMsg []byte) error {
	payload, err := codec.EncodeBox(box)
	if err != nil {
		return err
	}
	msg, err := codec.Encode(domain.NewEnvelope(domain.OpSetWorkDomain, payload))
	if err != nil {
		return err
	}
	if err := c.writeAll(ctx, c.prediffers, msg); err != nil {
		return err
	}
	if err := c.writeAll(ctx, c.solvers, msg); err != nil {
		return err
	}
	if err := c.readAll(ctx, c.prediffers); err != nil {
		return err
	}
	if err := c.readAll(ctx, c.solvers); err != nil {
		return err
	}

	switch step.Kind {
	case domain.StepSimple:
		return c.runSimple(ctx, stepMsg)
	case domain.StepSolve:
		return c.runSolve(ctx, box, step, stepMsg)
	default:
		return fmt.Errorf("%w: step kind %s", domain.ErrProtocol, step.Kind)
	}
}

// runSimple broadcasts the step to the prediffers and collects one ack each.
// The solvers receive nothing.
func (c *Control) runSimple(ctx context.Context, stepMsg []byte) error {
	if err := c.writeAll(ctx, c.prediffers, stepMsg); err != nil {
		return err
	}
	return c.readAll(ctx, c.prediffers)
}

// runSolve relays between prediffers and solver 0 until the solver reports
// convergence or the iteration cap is hit.
func (c *Control) runSolve(ctx context.Context, box domain.Box, step domain.Step, stepMsg []byte) error {
	if err := c.writeAll(ctx, c.prediffers, stepMsg); err != nil {
		return err
	}
	if err := c.write(ctx, c.solvers, 0, stepMsg); err != nil {
		return err
	}
	if _, err := c.read(ctx, c.solvers, 0); err != nil {
		return err
	}
	if err := c.forwardAll(ctx); err != nil {
		return err
	}

	getEq, err := codec.Encode(domain.NewEnvelope(domain.OpGetEquations, nil))
	if err != nil {
		return err
	}
	solve, err := codec.Encode(domain.NewEnvelope(domain.OpSolve, nil))
	if err != nil {
		return err
	}

	for iteration := 1; ; iteration++ {
		if limit := c.MaxIterations(); limit > 0 && iteration > limit {
			return fmt.Errorf("%w: step %q did not converge in %d iterations", domain.ErrMaxIterations, step.Name, limit)
		}
		if err := c.writeAll(ctx, c.prediffers, getEq); err != nil {
			return err
		}
		if err := c.forwardAll(ctx); err != nil {
			return err
		}
		if err := c.write(ctx, c.solvers, 0, solve); err != nil {
			return err
		}
		result, err := c.read(ctx, c.solvers, 0)
		if err != nil {
			return err
		}
		if err := c.writeAll(ctx, c.prediffers, result); err != nil {
			return err
		}
		converged, err := solveConverged(result)
		if err != nil {
			return err
		}

		c.metrics.SolveIteration(step.Kind.String(), converged)
		c.events.OnSolveIteration(SolveIterationEvent{Step: step.Name, Box: box, Iteration: iteration, Converged: converged})
		c.logger.Debug("solve iteration",
			log.String("step", step.Name),
			log.Int("iteration", iteration),
			log.Bool("converged", converged),
		)
		if converged {
			return nil
		}
	}
}

// forwardAll relays one reply from every prediffer, in index order, to
// solver 0 without looking at it.
func (c *Control) forwardAll(ctx context.Context) error {
	for i := 0; i < c.prediffers.Size(); i++ {
		reply, err := c.read(ctx, c.prediffers, i)
		if err != nil {
			return err
		}
		if err := c.write(ctx, c.solvers, 0, reply); err != nil {
			return err
		}
	}
	return nil
}

// solveConverged extracts the convergence flag from a solver result.
func solveConverged(result []byte) (bool, error) {
	env, err := codec.Decode(result)
	if err != nil {
		return false, err
	}
	if env.Op != domain.OpSolve {
		return false, fmt.Errorf("%w: solver replied %s, want %s", domain.ErrProtocol, env.Op, domain.OpSolve)
	}
	return codec.Converged(env.Payload)
}

// Quit broadcasts the terminal sentinel to every worker without waiting
// for replies. A second call does nothing.
func (c *Control) Quit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lifecycle.State() == StateTerminated {
		return nil
	}
	msg, err := codec.Encode(domain.NewEnvelope(domain.OpQuit, nil))
	if err != nil {
		return err
	}
	sendErr := c.writeAll(ctx, c.prediffers, msg)
	if sendErr == nil {
		sendErr = c.writeAll(ctx, c.solvers, msg)
	}
	if err := c.lifecycle.TransitionTo(StateTerminated, "quit"); err != nil {
		return err
	}
	if sendErr != nil {
		c.logger.Error("quit broadcast failed", log.Err(sendErr))
		return fmt.Errorf("quit: %w", sendErr)
	}
	c.logger.Info("quit sent to all workers")
	return nil
}

// fail moves to StateFailed and returns err with its context.
func (c *Control) fail(what string, err error) error {
	wrapped := fmt.Errorf("%s: %w", what, err)
	c.logger.Error("fatal master error", log.String("during", what), log.Err(err))
	if terr := c.lifecycle.TransitionTo(StateFailed, err.Error()); terr != nil && !errors.Is(terr, domain.ErrNotInitialized) {
		c.logger.Warn("failed to record failure", log.Err(terr))
	}
	return wrapped
}

func (c *Control) count(pool ports.ConnectionSet, bump func(*PoolStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if pool == c.prediffers {
		bump(&c.stats.Prediffers)
	} else {
		bump(&c.stats.Solvers)
	}
}

func (c *Control) write(ctx context.Context, pool ports.ConnectionSet, index int, msg []byte) error {
	c.count(pool, func(s *PoolStats) { s.Writes++ })
	return pool.Write(ctx, index, msg)
}

func (c *Control) writeAll(ctx context.Context, pool ports.ConnectionSet, msg []byte) error {
	c.count(pool, func(s *PoolStats) { s.Broadcasts++ })
	return pool.WriteAll(ctx, msg)
}

func (c *Control) read(ctx context.Context, pool ports.ConnectionSet, index int) ([]byte, error) {
	c.count(pool, func(s *PoolStats) { s.Reads++ })
	return pool.Read(ctx, index)
}

func (c *Control) readAll(ctx context.Context, pool ports.ConnectionSet) error {
	for i := 0; i < pool.Size(); i++ {
		if _, err := c.read(ctx, pool, i); err != nil {
			return err
		}
	}
	return nil
}
