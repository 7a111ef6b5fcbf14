package master

import (
	"sync"

	"github.com/bft-labs/distsolve/internal/domain"
	"github.com/bft-labs/distsolve/internal/ports"
	"github.com/bft-labs/distsolve/pkg/log"
)

// State represents the lifecycle state of the master.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateFailed
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateFailed:
		return "Failed"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// stateEmitter is called when the lifecycle state changes.
type stateEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle is the master's state machine.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	logger  log.Logger
	metrics ports.Metrics
	emitter stateEmitter
}

// NewLifecycle creates a lifecycle in StateUninitialized.
func NewLifecycle(logger log.Logger, metrics ports.Metrics, emitter stateEmitter) *Lifecycle {
	return &Lifecycle{
		state:   StateUninitialized,
		logger:  logger,
		metrics: metrics,
		emitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to move to newState.
// Returns an error if the transition is not valid; the state is unchanged.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if err := checkTransition(oldState, newState); err != nil {
		l.mu.Unlock()
		return err
	}
	l.state = newState
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnStateChange(oldState, newState, reason)
	}
	if l.metrics != nil {
		l.metrics.StateTransition(oldState.String(), newState.String())
	}
	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func checkTransition(from, to State) error {
	switch from {
	case StateUninitialized:
		switch to {
		case StateInitialized, StateFailed, StateTerminated:
			return nil
		}
		return domain.ErrNotInitialized
	case StateInitialized:
		switch to {
		case StateRunning, StateFailed, StateTerminated:
			return nil
		}
		return domain.ErrAlreadyInitialized
	case StateRunning:
		switch to {
		case StateInitialized, StateFailed, StateTerminated:
			return nil
		}
		return domain.ErrAlreadyInitialized
	case StateFailed:
		if to == StateTerminated {
			return nil
		}
		return domain.ErrNotInitialized
	default:
		return domain.ErrTerminated
	}
}

// Guard returns the error an operation needing want must report in the
// current state, or nil.
func (l *Lifecycle) Guard(want State) error {
	s := l.State()
	switch {
	case s == want:
		return nil
	case s == StateTerminated:
		return domain.ErrTerminated
	case s == StateFailed:
		return domain.ErrNotInitialized
	case want == StateUninitialized:
		return domain.ErrAlreadyInitialized
	case s == StateUninitialized:
		return domain.ErrNotInitialized
	default:
		return domain.ErrAlreadyInitialized
	}
}
