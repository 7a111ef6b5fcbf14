package master

import (
	"time"

	"github.com/bft-labs/distsolve/internal/domain"
)

// EventHandler receives notifications from a Control. Calls are made
// synchronously from the goroutine running the operation.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnWorkDomain(event WorkDomainEvent)
	OnSolveIteration(event SolveIterationEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the events of interest.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)       {}
func (BaseEventHandler) OnWorkDomain(WorkDomainEvent)         {}
func (BaseEventHandler) OnSolveIteration(SolveIterationEvent) {}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// WorkDomainEvent reports a fully processed partition.
type WorkDomainEvent struct {
	Index    int
	Box      domain.Box
	Step     string
	Duration time.Duration
}

// SolveIterationEvent reports one GetEquations/Solve round.
type SolveIterationEvent struct {
	Step      string
	Box       domain.Box
	Iteration int
	Converged bool
}

// emitterAdapter feeds lifecycle changes to an EventHandler.
type emitterAdapter struct {
	handler EventHandler
}

func (e emitterAdapter) OnStateChange(previous, current State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
}
