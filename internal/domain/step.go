package domain

import "fmt"

// StepKind selects how the master dispatches a step.
type StepKind uint8

const (
	// StepSimple is broadcast to prediffers and acknowledged once each.
	StepSimple StepKind = iota + 1

	// StepSolve runs the iterative scatter/gather loop until the solver
	// reports convergence.
	StepSolve
)

// String returns a human-readable representation of the kind.
func (k StepKind) String() string {
	switch k {
	case StepSimple:
		return "simple"
	case StepSolve:
		return "solve"
	default:
		return fmt.Sprintf("StepKind(%d)", uint8(k))
	}
}

// Step is an instruction dispatched once per work domain. The master never
// mutates it and never looks inside Payload.
type Step struct {
	Kind    StepKind
	Name    string
	Payload []byte
}

// NewSimpleStep returns a step that needs no joint optimization.
func NewSimpleStep(name string, payload []byte) Step {
	return Step{Kind: StepSimple, Name: name, Payload: payload}
}

// NewSolveStep returns a step that triggers the iterative solve protocol.
func NewSolveStep(name string, payload []byte) Step {
	return Step{Kind: StepSolve, Name: name, Payload: payload}
}
