package domain

import "fmt"

// ProtocolVersion is carried in every envelope. Receivers reject any other value.
const ProtocolVersion uint32 = 1

// NoDest marks an envelope without a destination hint.
const NoDest = -1

// Operation identifies the kind of a message.
type Operation int8

const (
	OpInit Operation = iota
	OpSetWorkDomain
	OpStep
	OpParmInfo
	OpGetEquations
	OpSolve
	OpEndWorkDomain

	// OpQuit is the terminal sentinel. It lies outside the regular set so a
	// worker can never confuse it with a request expecting a reply.
	OpQuit Operation = -1
)

// String returns the opcode name.
func (o Operation) String() string {
	switch o {
	case OpInit:
		return "Init"
	case OpSetWorkDomain:
		return "SetWorkDomain"
	case OpStep:
		return "Step"
	case OpParmInfo:
		return "ParmInfo"
	case OpGetEquations:
		return "GetEquations"
	case OpSolve:
		return "Solve"
	case OpEndWorkDomain:
		return "EndWorkDomain"
	case OpQuit:
		return "Quit"
	default:
		return fmt.Sprintf("Operation(%d)", int8(o))
	}
}

// Valid reports whether o is a known opcode, the quit sentinel included.
func (o Operation) Valid() bool {
	return o == OpQuit || (o >= OpInit && o <= OpEndWorkDomain)
}

// Envelope is the unit exchanged between the master and a worker.
type Envelope struct {
	Op      Operation
	Version uint32
	// Dest is the contiguous global worker index, or NoDest.
	Dest    int
	Payload []byte
}

// NewEnvelope builds an envelope for the current protocol version without a
// destination hint.
func NewEnvelope(op Operation, payload []byte) Envelope {
	return Envelope{Op: op, Version: ProtocolVersion, Dest: NoDest, Payload: payload}
}
