package domain

import "errors"

// Domain errors represent fatal conditions of a distributed run.
// They are wrapped with context (pool, worker index, opcode) and can be
// checked with errors.Is.
var (
	// ErrTransport is returned when an underlying link fails.
	ErrTransport = errors.New("distsolve: transport failure")

	// ErrNotConnected is returned by send/receive on a closed connection.
	ErrNotConnected = errors.New("distsolve: not connected")

	// ErrShortRead is returned when a link delivers fewer bytes than declared.
	ErrShortRead = errors.New("distsolve: short read")

	// ErrProtocol is returned for undecodable messages, unknown opcodes or
	// version mismatches.
	ErrProtocol = errors.New("distsolve: protocol violation")

	// ErrIndexOutOfRange is returned when a worker index is outside its pool.
	ErrIndexOutOfRange = errors.New("distsolve: worker index out of range")

	// ErrNotInitialized is returned when an operation requires a completed handshake.
	ErrNotInitialized = errors.New("distsolve: not initialized")

	// ErrAlreadyInitialized is returned when the handshake is attempted twice.
	ErrAlreadyInitialized = errors.New("distsolve: already initialized")

	// ErrTerminated is returned for any operation after Quit.
	ErrTerminated = errors.New("distsolve: terminated")

	// ErrMaxIterations is returned when a solve step exceeds its iteration cap.
	ErrMaxIterations = errors.New("distsolve: solve did not converge within iteration limit")

	// ErrInvalidDomain is returned for an empty or inverted full domain.
	ErrInvalidDomain = errors.New("distsolve: invalid domain")

	// ErrInvalidShape is returned when no usable work domain shape is set.
	ErrInvalidShape = errors.New("distsolve: invalid work domain shape")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("distsolve: invalid configuration")
)
