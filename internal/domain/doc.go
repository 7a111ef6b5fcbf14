// Package domain contains the core value types shared by the master, the
// worker pools and the transports.
//
// This package is the innermost layer. It has no dependencies on transport,
// encoding or logging and contains only the protocol vocabulary:
//
//   - [Operation]: the closed set of message kinds plus the quit sentinel
//   - [Envelope]: opcode, protocol version, destination hint and opaque payload
//   - [Step]: the instruction dispatched once per work domain (simple or solve)
//   - [Box] and [Shape]: the full observation domain and its partition shape
//   - [InitInfo]: the one-time handshake sent to every worker
//
// Payload bytes are never interpreted here. Only the master's solve loop looks
// inside a payload, and only at its trailing convergence byte.
package domain
