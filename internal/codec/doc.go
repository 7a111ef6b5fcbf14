// Package codec serializes envelopes and the payloads the master produces.
//
// Every message is an [domain.Envelope] encoded with SCALE:
//
//	op       1 byte (int8, the quit sentinel is 0xFF)
//	version  compact32
//	dest     compact32 of dest+1 (0 means no destination)
//	payload  compact length + bytes
//
// Payload codecs exist for the messages the master builds itself (Init,
// SetWorkDomain, Step). Worker payloads are opaque to the master, except
// that a Solve reply ends with one convergence byte, read by [Converged].
package codec
