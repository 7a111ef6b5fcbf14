// Package ports defines the interfaces that connect the master and the worker
// loop to their infrastructure adapters.
//
// # Port Interfaces
//
//   - [Link]: raw, ordered, blocking chunk transfer to one peer
//   - [Conn]: a framed connection (length header plus chunked payload)
//   - [Transport]: process-wide transport lifecycle
//   - [ConnectionSet]: an indexed pool of connections to one group of workers
//   - [Metrics]: message and solve counters
//
// The master depends only on these interfaces. Adapters under
// internal/adapters bind them to in-process channels, TCP and NATS.
package ports
