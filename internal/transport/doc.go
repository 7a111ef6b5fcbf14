// Package transport implements the framing shared by every link adapter.
//
// A message is sent as one 8-byte big-endian length header followed by the
// payload cut into chunks of at most ChunkMax bytes, each chunk being one
// link transfer. The receiver reads the header, then every declared chunk,
// and keeps at most its buffer capacity. Surplus bytes are drained and
// dropped so the next message starts on a header.
package transport
