// Package base implements the transport machinery shared by all backends.
// Backends only provide a connector that listens for or dials carriers; the
// base package runs everything on top of them.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific
//     operations (listen, dial, socket options).
//
//   - Connection: Runs the key exchange on a fresh carrier, then encodes every
//     Send into one frame and decodes incoming frames on a dedicated goroutine.
//     Sends are serialized under one lock which also owns the send sequence
//     index, so frames leave in the order their sequence indices were assigned.
//
//   - receiver: Reassembles length prefixed frames from arbitrary read chunks.
//     It starts with a pooled buffer and grows to the next power of two when a
//     frame does not fit, keeping the unconsumed bytes at the front.
//
//   - Registry: The live connections of a server. A closing connection removes
//     itself only if it is still the registered instance; Shutdown empties the
//     registry and closes every entry.
//
// Protocol violations (sequence mismatch, checksum mismatch, malformed or
// oversized frames) close the connection. The last received bytes are kept in
// a small ring and logged at debug level when that happens.
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use. Handler callbacks of one
//	connection run on its receive goroutine in arrival order.
package base
