// Package transport defines the contracts shared by every transport backend
// of the evaluation service.
//
// A backend provides a carrier (Conn) per peer: a tcp or unix stream socket,
// or a reliable session over UDP. The base package turns a carrier into an
// IConnection by running the key exchange and the frame codec on top of it.
//
// Key Components:
//
//   - IServerTransport: accepts peers and reports their messages to an IHandler.
//
//   - IClientTransport: dials one server and returns the established IConnection.
//
//   - IHandler: receives OnOpen, OnMessage and OnClose events. OnClose is
//     delivered exactly once per connection.
//
// Messages are delivered in the order they were sent. A connection is either
// established or closed; protocol violations (sequence mismatch, checksum
// mismatch, oversized frames) close it.
package transport
