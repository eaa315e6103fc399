// Package unix implements the RPC transport over Unix domain sockets for
// clients on the same machine. It shares the framing, key exchange and
// reassembly of the base package with the tcp backend and only differs in how
// carriers are created.
//
// Key Components:
//
//   - clientConnector: Dials the socket path given as endpoint
//
//   - serverConnector: Removes a stale socket file and listens on the path
package unix
