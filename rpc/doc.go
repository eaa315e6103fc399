// Package rpc provides the message transport of feval and the server and
// client built on top of it. Every message travels as one frame that is
// optionally compressed, encrypted with a per-connection session key and
// protected by a checksum, and carries a sequence index the receiver checks.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures, the logger factory, metrics and the
//     reply conventions shared by server and client.
//
//   - crypto: RSA key handling (XML and PEM), the key wrap of the handshake and
//     the AES-CTR session cipher.
//
//   - codec: The frame layout, its flags and sequence index, and the
//     compression and checksum primitives.
//
//   - handshake: The two message exchange that establishes the session key.
//
//   - transport: Connection, handler and transport contracts, with the shared
//     implementation in transport/base and the backends tcp, unix and kcp.
//
//   - server: Binds a transport to a message handler such as the calculator.
//
//   - client: Sends statements and matches the replies.
package rpc
