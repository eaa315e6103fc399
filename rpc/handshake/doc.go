// Package handshake derives the per connection session key.
//
// The exchange needs no pre-shared secret, only the server's RSA key pair
// (the public half is distributed to clients):
//
//  1. The initiator generates a random 16-byte bootstrap key, wraps it with the
//     responder's public key and sends the wrapped blob.
//  2. The responder unwraps the blob, checks that it recovered exactly 16
//     bytes, generates an independent 16-byte session key, encrypts it under
//     the bootstrap key (AES-CTR, key == IV) and sends it back.
//  3. The initiator decrypts the reply with the bootstrap key.
//
// Both messages travel with a 4-byte length prefix in the connection's byte
// order, for stream sockets and for datagram sessions alike. A MessageReader
// reassembles one message with the state machine
// AwaitingLengthPrefix -> AwaitingBody -> Decoded and never reads past the end
// of the message, so bytes that follow the handshake stay in the transport.
//
// Every failure (malformed length, failed unwrap, wrong key length, transport
// error) is returned wrapped in ErrHandshake. Nothing is retried here; the
// caller closes the transport and may start a fresh attempt.
package handshake
