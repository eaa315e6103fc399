// Package crypto wraps the cryptographic primitives the transport relies on.
//
//   - RSA-OAEP (SHA-1) to wrap and unwrap the bootstrap key during the handshake
//   - AES-128 in counter mode (key doubles as IV) as the per connection session
//     cipher, with one running keystream per direction
//   - loading of RSA keys from XML <RSAKeyValue> documents or PEM files, and a
//     built-in default key pair for deployments that do not configure one
//
// All randomness comes from crypto/rand.
package crypto
