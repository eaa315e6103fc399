// Package codec encodes one logical message into a wire frame and back.
//
// Frame layout (all multi-byte integers use the codec's byte order, which
// defaults to little-endian):
//
//	offset  size  field
//	0       1     flags: bit 7 compressed, bit 6 encrypted, bit 5 checksummed,
//	              bits 4-0 sequence index mod 32
//	1       4     checksum (CRC-32 IEEE of the body), zero unless checksummed
//	5       N     body
//
// On stream carriers every frame is preceded by a 4-byte length prefix that
// counts the frame bytes (flags + checksum + body); Pack writes both.
//
// Encoding applies, in order: compression (only for payloads of at least
// CompressThreshold bytes, and only if LZ4 actually shrinks them), encryption
// with the connection's session cipher, checksum over the final body. The
// requested flags are applied deterministically. Decoding checks the sequence
// index first (a mismatch means both peers' frame streams drifted apart and the
// connection must be failed), then the checksum, then decrypts and
// decompresses.
//
// Compressed bodies are a 4-byte big-endian original length followed by an LZ4
// block.
package codec
