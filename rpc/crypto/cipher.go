package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// KeySize is the length of bootstrap and session keys
const KeySize = 16

// ErrKeySize is returned for keys that are not KeySize bytes long
var ErrKeySize = errors.New("crypto: key must be 16 bytes")

// GenerateKey returns KeySize bytes of full entropy
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}

// SessionCipher is AES-128-CTR with key == IV. Encrypt and Decrypt each own a
// running keystream, so a peer's Decrypt must see exactly the bytes this
// side's Encrypt produced, in order. Not safe for concurrent use; each
// direction must be serialized by the caller.
type SessionCipher struct {
	enc cipher.Stream
	dec cipher.Stream
}

// NewSessionCipher creates the cipher state for key
func NewSessionCipher(key []byte) (*SessionCipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return &SessionCipher{
		enc: cipher.NewCTR(block, key),
		dec: cipher.NewCTR(block, key),
	}, nil
}

// Encrypt appends the encryption of src to dst
func (c *SessionCipher) Encrypt(dst, src []byte) []byte {
	return xorAppend(c.enc, dst, src)
}

// Decrypt appends the decryption of src to dst
func (c *SessionCipher) Decrypt(dst, src []byte) []byte {
	return xorAppend(c.dec, dst, src)
}

func xorAppend(s cipher.Stream, dst, src []byte) []byte {
	n := len(dst)
	if cap(dst)-n < len(src) {
		grown := make([]byte, n, n+len(src))
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:n+len(src)]
	s.XORKeyStream(dst[n:], src)
	return dst
}
