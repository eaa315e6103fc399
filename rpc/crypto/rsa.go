package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultKeyBits is the modulus size of generated key pairs
const DefaultKeyBits = 1024

// ErrNoKey is returned when a key file holds no usable RSA key
var ErrNoKey = errors.New("crypto: no rsa key found")

// WrapWithPublicKey encrypts b for the owner of pub using RSA-OAEP with SHA-1
func WrapWithPublicKey(pub *rsa.PublicKey, b []byte) ([]byte, error) {
	out, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, b, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: wrap: %w", err)
	}
	return out, nil
}

// UnwrapWithPrivateKey reverses WrapWithPublicKey
func UnwrapWithPrivateKey(priv *rsa.PrivateKey, b []byte) ([]byte, error) {
	out, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, b, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: unwrap: %w", err)
	}
	return out, nil
}

// GenerateKeyPair creates a new RSA key of the given size (DefaultKeyBits if bits <= 0)
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate rsa key: %w", err)
	}
	return key, nil
}

// --------------------------------------------------------------------------
// Key files
// --------------------------------------------------------------------------

// LoadPrivateKey reads a private key from path. An empty path returns the
// built-in default key.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return DefaultPrivateKey()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: read key file: %w", err)
	}
	return ParsePrivateKey(data)
}

// LoadPublicKey reads a public key from path. The file may also hold a
// private key, in which case its public half is returned. An empty path
// returns the public half of the built-in default key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	if path == "" {
		priv, err := DefaultPrivateKey()
		if err != nil {
			return nil, err
		}
		return &priv.PublicKey, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: read key file: %w", err)
	}
	return ParsePublicKey(data)
}

// ParsePrivateKey accepts an XML <RSAKeyValue> document or a PEM block
// ("RSA PRIVATE KEY" or "PRIVATE KEY")
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if isXMLKey(data) {
		return ParseXMLPrivateKey(data)
	}

	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		switch block.Type {
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("crypto: %w", err)
			}
			if rsaKey, ok := key.(*rsa.PrivateKey); ok {
				return rsaKey, nil
			}
			return nil, fmt.Errorf("crypto: unsupported private key type %T", key)
		}
	}
	return nil, ErrNoKey
}

// ParsePublicKey accepts an XML <RSAKeyValue> document or a PEM block
// ("RSA PUBLIC KEY", "PUBLIC KEY" or any private key block)
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	if isXMLKey(data) {
		return ParseXMLPublicKey(data)
	}

	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		switch block.Type {
		case "RSA PUBLIC KEY":
			return x509.ParsePKCS1PublicKey(block.Bytes)
		case "PUBLIC KEY":
			key, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("crypto: %w", err)
			}
			if rsaKey, ok := key.(*rsa.PublicKey); ok {
				return rsaKey, nil
			}
			return nil, fmt.Errorf("crypto: unsupported public key type %T", key)
		case "RSA PRIVATE KEY", "PRIVATE KEY":
			priv, err := ParsePrivateKey(pem.EncodeToMemory(block))
			if err != nil {
				return nil, err
			}
			return &priv.PublicKey, nil
		}
	}
	return nil, ErrNoKey
}

// MarshalPEMPrivateKey encodes key as a PKCS#1 "RSA PRIVATE KEY" block
func MarshalPEMPrivateKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// MarshalPEMPublicKey encodes key as a PKCS#1 "RSA PUBLIC KEY" block
func MarshalPEMPublicKey(key *rsa.PublicKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(key)})
}

func isXMLKey(data []byte) bool {
	return strings.Contains(string(data), "<RSAKeyValue")
}
