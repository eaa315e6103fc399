package handshake

import (
	"crypto/rsa"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/feval/rpc/crypto"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("handshake")

// MaxMessageSize bounds both handshake messages (wrapped blobs of keys up to 16384 bits)
const MaxMessageSize = 2048

// ErrHandshake is wrapped by every handshake failure
var ErrHandshake = errors.New("handshake: failed")

// Initiate runs the initiator side over rw and returns the session key
func Initiate(rw io.ReadWriter, pub *rsa.PublicKey, order binary.ByteOrder) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: no public key", ErrHandshake)
	}

	bootstrap, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	wrapped, err := crypto.WrapWithPublicKey(pub, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if err := WriteMessage(rw, order, wrapped); err != nil {
		return nil, err
	}

	reply, err := NewMessageReader(order, MaxMessageSize).ReadMessage(rw)
	if err != nil {
		return nil, err
	}

	unwrap, err := crypto.NewSessionCipher(bootstrap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	session := unwrap.Decrypt(nil, reply)
	if len(session) != crypto.KeySize {
		return nil, fmt.Errorf("%w: session key of %d bytes", ErrHandshake, len(session))
	}

	Logger.Debugf("initiator handshake complete")
	return session, nil
}

// Respond runs the responder side over rw and returns the session key
func Respond(rw io.ReadWriter, priv *rsa.PrivateKey, order binary.ByteOrder) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: no private key", ErrHandshake)
	}

	wrapped, err := NewMessageReader(order, MaxMessageSize).ReadMessage(rw)
	if err != nil {
		return nil, err
	}

	bootstrap, err := crypto.UnwrapWithPrivateKey(priv, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if len(bootstrap) != crypto.KeySize {
		return nil, fmt.Errorf("%w: bootstrap key of %d bytes", ErrHandshake, len(bootstrap))
	}

	session, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	wrap, err := crypto.NewSessionCipher(bootstrap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if err := WriteMessage(rw, order, wrap.Encrypt(nil, session)); err != nil {
		return nil, err
	}

	Logger.Debugf("responder handshake complete")
	return session, nil
}
