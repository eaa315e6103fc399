package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Flags holds the option bits of a frame's first byte
type Flags byte

const (
	FlagCompress Flags = 0x80
	FlagEncrypt  Flags = 0x40
	FlagChecksum Flags = 0x20

	// SequenceMask selects the sequence index bits of the flag byte
	SequenceMask = 0x1F
	// SequenceModulus is the number of distinct sequence indices
	SequenceModulus = SequenceMask + 1

	// HeaderSize is the size of flag byte plus checksum field
	HeaderSize = 5
	// LengthSize is the size of the stream length prefix
	LengthSize = 4
	// CompressThreshold is the smallest payload that is compressed
	CompressThreshold = 1024
	// DefaultMaxPayload bounds the decompressed size of a single payload
	DefaultMaxPayload = 64 << 20
)

// NewFlags builds the requested option set
func NewFlags(compress, encrypt, checksum bool) Flags {
	var f Flags
	if compress {
		f |= FlagCompress
	}
	if encrypt {
		f |= FlagEncrypt
	}
	if checksum {
		f |= FlagChecksum
	}
	return f
}

// Has reports whether all bits of o are set
func (f Flags) Has(o Flags) bool { return f&o == o }

// NextSequence returns the sequence index following seq
func NextSequence(seq uint8) uint8 { return (seq + 1) & SequenceMask }

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrDesync is matched by every DesyncError
	ErrDesync = errors.New("codec: sequence index mismatch")
	// ErrIntegrity is matched by every IntegrityError
	ErrIntegrity = errors.New("codec: checksum mismatch")
	// ErrMalformed is returned for truncated frames or bad compression headers
	ErrMalformed = errors.New("codec: malformed frame")
	// ErrNoCipher is returned when encryption is requested or found without a cipher
	ErrNoCipher = errors.New("codec: no cipher for encrypted frame")
)

// DesyncError reports a frame whose sequence index differs from the expected one
type DesyncError struct {
	Expected uint8
	Got      uint8
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDesync, e.Expected, e.Got)
}

func (e *DesyncError) Is(target error) bool { return target == ErrDesync }

// IntegrityError reports a checksummed body whose checksum does not match
type IntegrityError struct {
	Want uint32
	Got  uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: header %08x, body %08x", ErrIntegrity, e.Want, e.Got)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// Cipher is the symmetric cipher state of a connection. Encrypt and Decrypt
// append their output to dst; src and the appended region may overlap exactly.
type Cipher interface {
	Encrypt(dst, src []byte) []byte
	Decrypt(dst, src []byte) []byte
}

// Codec encodes and decodes frames. The zero value is not usable; use New.
type Codec struct {
	order      binary.ByteOrder
	maxPayload int
}

// New creates a codec writing the checksum and length prefix in order
func New(order binary.ByteOrder) Codec {
	if order == nil {
		order = binary.LittleEndian
	}
	return Codec{order: order, maxPayload: DefaultMaxPayload}
}

// ByteOrder returns the codec's byte order
func (c Codec) ByteOrder() binary.ByteOrder { return c.order }

// Encode appends the frame for payload to dst. Only the option bits of flags
// are used, the sequence index is taken from seq.
func (c Codec) Encode(dst, payload []byte, flags Flags, seq uint8, ci Cipher) ([]byte, error) {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0, 0)
	bodyStart := len(dst)
	flag := Flags(seq & SequenceMask)

	compressed := false
	if flags.Has(FlagCompress) && len(payload) >= CompressThreshold {
		dst, compressed = Compress(dst, payload)
	}
	if compressed {
		flag |= FlagCompress
	} else {
		dst = append(dst, payload...)
	}

	if flags.Has(FlagEncrypt) {
		if ci == nil {
			return dst[:start], ErrNoCipher
		}
		// encrypt the body in place
		dst = ci.Encrypt(dst[:bodyStart], dst[bodyStart:])
		flag |= FlagEncrypt
	}

	if flags.Has(FlagChecksum) {
		c.order.PutUint32(dst[start+1:], Checksum32(dst[bodyStart:]))
		flag |= FlagChecksum
	}

	dst[start] = byte(flag)
	return dst, nil
}

// Decode checks frame against the expected sequence index and its checksum and
// appends the original payload to dst. Encrypted bodies are decrypted in place,
// so frame must not be reused afterwards.
func (c Codec) Decode(dst, frame []byte, expected uint8, ci Cipher) ([]byte, error) {
	if len(frame) < HeaderSize {
		return dst, fmt.Errorf("%w: %d byte frame", ErrMalformed, len(frame))
	}

	flag := Flags(frame[0])
	if seq := uint8(flag) & SequenceMask; seq != expected&SequenceMask {
		return dst, &DesyncError{Expected: expected & SequenceMask, Got: seq}
	}

	body := frame[HeaderSize:]
	if flag.Has(FlagChecksum) {
		want := c.order.Uint32(frame[1:HeaderSize])
		if got := Checksum32(body); got != want {
			return dst, &IntegrityError{Want: want, Got: got}
		}
	}

	if flag.Has(FlagEncrypt) {
		if ci == nil {
			return dst, ErrNoCipher
		}
		body = ci.Decrypt(body[:0], body)
	}

	if flag.Has(FlagCompress) {
		return Decompress(dst, body, c.maxPayload)
	}
	return append(dst, body...), nil
}

// Pack appends the length prefix followed by the encoded frame to dst
func (c Codec) Pack(dst, payload []byte, flags Flags, seq uint8, ci Cipher) ([]byte, error) {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	dst, err := c.Encode(dst, payload, flags, seq, ci)
	if err != nil {
		return dst[:start], err
	}
	c.order.PutUint32(dst[start:], uint32(len(dst)-start-LengthSize))
	return dst, nil
}

// FrameLength reads a length prefix
func (c Codec) FrameLength(prefix []byte) int {
	return int(c.order.Uint32(prefix[:LengthSize]))
}
