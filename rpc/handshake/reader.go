package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// State is the progress of a MessageReader
type State int

const (
	AwaitingLengthPrefix State = iota
	AwaitingBody
	Decoded
)

func (s State) String() string {
	switch s {
	case AwaitingLengthPrefix:
		return "awaiting-length-prefix"
	case AwaitingBody:
		return "awaiting-body"
	case Decoded:
		return "decoded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MessageReader reassembles one length prefixed handshake message
type MessageReader struct {
	order  binary.ByteOrder
	limit  int
	state  State
	prefix [4]byte
	body   []byte
	got    int
}

// NewMessageReader creates a reader for messages of at most limit bytes
func NewMessageReader(order binary.ByteOrder, limit int) *MessageReader {
	if limit <= 0 {
		limit = MaxMessageSize
	}
	return &MessageReader{order: order, limit: limit}
}

// State returns the current state
func (r *MessageReader) State() State { return r.state }

// Message returns the decoded message, nil before Decoded
func (r *MessageReader) Message() []byte {
	if r.state != Decoded {
		return nil
	}
	return r.body
}

// pending returns the unfilled part of the current target
func (r *MessageReader) pending() []byte {
	switch r.state {
	case AwaitingLengthPrefix:
		return r.prefix[r.got:]
	case AwaitingBody:
		return r.body[r.got:]
	default:
		return nil
	}
}

// advance records n bytes written into pending() and moves the state machine
func (r *MessageReader) advance(n int) error {
	r.got += n
	switch r.state {
	case AwaitingLengthPrefix:
		if r.got < len(r.prefix) {
			return nil
		}
		length := int(r.order.Uint32(r.prefix[:]))
		if length <= 0 || length > r.limit {
			return fmt.Errorf("%w: malformed length %d", ErrHandshake, length)
		}
		r.body = make([]byte, length)
		r.got = 0
		r.state = AwaitingBody
	case AwaitingBody:
		if r.got == len(r.body) {
			r.state = Decoded
		}
	}
	return nil
}

// Feed consumes bytes from p until the message is complete and returns how
// many bytes were used
func (r *MessageReader) Feed(p []byte) (int, error) {
	used := 0
	for used < len(p) && r.state != Decoded {
		n := copy(r.pending(), p[used:])
		used += n
		if err := r.advance(n); err != nil {
			return used, err
		}
	}
	return used, nil
}

// ReadMessage reads from src until one message is decoded. It only asks src for
// the bytes still missing, so nothing after the message is consumed.
func (r *MessageReader) ReadMessage(src io.Reader) ([]byte, error) {
	for r.state != Decoded {
		n, err := src.Read(r.pending())
		if n > 0 {
			if aerr := r.advance(n); aerr != nil {
				return nil, aerr
			}
		}
		if err != nil && r.state != Decoded {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("%w: read %s: %w", ErrHandshake, r.state, err)
		}
	}
	return r.body, nil
}

// WriteMessage writes msg with its length prefix in a single write
func WriteMessage(w io.Writer, order binary.ByteOrder, msg []byte) error {
	out := make([]byte, 4+len(msg))
	order.PutUint32(out, uint32(len(msg)))
	copy(out[4:], msg)
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("%w: write: %w", ErrHandshake, err)
	}
	return nil
}
