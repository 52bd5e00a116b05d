package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameKind tags a frame's payload type so a single bidirectional stream
// can carry handshakes, patch messages and diagnostics without a
// separate connection per direction.
type frameKind byte

const (
	kindHandshake frameKind = iota + 1
	kindMessage
	kindDiagnostic
)

const maxFrameBytes = 256 << 20 // refuse to allocate for a corrupt length prefix

// Codec reads and writes length-prefixed frames over rw: a 4-byte
// big-endian length, a 1-byte kind tag, then the kind's encoded payload.
// Grounded on the same cursor-based binary layout objmodel/wasmleb.go
// reads LEB128 sections with; encoding/binary is the whole of what this
// needs, since the wire layout is an exact byte table (spec.md §6), not
// a gap any serialization library would fill better.
type Codec struct {
	rw io.ReadWriteCloser
}

// NewCodec wraps rw in a Codec.
func NewCodec(rw io.ReadWriteCloser) *Codec {
	return &Codec{rw: rw}
}

// Close closes the underlying connection.
func (c *Codec) Close() error { return c.rw.Close() }

func (c *Codec) writeFrame(kind frameKind, payload []byte) error {
	var header [5]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload))+1)
	header[4] = byte(kind)
	if _, err := c.rw.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := c.rw.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}

func (c *Codec) readFrame() (frameKind, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.rw, header[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > maxFrameBytes {
		return 0, nil, fmt.Errorf("frame length %d out of bounds", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(c.rw, body); err != nil {
		return 0, nil, fmt.Errorf("reading frame body: %w", err)
	}
	return frameKind(body[0]), body[1:], nil
}

// WriteHandshake sends h as a handshake frame.
func (c *Codec) WriteHandshake(h *Handshake) error {
	return c.writeFrame(kindHandshake, encodeHandshake(h))
}

// WriteMessage sends m as a patch message frame.
func (c *Codec) WriteMessage(m *Message) error {
	return c.writeFrame(kindMessage, encodeMessage(m))
}

// WriteDiagnostic sends d as a diagnostic frame.
func (c *Codec) WriteDiagnostic(d *Diagnostic) error {
	return c.writeFrame(kindDiagnostic, encodeDiagnostic(d))
}

// Frame is the result of reading one frame of unknown kind; exactly one
// of Handshake, Message, Diagnostic is non-nil.
type Frame struct {
	Handshake  *Handshake
	Message    *Message
	Diagnostic *Diagnostic
}

// ReadFrame reads and decodes the next frame, dispatching on its kind
// tag.
func (c *Codec) ReadFrame() (*Frame, error) {
	kind, payload, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindHandshake:
		h, err := decodeHandshake(payload)
		if err != nil {
			return nil, err
		}
		return &Frame{Handshake: h}, nil
	case kindMessage:
		m, err := decodeMessage(payload)
		if err != nil {
			return nil, err
		}
		return &Frame{Message: m}, nil
	case kindDiagnostic:
		d, err := decodeDiagnostic(payload)
		if err != nil {
			return nil, err
		}
		return &Frame{Diagnostic: d}, nil
	default:
		return nil, fmt.Errorf("unknown frame kind %d", kind)
	}
}
