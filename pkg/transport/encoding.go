package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func encodeHandshake(h *Handshake) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[0:8], h.RuntimeAnchorAddr)
	binary.BigEndian.PutUint32(buf[8:12], h.PID)
	return buf
}

func decodeHandshake(b []byte) (*Handshake, error) {
	if len(b) != 12 {
		return nil, fmt.Errorf("handshake frame: want 12 bytes, got %d", len(b))
	}
	return &Handshake{
		RuntimeAnchorAddr: binary.BigEndian.Uint64(b[0:8]),
		PID:               binary.BigEndian.Uint32(b[8:12]),
	}, nil
}

func encodeMessage(m *Message) []byte {
	var buf bytes.Buffer
	var scratch [8]byte

	binary.BigEndian.PutUint32(scratch[:4], m.Sequence)
	buf.Write(scratch[:4])

	if m.HasTargetPID {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	binary.BigEndian.PutUint32(scratch[:4], m.TargetPID)
	buf.Write(scratch[:4])

	binary.BigEndian.PutUint32(scratch[:4], uint32(len(m.ArtifactBytes)))
	buf.Write(scratch[:4])
	buf.Write(m.ArtifactBytes)

	binary.BigEndian.PutUint64(scratch[:8], m.JumpTable.BaseAnchorAddr)
	buf.Write(scratch[:8])
	binary.BigEndian.PutUint64(scratch[:8], m.JumpTable.PatchAnchorAddr)
	buf.Write(scratch[:8])
	binary.BigEndian.PutUint32(scratch[:4], m.JumpTable.IfuncCount)
	buf.Write(scratch[:4])

	binary.BigEndian.PutUint32(scratch[:4], uint32(len(m.JumpTable.Entries)))
	buf.Write(scratch[:4])
	for _, e := range m.JumpTable.Entries {
		binary.BigEndian.PutUint64(scratch[:8], e.BaseCompileAddr)
		buf.Write(scratch[:8])
		binary.BigEndian.PutUint64(scratch[:8], e.PatchCompileAddr)
		buf.Write(scratch[:8])
	}

	return buf.Bytes()
}

// reader is a small cursor over a decoded frame payload; each read
// advances it or returns an error rather than panicking on a truncated
// buffer, mirroring objmodel/wasmleb.go's bounds-checked cursor style.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("frame payload truncated: need %d bytes at offset %d, have %d", n, r.pos, len(r.b))
	}
	return nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func decodeMessage(b []byte) (*Message, error) {
	r := &reader{b: b}
	m := &Message{}

	seq, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.Sequence = seq

	hasTarget, err := r.byte()
	if err != nil {
		return nil, err
	}
	m.HasTargetPID = hasTarget != 0

	if m.TargetPID, err = r.u32(); err != nil {
		return nil, err
	}

	artifactLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	artifactBytes, err := r.bytes(int(artifactLen))
	if err != nil {
		return nil, err
	}
	m.ArtifactBytes = append([]byte(nil), artifactBytes...)

	if m.JumpTable.BaseAnchorAddr, err = r.u64(); err != nil {
		return nil, err
	}
	if m.JumpTable.PatchAnchorAddr, err = r.u64(); err != nil {
		return nil, err
	}
	if m.JumpTable.IfuncCount, err = r.u32(); err != nil {
		return nil, err
	}

	entryCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.JumpTable.Entries = make([]JumpTableEntry, entryCount)
	for i := range m.JumpTable.Entries {
		base, err := r.u64()
		if err != nil {
			return nil, err
		}
		patch, err := r.u64()
		if err != nil {
			return nil, err
		}
		m.JumpTable.Entries[i] = JumpTableEntry{BaseCompileAddr: base, PatchCompileAddr: patch}
	}

	return m, nil
}

func encodeDiagnostic(d *Diagnostic) []byte {
	var buf bytes.Buffer
	var scratch [4]byte

	binary.BigEndian.PutUint32(scratch[:], uint32(len(d.Kind)))
	buf.Write(scratch[:])
	buf.WriteString(d.Kind)

	binary.BigEndian.PutUint32(scratch[:], d.Sequence)
	buf.Write(scratch[:])

	binary.BigEndian.PutUint32(scratch[:], uint32(len(d.Message)))
	buf.Write(scratch[:])
	buf.WriteString(d.Message)

	return buf.Bytes()
}

func decodeDiagnostic(b []byte) (*Diagnostic, error) {
	r := &reader{b: b}
	d := &Diagnostic{}

	kindLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	kindBytes, err := r.bytes(int(kindLen))
	if err != nil {
		return nil, err
	}
	d.Kind = string(kindBytes)

	if d.Sequence, err = r.u32(); err != nil {
		return nil, err
	}

	msgLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	msgBytes, err := r.bytes(int(msgLen))
	if err != nil {
		return nil, err
	}
	d.Message = string(msgBytes)

	return d, nil
}
