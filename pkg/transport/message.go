// Package transport defines the wire types that pass between the
// PatchBuilder (on the developer's machine) and the Applier (inside the
// target process), plus a length-prefixed framing over an arbitrary
// io.ReadWriteCloser. The protocol is assumed reliable and ordered;
// retransmission, if needed, is the caller's concern.
package transport

// JumpTableEntry is one (base_compile_addr, patch_compile_addr) pair
// from a patchbuilder.JumpTable, carried over the wire.
type JumpTableEntry struct {
	BaseCompileAddr  uint64
	PatchCompileAddr uint64
}

// JumpTable is the wire form of patchbuilder.JumpTable.
type JumpTable struct {
	Entries         []JumpTableEntry
	BaseAnchorAddr  uint64
	PatchAnchorAddr uint64
	IfuncCount      uint32
}

// Message is the patch message sent from the builder to the applier.
type Message struct {
	// Sequence is a monotonic patch index; the Applier rejects a
	// repeated or out-of-order value rather than silently re-applying.
	Sequence uint32

	// HasTargetPID/TargetPID implement the optional process filter: the
	// Applier discards the message if TargetPID doesn't match its own
	// pid when HasTargetPID is set.
	HasTargetPID bool
	TargetPID    uint32

	// ArtifactBytes is the loadable patch: dylib/so/dll/wasm bytes.
	ArtifactBytes []byte

	JumpTable JumpTable
}

// Handshake is sent from the applier to the builder at process startup
// so the builder can filter by pid and verify ASLR reconciliation
// pre-flight.
type Handshake struct {
	RuntimeAnchorAddr uint64
	PID               uint32
}

// Diagnostic is a structured failure record reported to the devtools
// transport instead of crashing the target process. Kind mirrors one of
// the subserr sentinel names (by string, not by Go type, since this
// crosses a process/language boundary).
type Diagnostic struct {
	Kind     string
	Sequence uint32
	Message  string
}
