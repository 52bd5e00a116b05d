package applier

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsecond-dev/subsecond/pkg/dispatcher"
	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/transport"
)

// fakeHandle hands back addresses from a name->addr map rather than
// resolving real symbols, so tests never touch a real dynamic loader.
type fakeHandle struct {
	symbols map[string]uintptr
}

func (h fakeHandle) Lookup(name string) (uintptr, error) {
	addr, ok := h.symbols[name]
	if !ok {
		return 0, subserr.Wrap(subserr.ErrPatchLoadFailed, "undefined symbol %q", name)
	}
	return addr, nil
}

type fakeLoader struct {
	handle Handle
	err    error
	loaded []string
}

func (f *fakeLoader) Load(path string) (Handle, error) {
	f.loaded = append(f.loaded, path)
	if f.err != nil {
		return nil, f.err
	}
	return f.handle, nil
}

func greeting(_ context.Context, name string) string { return "hello " + name }

func newTestApplier(table *dispatcher.Table, loader Loader, dir string) *Applier {
	a := New(table, "anchor", 0x1000, dir, "so")
	a.Loader = loader
	return a
}

// singleEntryJumpTable builds a jump table with one entry whose
// BaseCompileAddr reconciles to origAddr given Applier.RuntimeAnchorAddr
// of 0x1000: ReconcileASLR adds back (RuntimeAnchorAddr - BaseAnchorAddr).
// patchAddr must be the real compile address of an exported symbol in the
// artifact bytes the message carries, since verifyPatchExports checks it.
func singleEntryJumpTable(origAddr uintptr, patchAddr uint64) transport.JumpTable {
	return transport.JumpTable{
		BaseAnchorAddr:  0,
		PatchAnchorAddr: 0x5000,
		Entries: []transport.JumpTableEntry{
			{BaseCompileAddr: uint64(origAddr) - 0x1000, PatchCompileAddr: patchAddr},
		},
	}
}

// buildWasmPatchArtifact assembles a minimal linkable wasm module (type,
// function, export and code sections for a single zero-arg function) and
// returns its bytes alongside the exported function's real compile
// address, computed by parsing the module back through objmodel so tests
// never hardcode an offset the module layout doesn't actually produce.
func buildWasmPatchArtifact(t *testing.T, exportName string) ([]byte, uint64) {
	t.Helper()

	var module bytes.Buffer
	module.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	writeSection := func(id byte, body []byte) {
		module.WriteByte(id)
		writeULEB32(&module, uint32(len(body)))
		module.Write(body)
	}

	var typeSec bytes.Buffer
	writeULEB32(&typeSec, 1)
	typeSec.Write([]byte{0x60, 0x00, 0x00}) // func, 0 params, 0 results
	writeSection(1, typeSec.Bytes())

	var funcSec bytes.Buffer
	writeULEB32(&funcSec, 1)
	writeULEB32(&funcSec, 0) // type index 0
	writeSection(3, funcSec.Bytes())

	var exportSec bytes.Buffer
	writeULEB32(&exportSec, 1)
	writeULEB32(&exportSec, uint32(len(exportName)))
	exportSec.WriteString(exportName)
	exportSec.WriteByte(0x00) // export kind: func
	writeULEB32(&exportSec, 0) // func index 0
	writeSection(7, exportSec.Bytes())

	var fnBody bytes.Buffer
	writeULEB32(&fnBody, 0) // local decl count
	fnBody.WriteByte(0x0b)  // end

	var codeSec bytes.Buffer
	writeULEB32(&codeSec, 1)
	writeULEB32(&codeSec, uint32(fnBody.Len()))
	codeSec.Write(fnBody.Bytes())
	writeSection(10, codeSec.Bytes())

	data := module.Bytes()

	path := filepath.Join(t.TempDir(), "patch.wasm")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	artifact, err := objmodel.ParseWasm(path)
	require.NoError(t, err)
	sym := artifact.Lookup(exportName)
	require.NotNil(t, sym)

	return data, sym.CompileAddress()
}

func writeULEB32(buf *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

func TestApplier_AppliesPatchAndRetargetsSlot(t *testing.T) {
	table := dispatcher.New()
	require.Equal(t, "hello alice", dispatcher.Call(context.Background(), table, greeting, "alice"))
	origAddr := dispatcher.FuncAddr(greeting)

	loader := &fakeLoader{handle: fakeHandle{symbols: map[string]uintptr{"anchor": 0x5000}}}
	a := newTestApplier(table, loader, t.TempDir())
	a.RegisterBinder(greeting, Binder(func(_ uintptr) (any, error) {
		return func(_ context.Context, name string) string { return "greetings " + name }, nil
	}))

	artifactBytes, patchAddr := buildWasmPatchArtifact(t, "greeting_patch")
	msg := &transport.Message{
		Sequence:      1,
		ArtifactBytes: artifactBytes,
		JumpTable:     singleEntryJumpTable(origAddr, patchAddr),
	}

	diag, err := a.Apply(context.Background(), 0, msg)
	require.NoError(t, err)
	assert.Nil(t, diag)

	assert.Equal(t, "greetings bob", dispatcher.Call(context.Background(), table, greeting, "bob"))
	require.Len(t, loader.loaded, 1)
}

func TestApplier_DiscardsMessageForWrongTargetPID(t *testing.T) {
	table := dispatcher.New()
	loader := &fakeLoader{}
	a := newTestApplier(table, loader, t.TempDir())

	msg := &transport.Message{Sequence: 1, HasTargetPID: true, TargetPID: 999}
	diag, err := a.Apply(context.Background(), 1, msg)

	assert.NoError(t, err)
	assert.Nil(t, diag)
	assert.Empty(t, loader.loaded)
}

func TestApplier_RejectsOutOfOrderSequence(t *testing.T) {
	table := dispatcher.New()
	loader := &fakeLoader{handle: fakeHandle{symbols: map[string]uintptr{"anchor": 0x5000}}}
	a := newTestApplier(table, loader, t.TempDir())

	_, err := a.Apply(context.Background(), 0, &transport.Message{Sequence: 5, ArtifactBytes: []byte("x")})
	require.NoError(t, err)

	diag, err := a.Apply(context.Background(), 0, &transport.Message{Sequence: 3, ArtifactBytes: []byte("x")})
	require.Error(t, err)
	require.NotNil(t, diag)
	assert.ErrorIs(t, err, subserr.ErrFullReloadRequired)
}

func TestApplier_FailsClosedWhenNoBinderRegistered(t *testing.T) {
	table := dispatcher.New()
	require.Equal(t, "hello alice", dispatcher.Call(context.Background(), table, greeting, "alice"))
	origAddr := dispatcher.FuncAddr(greeting)

	loader := &fakeLoader{handle: fakeHandle{symbols: map[string]uintptr{"anchor": 0x5000}}}
	a := newTestApplier(table, loader, t.TempDir())
	// Deliberately skip RegisterBinder.

	artifactBytes, patchAddr := buildWasmPatchArtifact(t, "greeting_patch")
	msg := &transport.Message{
		Sequence:      1,
		ArtifactBytes: artifactBytes,
		JumpTable:     singleEntryJumpTable(origAddr, patchAddr),
	}

	diag, err := a.Apply(context.Background(), 0, msg)
	require.Error(t, err)
	require.NotNil(t, diag)
	assert.ErrorIs(t, err, subserr.ErrFullReloadRequired)
	// A missing binder fails before any Retarget happens, so the slot is
	// untouched.
	assert.Equal(t, "hello alice", dispatcher.Call(context.Background(), table, greeting, "alice"))
}

func TestApplier_FailsOnUnreconciledAslr(t *testing.T) {
	table := dispatcher.New()
	require.Equal(t, "hello alice", dispatcher.Call(context.Background(), table, greeting, "alice"))

	loader := &fakeLoader{handle: fakeHandle{symbols: map[string]uintptr{"anchor": 0x5000}}}
	a := newTestApplier(table, loader, t.TempDir())

	artifactBytes, patchAddr := buildWasmPatchArtifact(t, "greeting_patch")
	msg := &transport.Message{
		Sequence:      1,
		ArtifactBytes: artifactBytes,
		JumpTable: transport.JumpTable{
			BaseAnchorAddr:  0x1000,
			PatchAnchorAddr: 0x5000,
			Entries: []transport.JumpTableEntry{
				// Bogus address with no corresponding slot.
				{BaseCompileAddr: 0xdeadbeef, PatchCompileAddr: patchAddr},
			},
		},
	}

	diag, err := a.Apply(context.Background(), 0, msg)
	require.Error(t, err)
	require.NotNil(t, diag)
	assert.ErrorIs(t, err, subserr.ErrAslrReconciliationFailed)
}

func TestApplier_UnwindTimeoutShelvesPatchAndClearsPending(t *testing.T) {
	table := dispatcher.New()
	require.Equal(t, "hello alice", dispatcher.Call(context.Background(), table, greeting, "alice"))
	origAddr := dispatcher.FuncAddr(greeting)

	// A root frame that blocks forever, so BeginPatch's acknowledgement
	// target is never met.
	stuck := make(chan struct{})
	defer close(stuck)
	go dispatcher.Root(context.Background(), table, func(ctx context.Context) {
		<-stuck
	})
	// Give the goroutine a chance to register itself as an active root.
	time.Sleep(5 * time.Millisecond)

	loader := &fakeLoader{handle: fakeHandle{symbols: map[string]uintptr{"anchor": 0x5000}}}
	a := newTestApplier(table, loader, t.TempDir())
	a.RegisterBinder(greeting, Binder(func(_ uintptr) (any, error) {
		return func(_ context.Context, name string) string { return "x" }, nil
	}))
	artifactBytes, patchAddr := buildWasmPatchArtifact(t, "greeting_patch")
	msg := &transport.Message{
		Sequence:      1,
		ArtifactBytes: artifactBytes,
		JumpTable:     singleEntryJumpTable(origAddr, patchAddr),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	diag, err := a.Apply(ctx, 0, msg)
	require.Error(t, err)
	require.NotNil(t, diag)
	assert.ErrorIs(t, err, subserr.ErrUnwindTimeout)

	// The pending flag must be cleared so ordinary calls aren't forced
	// to panic forever after a shelved patch.
	assert.Equal(t, "hello alice", dispatcher.Call(context.Background(), table, greeting, "alice"))
}

func TestWriteArtifact_PersistsBytesUnderTmpDir(t *testing.T) {
	dir := t.TempDir()
	a := New(dispatcher.New(), "anchor", 0, dir, "so")

	path, err := a.writeArtifact(9, []byte("hello"))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
