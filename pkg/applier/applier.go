package applier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/subsecond-dev/subsecond/pkg/dispatcher"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/transport"
)

// Applier ingests patch messages inside the target process: it loads
// the artifact, reconciles ASLR, drives the Dispatcher's unwind
// protocol, and retargets indirection slots. One Applier serves one
// Dispatcher Table for the process's lifetime.
type Applier struct {
	Table             *dispatcher.Table
	Loader            Loader
	AnchorName        string
	RuntimeAnchorAddr uint64
	TmpDir            string
	Ext               string // "so", "dylib", "dll", "wasm"

	ledger SequenceLedger

	mu       sync.Mutex
	binders  map[uintptr]Binder
	handles  []Handle // retained forever per §4.4.2/§5
	tmpFiles []string
}

// New returns an Applier for the given Table, using the platform
// default Loader. runtimeAnchorAddr is the anchor symbol's address in
// this process, recorded once at startup before any patch arrives.
func New(table *dispatcher.Table, anchorName string, runtimeAnchorAddr uint64, tmpDir, ext string) *Applier {
	return &Applier{
		Table:             table,
		Loader:            DefaultLoader(),
		AnchorName:        anchorName,
		RuntimeAnchorAddr: runtimeAnchorAddr,
		TmpDir:            tmpDir,
		Ext:               ext,
		binders:           make(map[uintptr]Binder),
	}
}

// RegisterBinder installs the Binder for origFn, keyed by origFn's
// address in this process. A jump-table entry whose runtime_old
// reconciles to this same address is applied through binder.
func (a *Applier) RegisterBinder(origFn any, binder Binder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.binders[dispatcher.FuncAddr(origFn)] = binder
}

// Apply ingests one patch message. It returns (nil, nil) for a message
// silently discarded by the target-pid filter, a non-nil Diagnostic
// alongside a non-nil error for every other failure mode, and (nil, nil)
// on success.
func (a *Applier) Apply(ctx context.Context, pid uint32, msg *transport.Message) (*transport.Diagnostic, error) {
	if msg.HasTargetPID && msg.TargetPID != pid {
		return nil, nil
	}

	if !a.ledger.Accept(msg.Sequence) {
		return a.diagnostic(msg.Sequence, subserr.ErrFullReloadRequired, "sequence %d repeated or out of order", msg.Sequence)
	}

	path, err := a.writeArtifact(msg.Sequence, msg.ArtifactBytes)
	if err != nil {
		return a.diagnostic(msg.Sequence, subserr.ErrPatchLoadFailed, "%v", err)
	}

	handle, err := a.Loader.Load(path)
	if err != nil {
		return a.diagnostic(msg.Sequence, subserr.ErrPatchLoadFailed, "%v", err)
	}

	patchRuntimeBase, err := handle.Lookup(a.AnchorName)
	if err != nil {
		return a.diagnostic(msg.Sequence, subserr.ErrPatchLoadFailed, "resolving anchor %q in patch: %v", a.AnchorName, err)
	}

	if err := verifyPatchExports(path, msg.JumpTable); err != nil {
		return &transport.Diagnostic{
			Kind:     subserr.ErrBuilderVerificationFailed.Error(),
			Sequence: msg.Sequence,
			Message:  err.Error(),
		}, err
	}

	reconciled := ReconcileASLR(msg.JumpTable, a.RuntimeAnchorAddr, uint64(patchRuntimeBase))
	if err := VerifyAgainstTable(reconciled, a.Table.Lookup); err != nil {
		return a.diagnostic(msg.Sequence, subserr.ErrAslrReconciliationFailed, "%v", err)
	}

	bound, err := a.resolveBinders(reconciled, handle)
	if err != nil {
		return a.diagnostic(msg.Sequence, subserr.ErrFullReloadRequired, "%v", err)
	}

	a.Table.BeginPatch()
	if err := a.Table.AwaitUnwound(ctx); err != nil {
		a.Table.EndPatch()
		return a.diagnostic(msg.Sequence, subserr.ErrUnwindTimeout, "%v", err)
	}

	for addr, fn := range bound {
		a.Table.Retarget(addr, fn)
	}
	a.Table.EndPatch()

	a.mu.Lock()
	a.handles = append(a.handles, handle)
	a.mu.Unlock()

	return nil, nil
}

// resolveBinders binds every reconciled entry before any slot is
// retargeted, so a missing binder fails the whole patch atomically
// rather than leaving some functions patched and others not.
func (a *Applier) resolveBinders(entries []Reconciled, handle Handle) (map[uintptr]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bound := make(map[uintptr]any, len(entries))
	for _, e := range entries {
		addr := uintptr(e.RuntimeOld)
		binder, ok := a.binders[addr]
		if !ok {
			return nil, fmt.Errorf("no binder registered for function at runtime address %#x", addr)
		}
		fn, err := binder(uintptr(e.RuntimeNew))
		if err != nil {
			return nil, fmt.Errorf("binding %#x -> %#x: %w", addr, e.RuntimeNew, err)
		}
		bound[addr] = fn
	}
	return bound, nil
}

func (a *Applier) writeArtifact(sequence uint32, data []byte) (string, error) {
	name := fmt.Sprintf("patch-%d.%s", sequence, a.Ext)
	path := filepath.Join(a.TmpDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing patch artifact %s: %w", path, err)
	}
	a.mu.Lock()
	a.tmpFiles = append(a.tmpFiles, path)
	a.mu.Unlock()
	return path, nil
}

// Cleanup best-effort removes temporary patch files written by this
// Applier; loaded handles are never unloaded (§5) but the files backing
// them can be removed once the dynamic loader has mapped them.
func (a *Applier) Cleanup() {
	a.mu.Lock()
	files := a.tmpFiles
	a.tmpFiles = nil
	a.mu.Unlock()
	for _, f := range files {
		_ = os.Remove(f)
	}
}

func (a *Applier) diagnostic(sequence uint32, sentinel error, detail string, args ...any) (*transport.Diagnostic, error) {
	err := subserr.Wrap(sentinel, detail, args...)
	return &transport.Diagnostic{
		Kind:     sentinel.Error(),
		Sequence: sequence,
		Message:  err.Error(),
	}, err
}
