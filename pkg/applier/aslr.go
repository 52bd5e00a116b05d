// Package applier ingests a (patch artifact bytes, jump table) message
// inside the target process, reconciles ASLR between the base process
// and the freshly loaded patch, loads the patch through the platform's
// runtime linker interface, and drives the Dispatcher's indirection
// table update through the restart/unwind protocol.
package applier

import (
	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/transport"
)

// Reconciled is one jump-table entry translated from compile-time
// addresses into the two runtime addresses the Dispatcher actually
// deals in.
type Reconciled struct {
	RuntimeOld uint64
	RuntimeNew uint64
}

// ReconcileASLR implements §4.4.1: given the base process's recorded
// runtime anchor address and the freshly loaded patch's runtime anchor
// address (obtained by symbol lookup against the loaded artifact), it
// computes each side's ASLR offset and applies it to every jump-table
// entry.
func ReconcileASLR(jt transport.JumpTable, runtimeAnchorAddr, patchRuntimeBase uint64) []Reconciled {
	baseOffset := runtimeAnchorAddr - jt.BaseAnchorAddr
	newOffset := patchRuntimeBase - jt.PatchAnchorAddr

	out := make([]Reconciled, len(jt.Entries))
	for i, e := range jt.Entries {
		out[i] = Reconciled{
			RuntimeOld: e.BaseCompileAddr + baseOffset,
			RuntimeNew: e.PatchCompileAddr + newOffset,
		}
	}
	return out
}

// VerifyAgainstTable checks the invariant that every entry's computed
// RuntimeOld address already has a slot in the live indirection table.
// lookup is the Dispatcher's Table.Lookup; a mismatch (slot absent)
// means the Applier's model of the base program disagrees with the
// running process, which is always a fatal AslrReconciliationFailed
// rather than something to patch around.
func VerifyAgainstTable(entries []Reconciled, lookup func(addr uintptr) any) error {
	for _, e := range entries {
		if lookup(uintptr(e.RuntimeOld)) == nil {
			return subserr.Wrap(subserr.ErrAslrReconciliationFailed,
				"no indirection slot for runtime_old=0x%x", e.RuntimeOld)
		}
	}
	return nil
}
