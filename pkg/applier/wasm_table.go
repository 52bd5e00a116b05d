//go:build wasm

package applier

import "github.com/subsecond-dev/subsecond/pkg/subserr"

// Wasm has no dlopen/mmap; a module's indirection table is the
// call_indirect function table itself (§4.4.4), and mutating it is a
// host-supplied capability rather than something this module's code can
// do to itself. wasmTableHost is satisfied by a //go:wasmimport stub the
// embedding host environment provides.
type wasmTableHost interface {
	// setTableEntry points the call_indirect table slot at index idx to
	// the function at newFuncIndex, both already resolved within the
	// freshly instantiated patch module.
	setTableEntry(idx, newFuncIndex uint32) error
}

//go:wasmimport subsecond table_set
func hostTableSet(idx, newFuncIndex uint32) uint32

type hostWasmTable struct{}

// DefaultWasmTable returns the host-import-backed table updater used on
// the wasm/wasip1 target.
func DefaultWasmTable() wasmTableHost { return hostWasmTable{} }

func (hostWasmTable) setTableEntry(idx, newFuncIndex uint32) error {
	if rc := hostTableSet(idx, newFuncIndex); rc != 0 {
		return subserr.Wrap(subserr.ErrPatchLoadFailed, "table_set(%d, %d) returned %d", idx, newFuncIndex, rc)
	}
	return nil
}

// WasmBinder returns a Binder whose rawAddr is interpreted as a
// call_indirect table index rather than a linear-memory function
// pointer, and whose effect is a host table_set rather than a
// dispatcher.Table.Retarget: on wasm the indirection table already
// exists as the module's own call_indirect table, so patching it means
// rewriting that table entry at idx to point at the newly instantiated
// function, instead of threading the result through the native Binder
// path at all.
func WasmBinder(host wasmTableHost, idx uint32) Binder {
	return func(rawAddr uintptr) (any, error) {
		if err := host.setTableEntry(idx, uint32(rawAddr)); err != nil {
			return nil, err
		}
		return nil, nil
	}
}
