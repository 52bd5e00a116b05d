// Package subserr defines the error-kind taxonomy shared by every
// component of the hot-patching engine. Components never return bare
// errors for expected failure modes; they wrap one of the sentinels
// below so callers can classify a failure with errors.Is without string
// matching.
package subserr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidObject means an input object file was malformed. Fatal
	// for the episode that encountered it.
	ErrInvalidObject = errors.New("invalid object")

	// ErrUnsupportedRelocation means a relocation type code had no
	// mapping into the abstract kind set. Fatal for that patch attempt;
	// the caller should request a full rebuild rather than guess.
	ErrUnsupportedRelocation = errors.New("unsupported relocation")

	// ErrChangedDataRequiresReload means the differ found a changed
	// static/global whose initial value differs; such statics can't be
	// safely re-initialized on a live process.
	ErrChangedDataRequiresReload = errors.New("changed data requires full reload")

	// ErrBuilderVerificationFailed means the linker produced an artifact
	// whose exported set doesn't match the patch plan.
	ErrBuilderVerificationFailed = errors.New("builder verification failed")

	// ErrAslrReconciliationFailed means a jump-table entry's computed
	// runtime_old address didn't match the live indirection slot.
	ErrAslrReconciliationFailed = errors.New("aslr reconciliation failed")

	// ErrPatchLoadFailed means the OS rejected the dynamic load of the
	// patch artifact.
	ErrPatchLoadFailed = errors.New("patch load failed")

	// ErrUnwindTimeout means not all threads acknowledged in-flight-free
	// within the bounded window. Non-fatal: the patch is shelved and may
	// be re-attempted.
	ErrUnwindTimeout = errors.New("unwind acknowledgement timeout")

	// ErrFullReloadRequired means a change crosses a boundary the engine
	// refuses to patch across (struct layout, data init, missing outer
	// hot frame).
	ErrFullReloadRequired = errors.New("full reload required")

	// ErrDebugInfoMissing means a caller asked for DWARF-assisted symbol
	// naming on an artifact with no .debug_info section, e.g. a release
	// build stripped of debug info along with its symbol table.
	ErrDebugInfoMissing = errors.New("debug info missing")
)

// Wrap attaches a formatted detail message to a sentinel error.
func Wrap(sentinel error, detail string, args ...any) error {
	return fmt.Errorf("%w: "+detail, append([]any{sentinel}, args...)...)
}
