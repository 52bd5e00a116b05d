package applier

import (
	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/transport"
)

// verifyPatchExports implements the Applier-side half of §4.4.2's export
// check: the Builder already verified, at build time, that the linked
// artifact exports exactly the plan's symbol set (pkg/patchbuilder
// verify.go). Before any slot is retargeted, the Applier re-opens the
// same bytes it just wrote to disk and checks that every jump-table
// entry's patch compile address actually lands on one of the loaded
// artifact's exported symbols — catching a patch that redefines
// something outside its export set by the time it reaches the target
// process, not just at build time on the developer's machine.
func verifyPatchExports(path string, jt transport.JumpTable) error {
	if len(jt.Entries) == 0 {
		return nil
	}

	artifact, err := objmodel.Load(path)
	if err != nil {
		return subserr.Wrap(subserr.ErrBuilderVerificationFailed, "reopening patch artifact %s: %v", path, err)
	}

	exported := make(map[uint64]bool, len(artifact.Symbols))
	for _, sym := range artifact.Symbols {
		if sym.Scope == objmodel.ScopeExported {
			exported[sym.CompileAddress()] = true
		}
	}

	for _, e := range jt.Entries {
		if !exported[e.PatchCompileAddr] {
			return subserr.Wrap(subserr.ErrBuilderVerificationFailed,
				"patch artifact %s redefines compile address 0x%x outside its export set", path, e.PatchCompileAddr)
		}
	}
	return nil
}
