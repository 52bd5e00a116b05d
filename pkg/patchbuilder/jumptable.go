package patchbuilder

import (
	"sort"

	"github.com/subsecond-dev/subsecond/pkg/differ"
	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// JumpTableEntry maps one changed symbol's compile-time address in the
// base artifact to its compile-time address in the patch artifact.
type JumpTableEntry struct {
	Symbol         string
	BaseCompileAddr  uint64
	PatchCompileAddr uint64
}

// JumpTable is the PatchBuilder's second output, alongside the linked
// artifact: the mapping the Applier needs to reconcile ASLR and rewrite
// the indirection table. IfuncCount is populated only for Wasm patches,
// where entries address function-table indices rather than memory
// addresses.
type JumpTable struct {
	Entries          []JumpTableEntry
	BaseAnchorAddr   uint64
	PatchAnchorAddr  uint64
	IfuncCount       uint32
}

// BuildJumpTable records, for every Changed symbol in plan (and every
// alias of a changed symbol, since aliases must redirect together),
// its compile-time address in both base and patch, plus the anchor
// symbol's compile-time address in both. anchorName is typically the
// process entry function; any symbol present and stable across both
// artifacts works.
func BuildJumpTable(base, patch *objmodel.Artifact, plan *differ.Plan, anchorName string) (*JumpTable, error) {
	baseAddr, err := anchorAddr(base, anchorName)
	if err != nil {
		return nil, err
	}
	patchAddr, err := anchorAddr(patch, anchorName)
	if err != nil {
		return nil, err
	}

	jt := &JumpTable{
		BaseAnchorAddr:  baseAddr,
		PatchAnchorAddr: patchAddr,
	}

	changed := make(map[string]bool)
	for _, v := range plan.Verdicts {
		if v.Classification == differ.Changed {
			changed[v.Name] = true
		}
	}

	names := utils.Keys(changed)
	sort.Strings(names)

	for _, name := range names {
		baseSym := base.Lookup(name)
		patchSym := patch.Lookup(name)
		if baseSym == nil || patchSym == nil {
			continue // symbol was classified changed but the patch doesn't export it; verify.go already caught this
		}

		jt.Entries = append(jt.Entries, JumpTableEntry{
			Symbol:           name,
			BaseCompileAddr:  baseSym.CompileAddress(),
			PatchCompileAddr: patchSym.CompileAddress(),
		})

		for _, alias := range base.AllSymbols {
			if alias.Name == name || !alias.IsAliasOf(baseSym) {
				continue
			}
			jt.Entries = append(jt.Entries, JumpTableEntry{
				Symbol:           alias.Name,
				BaseCompileAddr:  alias.CompileAddress(),
				PatchCompileAddr: patchSym.CompileAddress(),
			})
		}
	}

	if patch.Format == objmodel.FormatWasm {
		jt.IfuncCount = uint32(len(jt.Entries))
	}

	return jt, nil
}

// anchorAddr resolves anchorName's compile-time address in a, falling
// back to DWARF-assisted lookup for an ELF artifact whose symbol table
// was stripped but whose debug info survived. Non-ELF artifacts have no
// fallback: Mach-O and PE builds that strip symbols also strip debug
// info in the toolchains this engine targets, and Wasm anchors are
// always resolved by name since Wasm has no notion of a stripped symtab.
func anchorAddr(a *objmodel.Artifact, anchorName string) (uint64, error) {
	if sym := a.Lookup(anchorName); sym != nil {
		return sym.CompileAddress(), nil
	}
	if a.Format == objmodel.FormatELF {
		if addr, err := objmodel.NameAnchorFromDWARF(a.Path, anchorName); err == nil {
			return addr, nil
		}
	}
	return 0, subserr.Wrap(subserr.ErrBuilderVerificationFailed, "anchor symbol %q missing from %s", anchorName, a.Path)
}
