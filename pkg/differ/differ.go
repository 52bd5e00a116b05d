package differ

import (
	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// Diff compares every defined, non-local symbol shared by name between
// base and next, classifies each as Unchanged, Changed, New or Removed,
// and assembles the plan the PatchBuilder needs to produce a patch
// artifact.
//
// Pairing is by name only for exported/hidden symbols; compiler-local
// symbols (string literals, jump tables, exception data) are never
// looked up by name — relocations that target them are compared
// structurally instead, by walking both sides' bytes in lockstep so a
// local target in the base lines up with whatever occupies the same
// relocation site in next.
func Diff(base, next *objmodel.Artifact) (*Plan, error) {
	plan := &Plan{}

	names := make(map[string]bool, len(base.Symbols)+len(next.Symbols))
	for _, name := range utils.Keys(base.Symbols) {
		names[name] = true
	}
	for _, name := range utils.Keys(next.Symbols) {
		names[name] = true
	}

	for name := range names {
		baseSym, inBase := base.Symbols[name]
		nextSym, inNext := next.Symbols[name]

		switch {
		case inBase && !inNext:
			plan.Verdicts = append(plan.Verdicts, SymbolVerdict{Name: name, Classification: Removed})
		case !inBase && inNext:
			plan.Verdicts = append(plan.Verdicts, SymbolVerdict{Name: name, Classification: New})
			if nextSym.Kind == objmodel.SymKindText {
				plan.ExportedSymbols = append(plan.ExportedSymbols, name)
			} else {
				plan.DataSymbols = append(plan.DataSymbols, name)
			}
		default:
			if compareSymbols(baseSym, nextSym) {
				classifyChanged(name, baseSym, nextSym, plan)
			} else {
				plan.Verdicts = append(plan.Verdicts, SymbolVerdict{Name: name, Classification: Unchanged})
			}
		}
	}

	closeDataDependencies(next, plan)

	if len(plan.Diagnostics) > 0 {
		return plan, subserr.Wrap(subserr.ErrChangedDataRequiresReload, "%d symbol(s) require a full reload", len(plan.Diagnostics))
	}

	return plan, nil
}

// classifyChanged records the verdict for a symbol compareSymbols found
// different, and routes it either into the exported-symbol rebuild set
// (functions) or into a hard-reload diagnostic (data, whose live
// instances can't be safely re-initialized).
func classifyChanged(name string, base, next *objmodel.Symbol, plan *Plan) {
	plan.Verdicts = append(plan.Verdicts, SymbolVerdict{Name: name, Classification: Changed})

	if next.Kind == objmodel.SymKindText {
		plan.ExportedSymbols = append(plan.ExportedSymbols, name)
		return
	}

	if next.Kind == objmodel.SymKindZeroInitData {
		// Both instances start at zero; a live reset to the new zero value
		// is a no-op, so a changed declaration alone doesn't force a
		// reload. The symbol still needs rebuilding so later relocations
		// against it resolve to the new address.
		plan.DataSymbols = append(plan.DataSymbols, name)
		return
	}

	plan.Diagnostics = append(plan.Diagnostics, Diagnostic{
		Kind:   DiagHardReloadRequired,
		Symbol: name,
		Detail: "changed static or global initializer cannot be applied to a live instance",
	})
}

// compareSymbols reports whether two same-named symbols differ. Symbols
// of different Kind or Size are changed outright. Otherwise their bytes
// are walked in lockstep: at every offset where either side carries a
// relocation, the relocations are compared structurally (kind, target
// identity, addend) and the cursor jumps past the wider of the two
// sites; plain bytes are compared directly everywhere else.
func compareSymbols(base, next *objmodel.Symbol) bool {
	if base.Kind != next.Kind {
		return true
	}
	if base.Size != next.Size {
		return true
	}
	if base.Section == nil || next.Section == nil {
		return base.Section != next.Section
	}

	size := base.Size
	var cursor uint64
	for cursor < size {
		baseOff := base.Address + cursor
		nextOff := next.Address + cursor

		baseRel := base.Section.RelocationAt(baseOff)
		nextRel := next.Section.RelocationAt(nextOff)

		switch {
		case baseRel == nil && nextRel == nil:
			bb, ok1 := byteAt(base, cursor)
			nb, ok2 := byteAt(next, cursor)
			if !ok1 || !ok2 || bb != nb {
				return true
			}
			cursor++

		case baseRel != nil && nextRel != nil:
			if !relocationsMatch(*baseRel, *nextRel) {
				return true
			}
			width := baseRel.WidthBytes()
			if w := nextRel.WidthBytes(); w > width {
				width = w
			}
			if width == 0 {
				width = 1
			}
			cursor += uint64(width)

		default:
			return true
		}
	}

	return false
}

// relocationsMatch compares two relocations the way the differ needs to:
// for relocations against a named (external or file-scope exported)
// target, Relocation.Equal applies unchanged. For relocations whose
// target is a compiler-local symbol, the target's unstable name is
// ignored entirely — two local targets occupying the same relocation
// site in corresponding symbols are considered the same target by
// construction, since the walk already aligned the sites by offset.
func relocationsMatch(a, b objmodel.Relocation) bool {
	if a.LocalTarget && b.LocalTarget {
		return a.Kind == b.Kind && a.Addend == b.Addend
	}
	if a.LocalTarget != b.LocalTarget {
		return false
	}
	return a.Equal(b)
}

func byteAt(sym *objmodel.Symbol, cursor uint64) (byte, bool) {
	idx := sym.Address + cursor
	if idx >= uint64(len(sym.Section.Data)) {
		return 0, false
	}
	return sym.Section.Data[idx], true
}
