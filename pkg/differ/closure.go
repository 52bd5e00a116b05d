package differ

import (
	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// closeDataDependencies extends plan.DataSymbols with every New data
// symbol transitively referenced from a symbol already being rebuilt
// (an exported function or a data symbol already in the plan), so the
// builder ships initializers the rebuilt code actually needs. Only New
// data is pulled in this way: an Unchanged data symbol keeps its
// existing live address and needs no initializer in the patch, and a
// Changed one is already flagged as a hard-reload diagnostic by the
// caller.
func closeDataDependencies(next *objmodel.Artifact, plan *Plan) {
	byName := utils.GenMap(plan.Verdicts, func(v SymbolVerdict) string { return v.Name })

	included := make(map[string]bool, len(plan.ExportedSymbols)+len(plan.DataSymbols))
	for _, name := range plan.ExportedSymbols {
		included[name] = true
	}
	for _, name := range plan.DataSymbols {
		included[name] = true
	}

	worklist := make([]string, 0, len(plan.ExportedSymbols)+len(plan.DataSymbols))
	worklist = append(worklist, plan.ExportedSymbols...)
	worklist = append(worklist, plan.DataSymbols...)

	for len(worklist) > 0 {
		name := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		sym := next.Lookup(name)
		if sym == nil || sym.Section == nil {
			continue
		}

		for _, rel := range referencedTargets(sym) {
			if included[rel] {
				continue
			}
			if byName[rel].Classification != New {
				continue
			}
			included[rel] = true
			plan.DataSymbols = append(plan.DataSymbols, rel)
			worklist = append(worklist, rel)
		}
	}
}

// referencedTargets lists every non-local relocation target whose
// relocation site falls within sym's byte range.
func referencedTargets(sym *objmodel.Symbol) []string {
	var out []string
	for _, rel := range sym.Section.Relocations {
		if rel.Offset < sym.Address || rel.Offset >= sym.Address+sym.Size {
			continue
		}
		if !rel.LocalTarget && rel.Target != "" {
			out = append(out, rel.Target)
		}
		if rel.TargetB != "" {
			out = append(out, rel.TargetB)
		}
	}
	return out
}
