package transport

import (
	"gopkg.in/yaml.v3"

	"github.com/subsecond-dev/subsecond/pkg/differ"
	"github.com/subsecond-dev/subsecond/pkg/patchbuilder"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// planDump is the YAML-serializable shape of a patch plan and jump
// table, used by "subsecond build --dump-plan" so a developer can
// inspect exactly what a build would ship without waiting on the
// linker.
type planDump struct {
	Exported    []string           `yaml:"exported,omitempty"`
	Data        []string           `yaml:"data,omitempty"`
	Verdicts    map[string]string  `yaml:"verdicts,omitempty"`
	Diagnostics []diagnosticDump   `yaml:"diagnostics,omitempty"`
	JumpTable   *jumpTableDump     `yaml:"jump_table,omitempty"`
}

type diagnosticDump struct {
	Symbol string `yaml:"symbol"`
	Detail string `yaml:"detail"`
}

type jumpTableDump struct {
	BaseAnchorAddr  uint64              `yaml:"base_anchor_addr"`
	PatchAnchorAddr uint64              `yaml:"patch_anchor_addr"`
	IfuncCount      uint32              `yaml:"ifunc_count,omitempty"`
	Entries         []jumpTableEntryDump `yaml:"entries"`
}

type jumpTableEntryDump struct {
	Symbol           string `yaml:"symbol"`
	BaseCompileAddr  uint64 `yaml:"base_compile_addr"`
	PatchCompileAddr uint64 `yaml:"patch_compile_addr"`
}

// DumpPlan renders plan and the jump table computed from it (jt may be
// nil, e.g. for a --dry-run with no anchor available yet) as YAML.
func DumpPlan(plan *differ.Plan, jt *patchbuilder.JumpTable) ([]byte, error) {
	dump := planDump{
		Exported: plan.ExportedSymbols,
		Data:     plan.DataSymbols,
	}

	if len(plan.Verdicts) > 0 {
		dump.Verdicts = make(map[string]string, len(plan.Verdicts))
		for _, v := range plan.Verdicts {
			dump.Verdicts[v.Name] = v.Classification.String()
		}
	}

	for _, d := range plan.Diagnostics {
		dump.Diagnostics = append(dump.Diagnostics, diagnosticDump{Symbol: d.Symbol, Detail: d.Detail})
	}

	if jt != nil {
		jd := &jumpTableDump{
			BaseAnchorAddr:  jt.BaseAnchorAddr,
			PatchAnchorAddr: jt.PatchAnchorAddr,
			IfuncCount:      jt.IfuncCount,
		}
		jd.Entries = utils.Map(jt.Entries, func(e patchbuilder.JumpTableEntry) jumpTableEntryDump {
			return jumpTableEntryDump{
				Symbol:           e.Symbol,
				BaseCompileAddr:  e.BaseCompileAddr,
				PatchCompileAddr: e.PatchCompileAddr,
			}
		})
		dump.JumpTable = jd
	}

	return yaml.Marshal(dump)
}
