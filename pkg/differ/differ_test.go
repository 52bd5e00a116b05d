package differ

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// buildArtifact wires a single code section holding one or more symbols
// directly, bypassing the format parsers, so the differ's algorithm can
// be exercised without a real object file on disk.
func buildArtifact(t *testing.T, data []byte, relocs []objmodel.Relocation, syms ...*objmodel.Symbol) *objmodel.Artifact {
	t.Helper()
	sec := &objmodel.Section{Name: "text", Kind: objmodel.SectionCode, Data: data, Relocations: relocs}
	for _, s := range syms {
		s.Section = sec
		sec.Symbols = append(sec.Symbols, s)
	}
	symbolsByName := make(map[string]*objmodel.Symbol, len(syms))
	for _, s := range syms {
		symbolsByName[s.Name] = s
	}
	return &objmodel.Artifact{
		Format:     objmodel.FormatELF,
		Sections:   []*objmodel.Section{sec},
		Symbols:    symbolsByName,
		AllSymbols: syms,
	}
}

func TestDiff_IdenticalBytesYieldsUnchanged(t *testing.T) {
	code := []byte{0x90, 0x90, 0x90, 0xc3}
	base := buildArtifact(t, code, nil, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 4})
	next := buildArtifact(t, code, nil, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 4})

	plan, err := Diff(base, next)
	require.NoError(t, err)
	require.Len(t, plan.Verdicts, 1)
	assert.Equal(t, Unchanged, plan.Verdicts[0].Classification)
	assert.True(t, plan.Empty())
}

func TestDiff_DifferentBytesYieldsChangedAndExports(t *testing.T) {
	baseCode := []byte{0x90, 0x90, 0x90, 0xc3}
	nextCode := []byte{0x90, 0x90, 0x91, 0xc3}
	base := buildArtifact(t, baseCode, nil, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 4})
	next := buildArtifact(t, nextCode, nil, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 4})

	plan, err := Diff(base, next)
	require.NoError(t, err)
	require.Len(t, plan.Verdicts, 1)
	assert.Equal(t, Changed, plan.Verdicts[0].Classification)
	assert.Equal(t, []string{"f"}, plan.ExportedSymbols)
	assert.False(t, plan.Empty())
}

func TestDiff_EquivalentRelocationsAreUnchangedDespiteByteShift(t *testing.T) {
	// Same logical relocation (same kind/target/addend) at the same site,
	// but different literal operand bytes there, as happens when the call
	// target's final address moves between builds. Bytes before and after
	// the relocated operand must still match for Unchanged.
	baseCode := []byte{0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3}
	nextCode := []byte{0xe8, 0x10, 0x20, 0x30, 0x40, 0xc3}
	rel := objmodel.Relocation{Offset: 1, Kind: objmodel.RelocPCRelative32, Target: "g", Width: 4}

	base := buildArtifact(t, baseCode, []objmodel.Relocation{rel}, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 6})
	next := buildArtifact(t, nextCode, []objmodel.Relocation{rel}, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 6})

	plan, err := Diff(base, next)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, plan.Verdicts[0].Classification)
}

func TestDiff_RelocationTargetChangeIsChanged(t *testing.T) {
	code := []byte{0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3}
	baseRel := objmodel.Relocation{Offset: 1, Kind: objmodel.RelocPCRelative32, Target: "g", Width: 4}
	nextRel := objmodel.Relocation{Offset: 1, Kind: objmodel.RelocPCRelative32, Target: "h", Width: 4}

	base := buildArtifact(t, code, []objmodel.Relocation{baseRel}, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 6})
	next := buildArtifact(t, code, []objmodel.Relocation{nextRel}, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 6})

	plan, err := Diff(base, next)
	require.NoError(t, err)
	assert.Equal(t, Changed, plan.Verdicts[0].Classification)
}

func TestDiff_LocalRelocationTargetsComparedStructurallyNotByName(t *testing.T) {
	// Local jump-table/string-literal targets get unstable names across
	// compiles (".L123" vs ".L456"); the differ must still call this
	// Unchanged because it never compares local target names.
	code := []byte{0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3}
	baseRel := objmodel.Relocation{Offset: 1, Kind: objmodel.RelocPCRelative32, LocalTarget: true, Width: 4}
	nextRel := objmodel.Relocation{Offset: 1, Kind: objmodel.RelocPCRelative32, LocalTarget: true, Width: 4}

	base := buildArtifact(t, code, []objmodel.Relocation{baseRel}, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 6})
	next := buildArtifact(t, code, []objmodel.Relocation{nextRel}, &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 6})

	plan, err := Diff(base, next)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, plan.Verdicts[0].Classification)
}

func TestDiff_NewAndRemovedSymbols(t *testing.T) {
	base := buildArtifact(t, []byte{0xc3}, nil, &objmodel.Symbol{Name: "old", Kind: objmodel.SymKindText, Address: 0, Size: 1})
	next := buildArtifact(t, []byte{0xc3}, nil, &objmodel.Symbol{Name: "new", Kind: objmodel.SymKindText, Address: 0, Size: 1})

	plan, err := Diff(base, next)
	require.NoError(t, err)

	byName := map[string]Classification{}
	for _, v := range plan.Verdicts {
		byName[v.Name] = v.Classification
	}
	assert.Equal(t, Removed, byName["old"])
	assert.Equal(t, New, byName["new"])
	assert.Contains(t, plan.ExportedSymbols, "new")
}

func TestDiff_ChangedNonZeroDataProducesHardReloadDiagnostic(t *testing.T) {
	base := buildArtifact(t, []byte{0x01, 0x00, 0x00, 0x00}, nil, &objmodel.Symbol{Name: "counter", Kind: objmodel.SymKindData, Address: 0, Size: 4})
	next := buildArtifact(t, []byte{0x02, 0x00, 0x00, 0x00}, nil, &objmodel.Symbol{Name: "counter", Kind: objmodel.SymKindData, Address: 0, Size: 4})

	plan, err := Diff(base, next)
	require.Error(t, err)
	assert.True(t, errors.Is(err, subserr.ErrChangedDataRequiresReload))
	require.Len(t, plan.Diagnostics, 1)
	assert.Equal(t, DiagHardReloadRequired, plan.Diagnostics[0].Kind)
	assert.Equal(t, "counter", plan.Diagnostics[0].Symbol)
}

func TestDiff_ChangedFunctionPullsInNewDataDependency(t *testing.T) {
	baseCode := []byte{0xc3}
	nextCode := []byte{0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3}
	rel := objmodel.Relocation{Offset: 1, Kind: objmodel.RelocAbsolute64, Target: "table", Width: 4}

	baseFn := &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 1}
	nextFn := &objmodel.Symbol{Name: "f", Kind: objmodel.SymKindText, Address: 0, Size: 6}
	nextData := &objmodel.Symbol{Name: "table", Kind: objmodel.SymKindReadOnlyData, Address: 6, Size: 8}

	base := buildArtifact(t, baseCode, nil, baseFn)
	next := buildArtifact(t, append(nextCode, make([]byte, 8)...), []objmodel.Relocation{rel}, nextFn, nextData)

	plan, err := Diff(base, next)
	require.NoError(t, err)
	assert.Contains(t, plan.ExportedSymbols, "f")
	assert.Contains(t, plan.DataSymbols, "table")
}
