package objmodel

import (
	"debug/dwarf"
	"debug/elf"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// NameAnchorFromDWARF looks up the compile-time address of a function
// named symbolName using an ELF artifact's DWARF debug info, for builds
// that strip the symbol table (so Lookup finds nothing) but keep debug
// info around for crash reporting. BuildJumpTable's anchor lookup falls
// back to this when the artifact's Symbols map doesn't have the
// requested anchor.
//
// Walks DW_TAG_subprogram DIEs to resolve a function name from a
// stripped object, the same approach an LLVM-based DWARF reader uses.
func NameAnchorFromDWARF(path, symbolName string) (uint64, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, InvalidObject("opening %s for debug info: %v", path, err)
	}
	defer f.Close()

	d, err := f.DWARF()
	if err != nil {
		return 0, subserr.Wrap(subserr.ErrDebugInfoMissing, "%s: %v", path, err)
	}

	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return 0, subserr.Wrap(subserr.ErrDebugInfoMissing, "reading DWARF entries in %s: %v", path, err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		name, _ := entry.Val(dwarf.AttrName).(string)
		if name != symbolName {
			continue
		}
		if low, ok := entry.Val(dwarf.AttrLowpc).(uint64); ok {
			return low, nil
		}
	}
	return 0, subserr.Wrap(subserr.ErrDebugInfoMissing, "%s: no DW_TAG_subprogram named %q with a low_pc", path, symbolName)
}

// LineForAddr resolves addr back to a source file and line using the
// artifact's DWARF line table, for annotating a diff diagnostic with
// "changed at foo.c:42" instead of a bare compile address. Returns ok
// false if addr falls outside every compilation unit's line table, which
// is expected for compiler-synthesized code with no source mapping.
func LineForAddr(path string, addr uint64) (file string, line int, ok bool) {
	f, err := elf.Open(path)
	if err != nil {
		return "", 0, false
	}
	defer f.Close()

	d, err := f.DWARF()
	if err != nil {
		return "", 0, false
	}

	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			return "", 0, false
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := d.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				break
			}
			if le.Address == addr && le.IsStmt {
				return le.File.Name, le.Line, true
			}
		}
	}
}
