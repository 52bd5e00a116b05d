package objmodel

import (
	"debug/macho"
	"fmt"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// ParseMachO reads a Mach-O object file (or dylib) into an Artifact.
// Grounded on the same debug/<format>-driven approach as ParseELF; Go's
// standard library exposes Mach-O loads, sections and symbols the same
// shape debug/elf does, so the normalization logic mirrors elf.go
// closely by design.
func ParseMachO(path string) (*Artifact, error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", subserr.ErrInvalidObject, err)
	}
	defer f.Close()

	sections := make([]*Section, 0, len(f.Sections))
	sectionByIdx := make(map[int]*Section, len(f.Sections))
	for idx, sh := range f.Sections {
		data, _ := sh.Data()
		sec := &Section{
			Name: sh.Name,
			Kind: machoSectionKind(sh),
			Data: data,
			Addr: sh.Addr,
		}
		sections = append(sections, sec)
		sectionByIdx[idx] = sec
	}

	if f.Symtab != nil {
		for _, sym := range f.Symtab.Syms {
			if sym.Sect == 0 || int(sym.Sect-1) >= len(sections) {
				continue // undefined or absolute symbol, no home section
			}
			sec := sectionByIdx[int(sym.Sect-1)]
			if sec == nil || sym.Name == "" {
				continue
			}
			sh := f.Sections[sym.Sect-1]
			kind := machoSymbolKind(sec.Kind)
			const sZerofill = 0x01 // S_ZEROFILL section type, low byte of Flags
			if kind == SymKindData && sh.Flags&0xff == sZerofill {
				kind = SymKindZeroInitData
			}
			sec.Symbols = append(sec.Symbols, &Symbol{
				Name:    sym.Name,
				Kind:    kind,
				Scope:   machoSymbolScope(sym),
				Address: sym.Value - sh.Addr,
				Section: sec,
				Local:   sym.Type&0xe1 == 0, // N_EXT bit (0x01) unset and not a stab (0xe0) -> local
			})
		}
	}

	if err := decodeMachORelocs(f, sections, sectionByIdx); err != nil {
		return nil, err
	}

	return newArtifact(FormatMachO, path, sections)
}

func machoSectionKind(sh *macho.Section) SectionKind {
	switch {
	case sh.Flags&0x80000000 != 0 || sh.Name == "__text": // S_ATTR_PURE_INSTRUCTIONS-ish / conventional name
		return SectionCode
	case sh.Name == "__eh_frame" || sh.Name == "__unwind_info":
		return SectionExceptionFrame
	case sh.Name == "__got" || sh.Name == "__la_symbol_ptr":
		return SectionGOT
	case sh.Name == "__const" || sh.Seg == "__TEXT":
		return SectionConstant
	default:
		return SectionData
	}
}

func machoSymbolKind(secKind SectionKind) SymbolKind {
	if secKind == SectionCode {
		return SymKindText
	}
	if secKind == SectionConstant {
		return SymKindReadOnlyData
	}
	return SymKindData
}

func machoSymbolScope(sym macho.Symbol) SymbolScope {
	const nExt = 0x01
	const nPext = 0x10
	if sym.Type&nExt == 0 {
		return ScopeLocalCompilerGenerated
	}
	if sym.Type&nPext != 0 {
		return ScopeHidden
	}
	return ScopeExported
}

func decodeMachORelocs(f *macho.File, sections []*Section, sectionByIdx map[int]*Section) error {
	for idx, sh := range f.Sections {
		sec := sectionByIdx[idx]
		if sec == nil {
			continue
		}
		relocs := sh.Relocs
		for i := 0; i < len(relocs); i++ {
			r := relocs[i]
			kind, width, pairedSubtractor, err := normalizeMachOReloc(f, r)
			if err != nil {
				return err
			}

			target := ""
			local := false
			if int(r.Value) < len(f.Symtab.Syms) && !r.Extern {
				local = true
			} else if r.Extern && int(r.Value) < len(f.Symtab.Syms) {
				target = f.Symtab.Syms[r.Value].Name
			}

			rel := Relocation{
				Offset:      uint64(r.Addr),
				Kind:        kind,
				Target:      target,
				Width:       width,
				LocalTarget: local,
			}
			if width <= len(sec.Data)-int(r.Addr) && width > 0 {
				rel.Addend = readImplicitAddend(sec.Data[r.Addr:], width)
			}

			if pairedSubtractor && i+1 < len(relocs) {
				i++
				next := relocs[i]
				if next.Extern && int(next.Value) < len(f.Symtab.Syms) {
					rel.TargetB = f.Symtab.Syms[next.Value].Name
				}
				rel.Kind = RelocSubtractor
			}

			sec.Relocations = append(sec.Relocations, rel)
		}
	}
	return nil
}

// normalizeMachOReloc maps the x86_64/arm64 Mach-O relocation type codes
// (debug/macho exposes them as the raw uint8 Type field) into the
// abstract kind set. macho.RelocTypeX86_64 / macho.RelocTypeARM64 give
// the symbolic names.
func normalizeMachOReloc(f *macho.File, r macho.Reloc) (kind RelocationKind, widthBytes int, isSubtractor bool, err error) {
	width := 1 << r.Len // r.Len is log2(width in bytes)

	switch f.Cpu {
	case macho.CpuAmd64:
		switch macho.RelocTypeX86_64(r.Type) {
		case macho.X86_64_RELOC_UNSIGNED:
			return RelocAbsolute64, width, false, nil
		case macho.X86_64_RELOC_SIGNED, macho.X86_64_RELOC_BRANCH:
			return RelocPCRelative32, width, false, nil
		case macho.X86_64_RELOC_GOT_LOAD:
			return RelocGotLoad, width, false, nil
		case macho.X86_64_RELOC_GOT:
			return RelocGotEntry, width, false, nil
		case macho.X86_64_RELOC_SUBTRACTOR:
			return RelocSubtractor, width, true, nil
		default:
			return 0, 0, false, UnsupportedRelocation(fmt.Sprintf("X86_64_RELOC_%d", r.Type), uint64(r.Addr))
		}
	case macho.CpuArm64:
		switch r.Type {
		case 0: // ARM64_RELOC_UNSIGNED
			return RelocAbsolute64, width, false, nil
		case 2: // ARM64_RELOC_BRANCH26
			return RelocBranch32, width, false, nil
		case 3: // ARM64_RELOC_PAGE21
			return RelocPageHi21, width, false, nil
		case 4: // ARM64_RELOC_PAGEOFF12
			return RelocPageLoOff12, width, false, nil
		case 5: // ARM64_RELOC_GOT_LOAD_PAGE21
			return RelocGotLoad, width, false, nil
		case 6: // ARM64_RELOC_GOT_LOAD_PAGEOFF12
			return RelocGotEntry, width, false, nil
		case 9: // ARM64_RELOC_SUBTRACTOR
			return RelocSubtractor, width, true, nil
		default:
			return 0, 0, false, UnsupportedRelocation(fmt.Sprintf("ARM64_RELOC_%d", r.Type), uint64(r.Addr))
		}
	default:
		return 0, 0, false, UnsupportedRelocation(fmt.Sprintf("cpu=%v type=%d", f.Cpu, r.Type), uint64(r.Addr))
	}
}
