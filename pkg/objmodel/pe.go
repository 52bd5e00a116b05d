package objmodel

import (
	"debug/pe"
	"fmt"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// ParsePE reads a COFF object file or PE image into an Artifact. Mirrors
// elf.go/macho.go's approach using the standard library's debug/pe
// reader, normalizing the x86_64 COFF relocation type codes that the
// system linker (link.exe / lld-link) produces for Windows targets.
func ParsePE(path string) (*Artifact, error) {
	f, err := pe.Open(path)
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
			Kind: peSectionKind(sh),
			Data: data,
			Addr: uint64(sh.VirtualAddress),
		}
		sections = append(sections, sec)
		sectionByIdx[idx] = sec
	}

	for _, sym := range f.Symbols {
		if sym.SectionNumber <= 0 || int(sym.SectionNumber-1) >= len(sections) {
			continue // undefined, absolute or debug symbol
		}
		sec := sectionByIdx[int(sym.SectionNumber-1)]
		if sec == nil || sym.Name == "" {
			continue
		}
		sec.Symbols = append(sec.Symbols, &Symbol{
			Name:    sym.Name,
			Kind:    peSymbolKind(sec.Kind),
			Scope:   peSymbolScope(sym),
			Address: uint64(sym.Value),
			Section: sec,
			Local:   sym.StorageClass != pe.IMAGE_SYM_CLASS_EXTERNAL,
		})
	}

	for idx, sh := range f.Sections {
		sec := sectionByIdx[idx]
		if sec == nil {
			continue
		}
		for _, r := range sh.Relocs {
			kind, width, err := normalizePECOFFReloc(f.Machine, r.Type)
			if err != nil {
				return nil, err
			}
			target := ""
			if int(r.SymbolTableIndex) < len(f.COFFSymbols) {
				target, _ = f.COFFSymbols[r.SymbolTableIndex].FullName(f.StringTable)
			}
			rel := Relocation{
				Offset: uint64(r.VirtualAddress),
				Kind:   kind,
				Target: target,
				Width:  width,
			}
			if int(r.VirtualAddress)+width <= len(sec.Data) {
				rel.Addend = readImplicitAddend(sec.Data[r.VirtualAddress:], width)
			}
			sec.Relocations = append(sec.Relocations, rel)
		}
	}

	return newArtifact(FormatPE, path, sections)
}

func peSectionKind(sh *pe.Section) SectionKind {
	const imageScnMemExecute = 0x20000000
	const imageScnMemWrite = 0x80000000
	switch {
	case sh.Characteristics&imageScnMemExecute != 0:
		return SectionCode
	case sh.Name == ".pdata" || sh.Name == ".xdata":
		return SectionExceptionFrame
	case sh.Name == ".idata":
		return SectionGOT
	case sh.Characteristics&imageScnMemWrite != 0:
		return SectionData
	default:
		return SectionConstant
	}
}

func peSymbolKind(secKind SectionKind) SymbolKind {
	if secKind == SectionCode {
		return SymKindText
	}
	if secKind == SectionConstant {
		return SymKindReadOnlyData
	}
	return SymKindData
}

func peSymbolScope(sym *pe.Symbol) SymbolScope {
	if sym.StorageClass != pe.IMAGE_SYM_CLASS_EXTERNAL {
		return ScopeLocalCompilerGenerated
	}
	return ScopeExported
}

// normalizePECOFFReloc maps the IMAGE_REL_AMD64_* type codes to the
// abstract kind set.
func normalizePECOFFReloc(machine uint16, typ uint16) (RelocationKind, int, error) {
	const imageFileMachineAmd64 = 0x8664
	if machine != imageFileMachineAmd64 {
		return 0, 0, UnsupportedRelocation(fmt.Sprintf("machine=0x%x type=%d", machine, typ), 0)
	}
	switch typ {
	case 0x01: // IMAGE_REL_AMD64_ADDR64
		return RelocAbsolute64, 8, nil
	case 0x04: // IMAGE_REL_AMD64_REL32
		return RelocPCRelative32, 4, nil
	case 0x03: // IMAGE_REL_AMD64_ADDR32NB (RVA-relative, used for GOT-ish loads)
		return RelocGotLoad, 4, nil
	default:
		return 0, 0, UnsupportedRelocation(fmt.Sprintf("IMAGE_REL_AMD64_%d", typ), 0)
	}
}
