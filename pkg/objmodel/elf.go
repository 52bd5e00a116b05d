package objmodel

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// elfRelocWidth mirrors the per-arch relocation size tables carried by
// the retrieval pack's aclements/go-obj elfReloc maps: width in bytes of
// the value each relocation type patches in.
var elfRelocWidthX86_64 = map[elf.R_X86_64]int{
	elf.R_X86_64_64:       8,
	elf.R_X86_64_PC32:     4,
	elf.R_X86_64_PLT32:    4,
	elf.R_X86_64_GOT32:    4,
	elf.R_X86_64_GOTPCREL: 4,
	elf.R_X86_64_32:       4,
	elf.R_X86_64_32S:      4,
}

// ParseELF reads a relocatable ELF object file (base or patch artifact)
// into an Artifact, normalizing x86_64 and aarch64 relocations to the
// abstract RelocationKind set, using the same debug/elf-driven approach
// to pull symbols and relocations out of a .o file.
func ParseELF(path string) (*Artifact, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", subserr.ErrInvalidObject, err)
	}
	defer f.Close()
	return parseELFFile(path, f)
}

func parseELFFile(path string, f *elf.File) (*Artifact, error) {
	symtab, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, InvalidObject("reading ELF symbol table: %v", err)
	}

	sections := make([]*Section, 0, len(f.Sections))
	sectionByIdx := make(map[int]*Section, len(f.Sections))
	sectionIsNobits := make(map[int]bool, len(f.Sections))

	for idx, sh := range f.Sections {
		if sh.Type == elf.SHT_NULL {
			sectionByIdx[idx] = nil
			continue
		}
		data, _ := sh.Data() // relocation/string sections legitimately return empty
		sec := &Section{
			Name: sh.Name,
			Kind: elfSectionKind(sh),
			Data: data,
			Addr: sh.Addr,
		}
		sections = append(sections, sec)
		sectionByIdx[idx] = sec
		sectionIsNobits[idx] = sh.Type == elf.SHT_NOBITS
	}

	secIndexByName := make(map[string]int, len(sections))
	for i, sec := range sections {
		secIndexByName[sec.Name] = i
	}

	// Symbols: attach each defined symbol to its owning section.
	symByElfIndex := make(map[int]*elf.Symbol, len(symtab))
	for i := range symtab {
		sym := &symtab[i]
		symByElfIndex[i] = sym
		if sym.Section == elf.SHN_UNDEF || sym.Section >= elf.SHN_LORESERVE {
			continue
		}
		sec := sectionByIdx[int(sym.Section)]
		if sec == nil || sym.Name == "" {
			continue
		}
		kind := elfSymbolKind(sec.Kind, elf.ST_TYPE(sym.Info))
		if sectionIsNobits[int(sym.Section)] && kind == SymKindData {
			kind = SymKindZeroInitData
		}
		sec.Symbols = append(sec.Symbols, &Symbol{
			Name:    sym.Name,
			Kind:    kind,
			Scope:   elfSymbolScope(sym),
			Address: sym.Value - sh(f, sym.Section),
			Size:    sym.Size,
			Section: sec,
			Local:   elf.ST_BIND(sym.Info) == elf.STB_LOCAL,
		})
	}

	// Relocations live in .rela.X / .rel.X sections, targeting section X.
	for idx, sh := range f.Sections {
		if sh.Type != elf.SHT_RELA && sh.Type != elf.SHT_REL {
			continue
		}
		targetName := sh.Name
		// .rela.text -> .text
		for _, prefix := range []string{".rela", ".rel"} {
			if len(targetName) > len(prefix) && targetName[:len(prefix)] == prefix {
				targetName = targetName[len(prefix):]
				break
			}
		}
		targetIdx, ok := secIndexByName[targetName]
		if !ok {
			continue
		}
		target := sections[targetIdx]

		relocs, err := decodeELFRelocs(f, idx, sh, symByElfIndex, target.Data)
		if err != nil {
			return nil, err
		}
		target.Relocations = append(target.Relocations, relocs...)
	}

	return newArtifact(FormatELF, path, sections)
}

// sh returns the virtual address base of a section index, used to turn a
// symbol's absolute Value into a section-relative Address.
func sh(f *elf.File, idx elf.SectionIndex) uint64 {
	if int(idx) >= len(f.Sections) {
		return 0
	}
	return f.Sections[idx].Addr
}

func elfSectionKind(sh *elf.Section) SectionKind {
	switch {
	case sh.Flags&elf.SHF_EXECINSTR != 0:
		return SectionCode
	case sh.Name == ".eh_frame" || sh.Name == ".debug_frame":
		return SectionExceptionFrame
	case sh.Name == ".got" || sh.Name == ".got.plt":
		return SectionGOT
	case sh.Flags&elf.SHF_WRITE != 0:
		return SectionData
	case sh.Flags&elf.SHF_ALLOC != 0:
		return SectionConstant
	default:
		return SectionMetadata
	}
}

func elfSymbolKind(secKind SectionKind, t elf.SymType) SymbolKind {
	switch t {
	case elf.STT_FUNC:
		return SymKindText
	case elf.STT_TLS:
		return SymKindThreadLocal
	case elf.STT_OBJECT:
		if secKind == SectionConstant {
			return SymKindReadOnlyData
		}
		return SymKindData
	default:
		if secKind == SectionCode {
			return SymKindText
		}
		return SymKindOther
	}
}

func elfSymbolScope(sym elf.Symbol) SymbolScope {
	switch elf.ST_BIND(sym.Info) {
	case elf.STB_LOCAL:
		return ScopeLocalCompilerGenerated
	case elf.STB_WEAK:
		return ScopeExported
	default:
		if sym.Section == elf.SHN_UNDEF {
			return ScopeHidden
		}
		return ScopeExported
	}
}

func decodeELFRelocs(f *elf.File, shIdx int, sh *elf.Section, symByIdx map[int]*elf.Symbol, targetData []byte) ([]Relocation, error) {
	data, err := sh.Data()
	if err != nil {
		return nil, InvalidObject("reading relocation section %s: %v", sh.Name, err)
	}

	var out []Relocation
	entSize := 24 // Rela64: r_offset, r_info, r_addend, 8 bytes each
	if sh.Type == elf.SHT_REL {
		entSize = 16
	}
	if f.Class == elf.ELFCLASS32 {
		entSize = entSize * 12 / 24 // Rel32=8, Rela32=12
	}

	for off := 0; off+entSize <= len(data); off += entSize {
		var offset uint64
		var info uint64
		var addend int64

		if f.Class == elf.ELFCLASS64 {
			offset = binary.LittleEndian.Uint64(data[off:])
			info = binary.LittleEndian.Uint64(data[off+8:])
			if sh.Type == elf.SHT_RELA {
				addend = int64(binary.LittleEndian.Uint64(data[off+16:]))
			}
		} else {
			offset = uint64(binary.LittleEndian.Uint32(data[off:]))
			info = uint64(binary.LittleEndian.Uint32(data[off+4:]))
			if sh.Type == elf.SHT_RELA {
				addend = int64(int32(binary.LittleEndian.Uint32(data[off+8:])))
			}
		}

		infoBits := utils.CreateBitView(&info)
		symIdx := int(infoBits.Read(32, 32))
		typ := uint32(infoBits.Read(0, 32))
		if f.Class == elf.ELFCLASS32 {
			symIdx = int(infoBits.Read(8, 24))
			typ = uint32(infoBits.Read(0, 8))
		}

		kind, width, err := normalizeELFRelocType(f.Machine, typ)
		if err != nil {
			return nil, err
		}

		target := ""
		local := false
		if sym, ok := symByIdx[symIdx]; ok {
			if sym.Name != "" {
				target = sym.Name
			} else {
				local = true
			}
		}

		if sh.Type == elf.SHT_REL && int(offset)+width <= len(targetData) {
			addend = readImplicitAddend(targetData[offset:], width)
		}

		out = append(out, Relocation{
			Offset:      offset,
			Kind:        kind,
			Target:      target,
			Addend:      addend,
			Width:       width,
			LocalTarget: local,
		})
	}

	return out, nil
}

// readImplicitAddend reads the addend embedded in the section bytes for
// REL-style relocations, which carry no explicit addend field.
func readImplicitAddend(b []byte, width int) int64 {
	switch width {
	case 8:
		v := binary.LittleEndian.Uint64(b)
		return int64(v)
	case 4:
		v := binary.LittleEndian.Uint32(b)
		return int64(int32(v))
	case 2:
		v := binary.LittleEndian.Uint16(b)
		return int64(int16(v))
	case 1:
		return int64(int8(b[0]))
	default:
		return 0
	}
}

func normalizeELFRelocType(machine elf.Machine, typ uint32) (RelocationKind, int, error) {
	switch machine {
	case elf.EM_X86_64:
		rtype := elf.R_X86_64(typ)
		width, ok := elfRelocWidthX86_64[rtype]
		if !ok {
			return 0, 0, UnsupportedRelocation(fmt.Sprintf("R_X86_64_%d", typ), 0)
		}
		switch rtype {
		case elf.R_X86_64_64:
			return RelocAbsolute64, width, nil
		case elf.R_X86_64_PC32, elf.R_X86_64_PLT32, elf.R_X86_64_32, elf.R_X86_64_32S:
			return RelocPCRelative32, width, nil
		case elf.R_X86_64_GOTPCREL:
			return RelocGotLoad, width, nil
		case elf.R_X86_64_GOT32:
			return RelocGotEntry, width, nil
		default:
			return 0, 0, UnsupportedRelocation(fmt.Sprintf("R_X86_64_%d", typ), 0)
		}
	case elf.EM_AARCH64:
		switch elf.R_AARCH64(typ) {
		case elf.R_AARCH64_ABS64:
			return RelocAbsolute64, 8, nil
		case elf.R_AARCH64_CALL26, elf.R_AARCH64_JUMP26:
			return RelocBranch32, 4, nil
		case elf.R_AARCH64_ADR_PREL_PG_HI21:
			return RelocPageHi21, 4, nil
		case elf.R_AARCH64_ADD_ABS_LO12_NC, elf.R_AARCH64_LDST64_ABS_LO12_NC:
			return RelocPageLoOff12, 4, nil
		case elf.R_AARCH64_ADR_GOT_PAGE:
			return RelocGotLoad, 4, nil
		case elf.R_AARCH64_LD64_GOT_LO12_NC:
			return RelocGotEntry, 4, nil
		default:
			return 0, 0, UnsupportedRelocation(fmt.Sprintf("R_AARCH64_%d", typ), 0)
		}
	default:
		return 0, 0, UnsupportedRelocation(fmt.Sprintf("machine=%v type=%d", machine, typ), 0)
	}
}
