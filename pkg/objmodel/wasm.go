package objmodel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

const (
	wasmSecCustom   = 0
	wasmSecType     = 1
	wasmSecImport   = 2
	wasmSecFunction = 3
	wasmSecTable    = 4
	wasmSecMemory   = 5
	wasmSecGlobal   = 6
	wasmSecExport   = 7
	wasmSecStart    = 8
	wasmSecElement  = 9
	wasmSecCode     = 10
	wasmSecData     = 11
)

// wasmSymbolKind mirrors the WASM_SYMBOL_TABLE subsection's SYMTAB_*
// entry kinds emitted by wasm-ld/LLVM's linking metadata.
const (
	wasmSymFunction = 0
	wasmSymData     = 1
	wasmSymGlobal   = 2
)

// ParseWasm reads a linkable WebAssembly object module (as produced by
// `clang --target=wasm32 -c` / `wasm-ld -r`) into an Artifact. The
// module's "linking" and "reloc." custom sections carry the symbol table
// and relocations; function/data bodies are exposed as a single
// synthetic "code"/"data" Section so the differ's byte-range walk
// applies unchanged.
func ParseWasm(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", subserr.ErrInvalidObject, err)
	}
	return parseWasmBytes(path, raw)
}

func parseWasmBytes(path string, raw []byte) (*Artifact, error) {
	if len(raw) < 8 || !bytes.Equal(raw[:4], wasmMagic) {
		return nil, InvalidObject("missing wasm magic number")
	}
	version := binary.LittleEndian.Uint32(raw[4:8])
	if version != 1 {
		return nil, InvalidObject("unsupported wasm binary version %d", version)
	}

	code := &Section{Name: "code", Kind: SectionCode}
	data := &Section{Name: "data", Kind: SectionData}
	sections := []*Section{code, data}

	funcNames := map[uint32]string{}  // function index -> export/linking name
	funcOffsets := map[uint32]uint64{} // function index -> offset within code.Data
	funcSizes := map[uint32]uint64{}
	dataOffsets := map[uint32]uint64{}
	dataSizes := map[uint32]uint64{}
	dataNames := map[uint32]string{}
	numImportedFuncs := uint32(0)

	var codeBody []byte
	var dataBody []byte
	var linkingSym []wasmLinkingSymbol
	relocsBySection := map[uint32][]Relocation{}

	r := &byteReader{data: raw[8:]}
	for {
		idByte, ok := r.byte()
		if !ok {
			break
		}
		size, err := r.uleb32()
		if err != nil {
			return nil, InvalidObject("reading wasm section size: %v", err)
		}
		if r.pos+int(size) > len(r.data) {
			return nil, InvalidObject("wasm section extends past end of file")
		}
		body := r.data[r.pos : r.pos+int(size)]
		r.skip(int(size))

		switch idByte {
		case wasmSecImport:
			numImportedFuncs = countImportedFunctions(body)
		case wasmSecExport:
			parseWasmExports(body, funcNames, dataNames)
		case wasmSecCode:
			codeBody = body
			parseWasmCodeOffsets(body, numImportedFuncs, funcOffsets, funcSizes)
		case wasmSecData:
			dataBody = body
			parseWasmDataOffsets(body, dataOffsets, dataSizes)
		case wasmSecCustom:
			name, nr := peekCustomName(body)
			switch name {
			case "linking":
				linkingSym = parseLinkingSection(body[nr:])
			default:
				if len(name) >= 5 && name[:5] == "reloc" {
					secIdx, relocs, err := parseRelocSection(body[nr:])
					if err != nil {
						return nil, err
					}
					relocsBySection[secIdx] = append(relocsBySection[secIdx], relocs...)
				}
			}
		}
	}

	code.Data = codeBody
	data.Data = dataBody

	for idx, name := range funcNames {
		if name == "" {
			continue
		}
		code.Symbols = append(code.Symbols, &Symbol{
			Name:    name,
			Kind:    SymKindText,
			Scope:   ScopeExported,
			Address: funcOffsets[idx],
			Size:    funcSizes[idx],
			Section: code,
		})
	}
	for idx, name := range dataNames {
		if name == "" {
			continue
		}
		data.Symbols = append(data.Symbols, &Symbol{
			Name:    name,
			Kind:    SymKindData,
			Scope:   ScopeExported,
			Address: dataOffsets[idx],
			Size:    dataSizes[idx],
			Section: data,
		})
	}

	// The linking section's symbol table is the authoritative source for
	// hidden/local (non-exported) function and data symbols; merge it in
	// without clobbering names already resolved via exports.
	seen := map[string]bool{}
	for _, s := range append(code.Symbols, data.Symbols...) {
		seen[s.Name] = true
	}
	for _, ls := range linkingSym {
		if ls.name == "" || seen[ls.name] {
			continue
		}
		switch ls.kind {
		case wasmSymFunction:
			code.Symbols = append(code.Symbols, &Symbol{
				Name:    ls.name,
				Kind:    SymKindText,
				Scope:   wasmScope(ls.flags),
				Address: funcOffsets[ls.index],
				Size:    funcSizes[ls.index],
				Section: code,
			})
		case wasmSymData:
			data.Symbols = append(data.Symbols, &Symbol{
				Name:    ls.name,
				Kind:    SymKindData,
				Scope:   wasmScope(ls.flags),
				Address: dataOffsets[ls.index],
				Size:    dataSizes[ls.index],
				Section: data,
			})
		}
		seen[ls.name] = true
	}

	code.Relocations = relocsBySection[wasmSecCode]
	data.Relocations = relocsBySection[wasmSecData]

	return newArtifact(FormatWasm, path, sections)
}

const wasmSymFlagUndefined = 0x10
const wasmSymFlagVisibilityHidden = 0x4

func wasmScope(flags uint32) SymbolScope {
	if flags&wasmSymFlagVisibilityHidden != 0 {
		return ScopeHidden
	}
	return ScopeExported
}

func countImportedFunctions(body []byte) uint32 {
	r := &byteReader{data: body}
	count, err := r.uleb32()
	if err != nil {
		return 0
	}
	var funcs uint32
	for i := uint32(0); i < count; i++ {
		if _, err := r.name(); err != nil {
			return funcs
		}
		if _, err := r.name(); err != nil {
			return funcs
		}
		kind, ok := r.byte()
		if !ok {
			return funcs
		}
		if kind == 0x00 { // func import
			r.uleb32() // type index
			funcs++
		} else {
			// table/memory/global imports: best-effort skip not needed
			// for diffing (they never carry patchable bodies).
			return funcs
		}
	}
	return funcs
}

func parseWasmExports(body []byte, funcNames, dataNames map[uint32]string) {
	r := &byteReader{data: body}
	count, err := r.uleb32()
	if err != nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return
		}
		kind, ok := r.byte()
		if !ok {
			return
		}
		idx, err := r.uleb32()
		if err != nil {
			return
		}
		if kind == 0x00 {
			funcNames[idx] = name
		}
	}
}

func parseWasmCodeOffsets(body []byte, numImported uint32, offsets, sizes map[uint32]uint64) {
	r := &byteReader{data: body}
	count, err := r.uleb32()
	if err != nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		size, err := r.uleb32()
		if err != nil {
			return
		}
		offsets[numImported+i] = uint64(r.pos)
		sizes[numImported+i] = uint64(size)
		r.skip(int(size))
	}
}

func parseWasmDataOffsets(body []byte, offsets, sizes map[uint32]uint64) {
	r := &byteReader{data: body}
	count, err := r.uleb32()
	if err != nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		if _, err := r.uleb32(); err != nil { // memory index / flags
			return
		}
		// skip offset expression (a constant expr terminated by 0x0b)
		for {
			b, ok := r.byte()
			if !ok || b == 0x0b {
				break
			}
		}
		size, err := r.uleb32()
		if err != nil {
			return
		}
		offsets[i] = uint64(r.pos)
		sizes[i] = uint64(size)
		r.skip(int(size))
	}
}

func peekCustomName(body []byte) (string, int) {
	r := &byteReader{data: body}
	name, err := r.name()
	if err != nil {
		return "", 0
	}
	return name, r.pos
}

type wasmLinkingSymbol struct {
	kind  byte
	flags uint32
	index uint32
	name  string
}

// parseLinkingSection decodes only the WASM_SYMBOL_TABLE (id 8)
// subsection of the "linking" custom section; the rest (segment info,
// init funcs, comdats) doesn't affect diffing.
func parseLinkingSection(body []byte) []wasmLinkingSymbol {
	r := &byteReader{data: body}
	if _, err := r.uleb32(); err != nil { // linking metadata version
		return nil
	}
	var out []wasmLinkingSymbol
	for r.pos < len(r.data) {
		subID, ok := r.byte()
		if !ok {
			break
		}
		subSize, err := r.uleb32()
		if err != nil || r.pos+int(subSize) > len(r.data) {
			break
		}
		sub := r.data[r.pos : r.pos+int(subSize)]
		r.skip(int(subSize))
		if subID != 8 { // WASM_SYMBOL_TABLE
			continue
		}
		sr := &byteReader{data: sub}
		count, err := sr.uleb32()
		if err != nil {
			continue
		}
		for i := uint32(0); i < count; i++ {
			kind, ok := sr.byte()
			if !ok {
				break
			}
			flags, err := sr.uleb32()
			if err != nil {
				break
			}
			sym := wasmLinkingSymbol{kind: kind, flags: flags}
			switch kind {
			case wasmSymFunction, wasmSymGlobal:
				idx, _ := sr.uleb32()
				sym.index = idx
				if flags&wasmSymFlagUndefined == 0 {
					sym.name, _ = sr.name()
				}
			case wasmSymData:
				sym.name, _ = sr.name()
				if flags&wasmSymFlagUndefined == 0 {
					sr.uleb32() // segment index
					sr.uleb32() // offset
					sr.uleb32() // size
				}
			default:
				// section symbols and others: skip remaining fields by
				// bailing out of this subsection rather than guessing
				// their encoding.
				return out
			}
			out = append(out, sym)
		}
	}
	return out
}

// parseRelocSection decodes a "reloc.X" custom section, producing
// relocations against the section it targets (identified by index into
// the module's section list, which ParseWasm matches against wasmSecCode
// or wasmSecData by convention for the subset of sections this engine
// patches).
func parseRelocSection(body []byte) (uint32, []Relocation, error) {
	r := &byteReader{data: body}
	secIdx, err := r.uleb32()
	if err != nil {
		return 0, nil, InvalidObject("reading reloc section target index: %v", err)
	}
	count, err := r.uleb32()
	if err != nil {
		return 0, nil, InvalidObject("reading reloc count: %v", err)
	}
	out := make([]Relocation, 0, count)
	for i := uint32(0); i < count; i++ {
		typ, ok := r.byte()
		if !ok {
			return 0, nil, InvalidObject("truncated reloc entry")
		}
		offset, err := r.uleb32()
		if err != nil {
			return 0, nil, InvalidObject("reading reloc offset: %v", err)
		}
		_, err = r.uleb32() // symbol index; name resolved by caller via the linking table
		if err != nil {
			return 0, nil, InvalidObject("reading reloc symbol index: %v", err)
		}

		kind, err := normalizeWasmRelocType(typ)
		if err != nil {
			return 0, nil, err
		}
		// Relocations that carry an explicit addend (MEMORY_ADDR*,
		// FUNCTION_OFFSET_I32, SECTION_OFFSET_I32) encode one more LEB
		// afterwards.
		if wasmRelocHasAddend(typ) {
			if _, err := r.sleb64(); err != nil {
				return 0, nil, InvalidObject("reading reloc addend: %v", err)
			}
		}

		out = append(out, Relocation{Offset: uint64(offset), Kind: kind, Width: wasmRelocWidth(typ)})
	}
	return secIdx, out, nil
}

// wasmRelocWidth returns the number of bytes wasm-ld reserves at a
// relocation site. LEB128-encoded indices are emitted padded to a fixed
// width so the linker can patch them in place without resizing the
// section; the *_I32 variants are plain 4-byte fields.
func wasmRelocWidth(typ byte) int {
	switch typ {
	case 6, 7, 9: // FUNCTION_OFFSET_I32, SECTION_OFFSET_I32, GLOBAL_INDEX_I32
		return 4
	case 10: // MEMORY_ADDR_LEB64, padded to a 10-byte LEB
		return 10
	default: // padded 5-byte LEB32
		return 5
	}
}

func wasmRelocHasAddend(typ byte) bool {
	switch typ {
	case 2, 3, 6, 7, 10: // MEMORY_ADDR_LEB/SLEB/LEB64, FUNCTION_OFFSET_I32, SECTION_OFFSET_I32
		return true
	default:
		return false
	}
}

// normalizeWasmRelocType maps R_WASM_* type codes (as defined by the
// "object-file linking" convention used by wasm-ld/LLVM) to the abstract
// kind set: function/table-index relocations become GotLoad/GotEntry
// (they index an indirect-call table, conceptually the wasm GOT),
// memory-address relocations become Absolute64.
func normalizeWasmRelocType(typ byte) (RelocationKind, error) {
	switch typ {
	case 0, 1: // R_WASM_FUNCTION_INDEX_LEB, R_WASM_TABLE_INDEX_SLEB
		return RelocGotLoad, nil
	case 2, 3: // R_WASM_MEMORY_ADDR_LEB, R_WASM_MEMORY_ADDR_SLEB
		return RelocAbsolute64, nil
	case 4: // R_WASM_TYPE_INDEX_LEB
		return RelocGotEntry, nil
	case 5: // R_WASM_GLOBAL_INDEX_LEB
		return RelocGotEntry, nil
	case 6, 7: // R_WASM_FUNCTION_OFFSET_I32 / SECTION_OFFSET_I32
		return RelocPCRelative32, nil
	case 8: // R_WASM_TAG_INDEX_LEB
		return RelocGotEntry, nil
	case 9: // R_WASM_GLOBAL_INDEX_I32
		return RelocGotEntry, nil
	case 10: // R_WASM_MEMORY_ADDR_LEB64
		return RelocAbsolute64, nil
	default:
		return 0, UnsupportedRelocation(fmt.Sprintf("R_WASM_%d", typ), 0)
	}
}
