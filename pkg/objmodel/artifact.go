package objmodel

import (
	"fmt"
	"sort"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// Format identifies which of the four supported object-file containers
// an Artifact was parsed from.
type Format int

const (
	FormatMachO Format = iota
	FormatELF
	FormatPE
	FormatWasm
)

func (f Format) String() string {
	switch f {
	case FormatMachO:
		return "mach-o"
	case FormatELF:
		return "elf"
	case FormatPE:
		return "pe"
	default:
		return "wasm"
	}
}

// Artifact is a parsed object file held read-only for the duration of a
// diff+build episode. It is produced once by Load and never mutated
// afterwards.
type Artifact struct {
	Format   Format
	Path     string
	Sections []*Section
	// Symbols is keyed by name for defined, non-local symbols; every
	// value also appears in its Section's Symbols slice.
	Symbols map[string]*Symbol
	// AllSymbols additionally includes local-compiler-generated and
	// undefined symbols, which may not have unique, stable names across
	// compiles and are therefore never looked up by name from here.
	AllSymbols []*Symbol
}

// Lookup returns the defined symbol with the given name, or nil.
func (a *Artifact) Lookup(name string) *Symbol {
	return a.Symbols[name]
}

// Section returns the section with the given name, or nil.
func (a *Artifact) Section(name string) *Section {
	for _, s := range a.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ExportedNames returns the sorted set of exported (non-hidden,
// non-local) symbol names, used by PatchBuilder's dead-strip
// verification.
func (a *Artifact) ExportedNames() []string {
	names := make([]string, 0, len(a.Symbols))
	for name, sym := range a.Symbols {
		if sym.Scope == ScopeExported {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// newArtifact builds an Artifact from fully-populated sections, then
// synthesizes symbol sizes and indexes symbols by name. Per-format
// parsers call this once they've read every section/symbol/relocation.
func newArtifact(format Format, path string, sections []*Section) (*Artifact, error) {
	a := &Artifact{
		Format:   format,
		Path:     path,
		Sections: sections,
		Symbols:  make(map[string]*Symbol),
	}

	synthesizeSizes(sections)

	for _, sec := range sections {
		for _, sym := range sec.Symbols {
			a.AllSymbols = append(a.AllSymbols, sym)
			if sym.Undefined || sym.Local {
				continue
			}
			if existing, ok := a.Symbols[sym.Name]; ok && !existing.IsAliasOf(sym) {
				return nil, fmt.Errorf("%w: duplicate definition of symbol %q", subserr.ErrInvalidObject, sym.Name)
			}
			a.Symbols[sym.Name] = sym
		}
	}

	return a, nil
}
