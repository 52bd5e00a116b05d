// Package objmodel provides a uniform read-only view over Mach-O, ELF,
// PE/COFF and WebAssembly object files: symbols, sections and relocations
// normalized to a single abstract representation, so the differ and the
// patch builder never need per-format logic of their own.
package objmodel

// SymbolKind classifies the storage a symbol occupies.
type SymbolKind int

const (
	SymKindText SymbolKind = iota
	SymKindData
	SymKindReadOnlyData
	SymKindZeroInitData
	SymKindThreadLocal
	SymKindExceptionFrame
	SymKindOther
)

func (k SymbolKind) String() string {
	switch k {
	case SymKindText:
		return "text"
	case SymKindData:
		return "data"
	case SymKindReadOnlyData:
		return "readonly-data"
	case SymKindZeroInitData:
		return "zero-init-data"
	case SymKindThreadLocal:
		return "thread-local"
	case SymKindExceptionFrame:
		return "exception-frame"
	default:
		return "other"
	}
}

// SymbolScope classifies visibility of a symbol outside its object file.
type SymbolScope int

const (
	ScopeExported SymbolScope = iota
	ScopeHidden
	ScopeLocalCompilerGenerated
)

func (s SymbolScope) String() string {
	switch s {
	case ScopeExported:
		return "exported"
	case ScopeHidden:
		return "hidden"
	default:
		return "local-compiler-generated"
	}
}

// SymbolWeakness classifies linkage strength.
type SymbolWeakness int

const (
	WeaknessStrong SymbolWeakness = iota
	WeaknessWeak
	WeaknessAlias
)

func (w SymbolWeakness) String() string {
	switch w {
	case WeaknessStrong:
		return "strong"
	case WeaknessWeak:
		return "weak"
	default:
		return "alias"
	}
}

// Symbol is a single defined or undefined name in an object file. Size
// is always populated by the time a Symbol leaves a parser; every parser
// runs synthesizeSizes before returning (see sizeinfer.go).
type Symbol struct {
	Name     string
	Kind     SymbolKind
	Scope    SymbolScope
	Weakness SymbolWeakness
	Address  uint64 // offset within Section
	Size     uint64
	Section  *Section

	// Local is true for names drawn from the platform's local-symbol
	// namespace (compiler-generated labels, string-literal symbols,
	// exception tables) that are unstable across compiles and therefore
	// compared structurally rather than by name.
	Local bool

	// Undefined is true when this symbol is a reference the linker must
	// resolve against another object or the running process, rather than
	// a definition owned by this artifact.
	Undefined bool
}

// CompileAddress returns the symbol's full link-time virtual address:
// its owning section's base address plus its offset within that
// section. This is the address the jump table and anchor reconciliation
// operate on, as distinct from Address, which is section-relative and
// is what the differ's byte-range walk uses.
func (s *Symbol) CompileAddress() uint64 {
	if s.Section == nil {
		return s.Address
	}
	return s.Section.Addr + s.Address
}

// IsAliasOf reports whether two symbols occupy the same address in the
// same section and therefore must be classified, and redirected,
// together.
func (s *Symbol) IsAliasOf(other *Symbol) bool {
	if s.Section == nil || other.Section == nil {
		return false
	}
	return s.Section == other.Section && s.Address == other.Address
}
