package objmodel

// RelocationKind abstracts the per-format relocation type codes into a
// small closed set. The differ only ever needs to compare (Kind, target
// symbol identity, Addend); it never re-derives meaning from the
// underlying format's numeric code.
//
// The x86_64/aarch64/ELF-specific codes follow the standard
// debug/elf.R_ARM_MOVW_PREL_NC/R_ARM_MOVT_PREL style relocation tables,
// the same shape as aclements/go-obj's elfReloc maps.
type RelocationKind int

const (
	RelocAbsolute64 RelocationKind = iota
	RelocPCRelative32
	RelocBranch32
	RelocGotLoad
	RelocGotEntry
	// RelocSubtractor is always paired with the relocation that
	// immediately follows it at the same offset; TargetB carries the
	// second operand.
	RelocSubtractor
	// RelocPageHi21 and RelocPageLoOff12 are the aarch64 ADRP/ADD page
	// pair used for PC-relative addressing beyond +/-1MB.
	RelocPageHi21
	RelocPageLoOff12
)

func (k RelocationKind) String() string {
	switch k {
	case RelocAbsolute64:
		return "Absolute64"
	case RelocPCRelative32:
		return "PcRelative32"
	case RelocBranch32:
		return "Branch32"
	case RelocGotLoad:
		return "GotLoad"
	case RelocGotEntry:
		return "GotEntry"
	case RelocSubtractor:
		return "Subtractor"
	case RelocPageHi21:
		return "PageHi21"
	case RelocPageLoOff12:
		return "PageLoOff12"
	default:
		return "Unknown"
	}
}

// WidthBits returns the conventional operand width of the relocation
// kind. Kept for documentation and for formats that haven't recorded an
// explicit width; the differ itself advances its cursor by
// Relocation.Width, which each parser sets from the actual encoding it
// read (a paired Subtractor's width comes from the value being
// subtracted, not from the Kind alone).
func (k RelocationKind) WidthBits() int {
	switch k {
	case RelocAbsolute64:
		return 64
	case RelocPCRelative32, RelocBranch32, RelocGotLoad, RelocGotEntry, RelocPageHi21, RelocPageLoOff12:
		return 32
	case RelocSubtractor:
		return 0 // logical relocation; width comes from the paired entry
	default:
		return 32
	}
}

// Relocation is a normalized relocation record: an offset within its
// owning Section, a byte Width, an abstract Kind, a target symbol, and
// the implicit addend read from the section bytes at parse time so
// comparisons never need to re-read them.
type Relocation struct {
	Offset uint64
	Kind   RelocationKind
	Target string // symbol name for external targets
	Addend int64

	// Width is the number of bytes this relocation patches at Offset,
	// set explicitly by the format parser. A paired Subtractor carries
	// the width of the value it subtracts, since RelocationKind alone
	// can't express that.
	Width int

	// TargetB is the second operand of a paired RelocSubtractor
	// relocation: Subtractor is exposed as a single logical relocation
	// with two target symbols rather than two separate entries.
	TargetB string

	// LocalTarget is true when Target resolves by section+offset within
	// the same artifact rather than by external symbol name.
	LocalTarget bool
}

// Equal reports whether two relocations are indistinguishable for diff
// purposes: same Kind, same target symbol identity, same Addend. The
// literal bytes at the site, and the Offset within differing artifacts,
// are deliberately not part of this comparison.
func (r Relocation) Equal(other Relocation) bool {
	return r.Kind == other.Kind &&
		r.Target == other.Target &&
		r.TargetB == other.TargetB &&
		r.Addend == other.Addend
}

// WidthBytes returns the relocation's recorded Width, falling back to
// Kind.WidthBits for entries a parser left unset.
func (r Relocation) WidthBytes() int {
	if r.Width > 0 {
		return r.Width
	}
	return (r.Kind.WidthBits() + 7) / 8
}
