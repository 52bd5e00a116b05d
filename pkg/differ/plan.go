// Package differ classifies every defined symbol shared between a base
// and a new artifact as unchanged, changed, new or removed, and produces
// the patch plan the PatchBuilder drives the linker from.
package differ

// Classification is the outcome of comparing one symbol across the base
// and new artifact.
type Classification int

const (
	Unchanged Classification = iota
	Changed
	New
	Removed
)

func (c Classification) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case New:
		return "new"
	default:
		return "removed"
	}
}

// SymbolVerdict is one entry of the diff result: a symbol name and its
// classification.
type SymbolVerdict struct {
	Name           string
	Classification Classification
}

// Plan is the Differ's output: what to rebuild and export.
type Plan struct {
	// ExportedSymbols lists every symbol name the PatchBuilder must
	// export from the patch artifact: every Changed or New function
	// symbol, plus their aliases.
	ExportedSymbols []string

	// DataSymbols lists the data symbols whose initializers ship in the
	// patch: every New data symbol (safe to include; §4.2), whether or not
	// a changed function references it, plus every Changed
	// zero-initialized data symbol.
	DataSymbols []string

	// Verdicts holds the full per-symbol classification, including
	// Unchanged and Removed, for diagnostics and testing.
	Verdicts []SymbolVerdict

	// Diagnostics lists non-fatal-to-the-caller findings the episode
	// should report (currently just hard-reload requirements that don't
	// abort the whole Diff call but do prevent a patch).
	Diagnostics []Diagnostic
}

// DiagnosticKind classifies an entry in Plan.Diagnostics.
type DiagnosticKind int

const (
	DiagHardReloadRequired DiagnosticKind = iota
)

// Diagnostic names a symbol whose change can't be hot-patched.
type Diagnostic struct {
	Kind   DiagnosticKind
	Symbol string
	Detail string
}

// Empty reports whether the plan contains no changes to apply, in which
// case the caller should produce no artifact and report "no changes".
func (p *Plan) Empty() bool {
	return len(p.ExportedSymbols) == 0 && len(p.DataSymbols) == 0
}
