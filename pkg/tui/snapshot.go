// Package tui renders a live patch session dashboard: the indirection
// table's current targets, the pending-patch flag, and each hot-frame
// chain currently executing. It follows the same three-way split
// cucaracha's debugger package uses (a backend that knows the domain
// state, a UI interface the backend is rendered through, and a
// controller gluing the two together on a timer/event loop), built on
// tview/tcell instead of a plain terminal REPL.
package tui

// SlotSnapshot is one indirection-table entry as rendered by the
// dashboard: the original function's identity plus whether it currently
// targets a patched implementation.
type SlotSnapshot struct {
	Addr      uintptr
	Name      string
	Patched   bool
	UpdatedAt string // timestamp pre-formatted by the caller; the dashboard does not display it
}

// FrameSnapshot is one hot-frame chain, outermost call first.
type FrameSnapshot struct {
	GoroutineLabel string
	Addrs          []uintptr // root to leaf
}

// SessionSnapshot is the full state rendered by one dashboard refresh.
type SessionSnapshot struct {
	Sequence    uint32
	Pending     bool
	ActiveRoots int64
	Slots       []SlotSnapshot
	Frames      []FrameSnapshot
}

// Source is anything that can produce the current session state. The
// devtools client implements this over a transport.Codec connection;
// tests implement it with a canned snapshot.
type Source interface {
	Snapshot() SessionSnapshot
}
