// Package dispatcher provides the call(f, args) indirection primitive
// every hot-reloadable function is invoked through, the per-process
// indirection table it reads, and the restart-signal protocol that lets
// an Applier swap code underneath running threads without ever rewriting
// executable memory.
package dispatcher

import (
	"sync"
	"sync/atomic"

	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// slot is one indirection-table entry: the value currently called for a
// given original function address. Stored as atomic.Value so a
// mid-flight reader always sees either the old or the new function,
// never a torn one; Store's documented constraint (every Store for a
// given Value uses the same concrete type) holds here because a patch
// never changes a function's signature.
type slot struct {
	original any
	v        atomic.Value

	cbMu      sync.Mutex
	nextCbID  int
	callbacks map[int]func()
}

func newSlot(fn any) *slot {
	s := &slot{original: fn, callbacks: make(map[int]func())}
	s.v.Store(fn)
	return s
}

func (s *slot) load() any { return s.v.Load() }

func (s *slot) store(fn any) {
	s.v.Store(fn)
	s.cbMu.Lock()
	cbs := make([]func(), 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		cbs = append(cbs, cb)
	}
	s.cbMu.Unlock()
	// Fire after the swap above is visible to readers, per the guarantee
	// HotHandle documents: a callback never observes the pre-patch value.
	for _, cb := range cbs {
		cb()
	}
}

// onChanged registers cb and returns a function that unregisters it.
func (s *slot) onChanged(cb func()) func() {
	s.cbMu.Lock()
	id := s.nextCbID
	s.nextCbID++
	s.callbacks[id] = cb
	s.cbMu.Unlock()
	return func() {
		s.cbMu.Lock()
		delete(s.callbacks, id)
		s.cbMu.Unlock()
	}
}

func (s *slot) changed() bool {
	return funcAddr(s.load()) != funcAddr(s.original)
}

// Table is the per-process indirection table: one slot per distinct
// function address ever passed to Call, plus the pending-patch flag and
// unwind-acknowledgement bookkeeping described by the restart protocol.
// The zero value is not usable; construct with New.
type Table struct {
	mu    sync.RWMutex
	slots map[uintptr]*slot

	pending     atomic.Bool
	activeRoots atomic.Int64 // root frames currently executing
	ackedRoots  atomic.Int64 // root frames that have unwound since pending was set
	ackTarget   atomic.Int64 // activeRoots snapshot taken when pending was set

	nextFrameID atomic.Int64
	frames      sync.Map // int64 -> *cursor, one entry per live Root activation
}

// New returns an empty indirection table.
func New() *Table {
	return &Table{slots: make(map[uintptr]*slot)}
}

// ActiveRoots reports how many Root activations are currently executing.
func (t *Table) ActiveRoots() int64 {
	return t.activeRoots.Load()
}

// slotFor returns the slot for addr, creating one initialized to fn on
// first access. Per §4.4.3, new slots are created lazily by the
// Dispatcher on first call and pre-populated by the Applier ahead of a
// patch that introduces a brand new function; both paths go through
// this method.
func (t *Table) slotFor(addr uintptr, fn any) *slot {
	t.mu.RLock()
	s, ok := t.slots[addr]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[addr]; ok {
		return s
	}
	s = newSlot(fn)
	t.slots[addr] = s
	return s
}

// Retarget atomically stores newFn into the slot keyed by the original
// function's address, creating the slot if this is the first patch to
// ever touch it. This is the Applier's half of §4.4.3: callers are
// expected to have already driven the unwind protocol (BeginPatch /
// AwaitUnwound) before calling Retarget, and to call EndPatch once every
// entry in a jump table has been applied.
func (t *Table) Retarget(addr uintptr, newFn any) {
	t.slotFor(addr, newFn).store(newFn)
}

// Lookup returns the function currently targeted for addr, or nil if
// addr has never been passed to Call or Retarget.
func (t *Table) Lookup(addr uintptr) any {
	t.mu.RLock()
	s, ok := t.slots[addr]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.load()
}

// Addrs returns every function address Call or Retarget has ever touched,
// for introspection (the live session dashboard's indirection table pane).
func (t *Table) Addrs() []uintptr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return utils.Keys(t.slots)
}

// Changed reports whether addr's slot currently targets something other
// than the function it was first registered with.
func (t *Table) Changed(addr uintptr) bool {
	t.mu.RLock()
	s, ok := t.slots[addr]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	return s.changed()
}

// FrameSnapshot is one live Root activation's current call chain, root to
// leaf, as of the moment ActiveFrames was called.
type FrameSnapshot struct {
	Label string
	Addrs []uintptr
}

// ActiveFrames reports the current hot-frame chain of every Root
// activation presently executing. A Root that is idle between restarts
// (not inside fn) reports an empty Addrs slice.
func (t *Table) ActiveFrames() []FrameSnapshot {
	var out []FrameSnapshot
	t.frames.Range(func(_, v any) bool {
		c := v.(*cursor)
		out = append(out, FrameSnapshot{Label: c.label, Addrs: c.cur.Load().addrs()})
		return true
	})
	return out
}
