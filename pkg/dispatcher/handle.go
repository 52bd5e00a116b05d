package dispatcher

import "context"

// HotHandle is returned by Current: a reference to a hot-reloadable
// function that lets a caller observe retargeting events in addition to
// invoking it, the §6 current(f) -> HotHandle<f> primitive.
type HotHandle[A any, R any] struct {
	table *Table
	slot  *slot
	fn    func(context.Context, A) R
}

// Current returns a handle for f. Obtaining a handle is semantically
// equivalent to calling Call(ctx, t, f, args) directly; the handle just
// also exposes Changed and OnChanged.
func Current[A any, R any](t *Table, f func(context.Context, A) R) *HotHandle[A, R] {
	s := t.slotFor(funcAddr(f), f)
	return &HotHandle[A, R]{table: t, slot: s, fn: f}
}

// Changed reports whether this handle's function has been retargeted
// away from its original definition by a patch.
func (h *HotHandle[A, R]) Changed() bool {
	return h.slot.changed()
}

// OnChanged registers a callback fired every time the handle's slot is
// retargeted. Callbacks run synchronously, on whatever goroutine calls
// Table.Retarget, immediately after the new target becomes visible to
// readers. The returned function unsubscribes cb.
func (h *HotHandle[A, R]) OnChanged(cb func()) (unsubscribe func()) {
	return h.slot.onChanged(cb)
}

// Call invokes the handle's current target, observing the pending-patch
// flag and hot-frame chain exactly as a direct Call would.
func (h *HotHandle[A, R]) Call(ctx context.Context, args A) R {
	return Call(ctx, h.table, h.fn, args)
}
