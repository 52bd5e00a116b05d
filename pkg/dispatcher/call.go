package dispatcher

import "context"

// Call is the primitive every hot-reloadable function must be invoked
// through. It looks up f's current target in t (inserting a slot
// initialized to f on first call), pushes a frame onto ctx's hot-frame
// chain, and either unwinds immediately via a restart signal if a patch
// is pending, or invokes the current target and returns its result.
//
// A restart signal is an ordinary Go panic carrying a restartSignal
// value. Call deliberately has no recover: a panic that isn't caught
// here propagates through the calling Go stack frame by frame exactly
// the way §4.5 describes unwinding every active call(f) activation up
// to the nearest enclosing one. A frame is an immutable context.Context
// value, not a held resource; the only bookkeeping undone on the way out
// is the Root cursor, which a deferred Store restores to the caller's
// frame. Root is the one place that recovers it.
func Call[A any, R any](ctx context.Context, t *Table, f func(context.Context, A) R, args A) R {
	addr := funcAddr(f)
	s := t.slotFor(addr, f)

	fr := &frame{addr: addr, parent: chainFrom(ctx)}
	next := withFrame(ctx, fr)

	if c := cursorFrom(ctx); c != nil {
		prev := c.cur.Swap(fr)
		defer c.cur.Store(prev)
	}

	if t.pending.Load() {
		panic(restartSignal{})
	}

	target, ok := s.load().(func(context.Context, A) R)
	if !ok {
		// A slot retargeted to an incompatible signature means the
		// Builder let a signature-changing patch through; fall back to
		// the call site's own function rather than panic with a type
		// assertion failure that looks like a restart signal.
		target = f
	}
	return target(next, args)
}
