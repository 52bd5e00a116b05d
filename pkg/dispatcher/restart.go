package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// restartSignal is the sum-type sentinel §4.5 raises through an ordinary
// Go panic to unwind every active Call activation on a thread's
// hot-frame chain back to its outermost Root.
type restartSignal struct{}

// Root declares fn as an outermost hot frame: the boundary the engine
// restarts from when a pending patch needs threads out of in-flight
// work before it retargets their slots. The application wraps its main
// loop, a per-request handler, or an event handler in Root; fn is
// expected to call Call (directly or transitively) for the work it
// wants patchable. When a restart signal reaches Root, Root recovers it
// and re-invokes fn from scratch, which is what lets threads "re-enter
// their outermost call(f) site and execute with the new code" (§4.4.3
// step 5) without the caller writing any retry loop of its own.
func Root(ctx context.Context, t *Table, fn func(context.Context)) {
	t.activeRoots.Add(1)
	defer t.activeRoots.Add(-1)

	id := t.nextFrameID.Add(1)
	c := &cursor{label: fmt.Sprintf("root-%d", id)}
	t.frames.Store(id, c)
	defer t.frames.Delete(id)

	rootFrame := &frame{root: true}
	c.cur.Store(rootFrame)
	rootCtx := withCursor(withFrame(ctx, rootFrame), c)
	for runRootOnce(rootCtx, fn) {
		t.ackedRoots.Add(1)
	}
}

// runRootOnce invokes fn once, reporting whether a restart signal was
// caught (in which case the caller should re-invoke fn).
func runRootOnce(ctx context.Context, fn func(context.Context)) (restarted bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(restartSignal); ok {
				restarted = true
				return
			}
			panic(r)
		}
	}()
	fn(ctx)
	return false
}

// BeginPatch sets the pending-patch flag and snapshots the number of
// Root activations currently executing; AwaitUnwound waits for that
// many restart acknowledgements. Root activations that are idle (not
// currently inside fn) when BeginPatch runs need no acknowledgement: an
// idle thread's hot-frame chain is already empty.
func (t *Table) BeginPatch() {
	t.ackedRoots.Store(0)
	t.ackTarget.Store(t.activeRoots.Load())
	t.pending.Store(true)
}

// AwaitUnwound blocks until every root frame counted by the most recent
// BeginPatch has unwound and restarted, or until ctx is done, in which
// case it returns ErrUnwindTimeout.
func (t *Table) AwaitUnwound(ctx context.Context) error {
	target := t.ackTarget.Load()
	if target == 0 {
		return nil
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if t.ackedRoots.Load() >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return subserr.Wrap(subserr.ErrUnwindTimeout, "%d of %d root frame(s) unwound", t.ackedRoots.Load(), target)
		case <-ticker.C:
		}
	}
}

// EndPatch clears the pending-patch flag once every indirection slot
// named by the patch's jump table has been retargeted, letting restarted
// threads resume calling through the table without tripping the flag
// again.
func (t *Table) EndPatch() {
	t.pending.Store(false)
}
