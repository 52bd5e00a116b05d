package dispatcher

import (
	"context"
	"sync/atomic"
)

// frame is one activation of Call on the current goroutine's logical
// call stack. Go has no addressable notion of "the current OS thread"
// independent of the scheduler migrating goroutines between them, so the
// hot-frame chain is carried explicitly through context.Context instead
// of thread-local storage: a goroutine's chain of Call activations is
// exactly its context.Context derivation chain, which is the idiomatic
// Go substitute and, unlike real TLS, survives the runtime moving the
// goroutine to a different OS thread mid-call.
type frame struct {
	addr   uintptr
	parent *frame
	root   bool
}

type frameKey struct{}

func chainFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

// Depth reports how many Call activations are on ctx's hot-frame chain,
// for diagnostics and tests.
func Depth(ctx context.Context) int {
	n := 0
	for f := chainFrom(ctx); f != nil; f = f.parent {
		n++
	}
	return n
}

// addrs collects f's chain root to leaf, for snapshotting.
func (f *frame) addrs() []uintptr {
	var rev []uintptr
	for cur := f; cur != nil && !cur.root; cur = cur.parent {
		rev = append(rev, cur.addr)
	}
	out := make([]uintptr, len(rev))
	for i, a := range rev {
		out[len(rev)-1-i] = a
	}
	return out
}

// cursor tracks the deepest frame currently active under one Root
// invocation, so FrameSnapshot can report a live call chain without
// either thread-local storage or walking goroutine stacks. Root installs
// one per activation; Call updates it on entry and restores the caller's
// view on return.
type cursor struct {
	label string
	cur   atomic.Pointer[frame]
}

type cursorKey struct{}

func cursorFrom(ctx context.Context) *cursor {
	c, _ := ctx.Value(cursorKey{}).(*cursor)
	return c
}

func withCursor(ctx context.Context, c *cursor) context.Context {
	return context.WithValue(ctx, cursorKey{}, c)
}
