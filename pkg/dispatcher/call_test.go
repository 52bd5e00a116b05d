package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greet(_ context.Context, name string) string {
	return "hello " + name
}

func greetV2(_ context.Context, name string) string {
	return "hi " + name
}

func TestCall_InvokesOriginalOnFirstCall(t *testing.T) {
	table := New()
	got := Call(context.Background(), table, greet, "alice")
	assert.Equal(t, "hello alice", got)
}

func TestCall_UsesRetargetedFunctionAfterPatch(t *testing.T) {
	table := New()
	require.Equal(t, "hello alice", Call(context.Background(), table, greet, "alice"))

	table.Retarget(funcAddr(greet), func(ctx context.Context, name string) string { return greetV2(ctx, name) })

	assert.Equal(t, "hi alice", Call(context.Background(), table, greet, "alice"))
}

func TestCall_PendingFlagRaisesRestartSignal(t *testing.T) {
	table := New()
	table.BeginPatch()

	assert.PanicsWithValue(t, restartSignal{}, func() {
		Call(context.Background(), table, greet, "alice")
	})
}

func TestCall_PushesFrameOntoContext(t *testing.T) {
	table := New()
	var depthDuringCall int
	fn := func(ctx context.Context, _ string) string {
		depthDuringCall = Depth(ctx)
		return ""
	}
	Call(context.Background(), table, fn, "x")
	assert.Equal(t, 1, depthDuringCall)
}

func TestCall_NestedCallsIncreaseDepth(t *testing.T) {
	table := New()
	inner := func(ctx context.Context, _ string) int { return Depth(ctx) }
	var outerDepth, innerDepth int
	outer := func(ctx context.Context, _ string) string {
		outerDepth = Depth(ctx)
		innerDepth = Call(ctx, table, inner, "y")
		return ""
	}
	Call(context.Background(), table, outer, "x")
	assert.Equal(t, 1, outerDepth)
	assert.Equal(t, 2, innerDepth)
}
