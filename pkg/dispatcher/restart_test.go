package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot_ReInvokesFnOnRestartSignal(t *testing.T) {
	table := New()
	attempts := 0

	Root(context.Background(), table, func(ctx context.Context) {
		attempts++
		if attempts == 1 {
			table.BeginPatch() // simulate a patch becoming pending mid-flight
			Call(ctx, table, greet, "alice")
		}
	})

	assert.Equal(t, 2, attempts)
}

func TestRoot_AcknowledgesUnwindOnRestart(t *testing.T) {
	table := New()
	first := true

	done := make(chan struct{})
	go func() {
		Root(context.Background(), table, func(ctx context.Context) {
			if first {
				first = false
				table.BeginPatch()
				Call(ctx, table, greet, "alice")
			}
		})
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, table.AwaitUnwound(ctx))
	<-done
}

func TestAwaitUnwound_NoActiveRootsReturnsImmediately(t *testing.T) {
	table := New()
	table.BeginPatch()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, table.AwaitUnwound(ctx))
}

func TestAwaitUnwound_TimesOutIfThreadNeverUnwinds(t *testing.T) {
	table := New()
	blocked := make(chan struct{})
	defer close(blocked)

	go Root(context.Background(), table, func(ctx context.Context) {
		<-blocked
	})

	for table.activeRoots.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	table.BeginPatch()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, table.AwaitUnwound(ctx))
}

func TestTable_ActiveFramesReportsCurrentChainDuringCall(t *testing.T) {
	table := New()
	var observed []FrameSnapshot
	seen := make(chan struct{})

	go Root(context.Background(), table, func(ctx context.Context) {
		Call(ctx, table, func(ctx context.Context, _ string) string {
			observed = table.ActiveFrames()
			close(seen)
			return ""
		}, "x")
	})

	<-seen
	require.Len(t, observed, 1)
	assert.Len(t, observed[0].Addrs, 1)
}

func TestTable_ActiveFramesEmptyOnceRootReturns(t *testing.T) {
	table := New()
	Root(context.Background(), table, func(ctx context.Context) {
		Call(ctx, table, greet, "alice")
	})
	assert.Empty(t, table.ActiveFrames())
}

func TestRoot_PanicsThroughForNonRestartSignal(t *testing.T) {
	table := New()
	assert.Panics(t, func() {
		Root(context.Background(), table, func(ctx context.Context) {
			panic("boom")
		})
	})
}
