package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotHandle_NotChangedByDefault(t *testing.T) {
	table := New()
	h := Current[string, string](table, greet)
	assert.False(t, h.Changed())
	assert.Equal(t, "hello alice", h.Call(context.Background(), "alice"))
}

func TestHotHandle_ChangedAfterRetarget(t *testing.T) {
	table := New()
	h := Current[string, string](table, greet)

	table.Retarget(funcAddr(greet), func(ctx context.Context, name string) string { return greetV2(ctx, name) })

	assert.True(t, h.Changed())
	assert.Equal(t, "hi alice", h.Call(context.Background(), "alice"))
}

func TestHotHandle_OnChangedFiresOnRetarget(t *testing.T) {
	table := New()
	h := Current[string, string](table, greet)

	fired := 0
	h.OnChanged(func() { fired++ })

	table.Retarget(funcAddr(greet), func(ctx context.Context, name string) string { return greetV2(ctx, name) })
	require.Equal(t, 1, fired)

	table.Retarget(funcAddr(greet), greet)
	assert.Equal(t, 2, fired)
}

func TestHotHandle_UnsubscribeStopsFutureCallbacks(t *testing.T) {
	table := New()
	h := Current[string, string](table, greet)

	fired := 0
	unsubscribe := h.OnChanged(func() { fired++ })
	table.Retarget(funcAddr(greet), greetV2)
	require.Equal(t, 1, fired)

	unsubscribe()
	table.Retarget(funcAddr(greet), greet)
	assert.Equal(t, 1, fired)
}
