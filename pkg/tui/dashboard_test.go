package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot SessionSnapshot
}

func (f fakeSource) Snapshot() SessionSnapshot { return f.snapshot }

func TestNewDashboard_BuildsAllPanes(t *testing.T) {
	d := NewDashboard()
	require.NotNil(t, d.app)
	require.NotNil(t, d.status)
	require.NotNil(t, d.slots)
	require.NotNil(t, d.frames)
}

func TestDashboard_PaintDoesNotPanicOnEmptySnapshot(t *testing.T) {
	d := NewDashboard()
	assert.NotPanics(t, func() {
		d.paint(SessionSnapshot{})
	})
}

func TestDashboard_PaintDoesNotPanicOnPopulatedSnapshot(t *testing.T) {
	d := NewDashboard()
	snap := SessionSnapshot{
		Sequence:    4,
		Pending:     true,
		ActiveRoots: 2,
		Slots: []SlotSnapshot{
			{Addr: 0x1000, Name: "greet", Patched: true},
			{Addr: 0x2000, Name: "render", Patched: false},
		},
		Frames: []FrameSnapshot{
			{GoroutineLabel: "request-1", Addrs: []uintptr{0x1000, 0x2000}},
		},
	}
	assert.NotPanics(t, func() {
		d.paint(snap)
	})
	assert.Equal(t, 2, d.slots.GetRowCount()-1)
}

func TestFakeSource_SatisfiesSourceInterface(t *testing.T) {
	var _ Source = fakeSource{}
}
