package applier

import (
	"github.com/subsecond-dev/subsecond/pkg/dispatcher"
	"github.com/subsecond-dev/subsecond/pkg/tui"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// Snapshot builds a tui.SessionSnapshot directly from the Applier's own
// Table, for an embedding application that wants a local dashboard
// without a devtools round trip (cmd/watch.go is the remote equivalent,
// fed over pkg/transport instead).
func (a *Applier) Snapshot() tui.SessionSnapshot {
	addrs := a.Table.Addrs()
	slots := utils.Map(addrs, func(addr uintptr) tui.SlotSnapshot {
		return tui.SlotSnapshot{
			Addr:    addr,
			Name:    utils.FormatUintHex(uint64(addr), 16),
			Patched: a.Table.Changed(addr),
		}
	})

	frames := utils.Map(a.Table.ActiveFrames(), func(f dispatcher.FrameSnapshot) tui.FrameSnapshot {
		return tui.FrameSnapshot{GoroutineLabel: f.Label, Addrs: f.Addrs}
	})

	seq, _ := a.ledger.Last()
	return tui.SessionSnapshot{
		Sequence:    seq,
		ActiveRoots: a.Table.ActiveRoots(),
		Slots:       slots,
		Frames:      frames,
	}
}
