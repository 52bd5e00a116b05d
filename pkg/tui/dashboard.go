package tui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// Dashboard is the DebuggerUI-equivalent presentation layer: a
// tview.Application rendering one Source's snapshots, refreshed on
// Source.Snapshot calls driven by Run's ticker instead of by debug
// events, since a patch session has no step/continue command stream to
// react to.
type Dashboard struct {
	app    *tview.Application
	status *tview.TextView
	slots  *tview.Table
	frames *tview.TextView
}

// NewDashboard builds the widget layout: a status line, an indirection
// table, and a hot-frame chain view stacked vertically, the same
// register/disassembly/stack stacking cucaracha's terminal debugger
// prints in sequence, here as persistent panes instead of scrollback.
func NewDashboard() *Dashboard {
	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBorder(true).SetTitle("session")

	slots := tview.NewTable().SetBorders(false).SetFixed(1, 0)
	slots.SetBorder(true).SetTitle("indirection table")

	frames := tview.NewTextView().SetDynamicColors(true)
	frames.SetBorder(true).SetTitle("hot frames")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(status, 3, 0, false).
		AddItem(slots, 0, 2, false).
		AddItem(frames, 0, 1, false)

	app := tview.NewApplication().SetRoot(layout, true)

	return &Dashboard{app: app, status: status, slots: slots, frames: frames}
}

// Render paints one snapshot onto the widgets. Safe to call from any
// goroutine; it marshals the update through QueueUpdateDraw the way
// tview requires for anything touching widgets outside the UI
// goroutine.
func (d *Dashboard) Render(s SessionSnapshot) {
	d.app.QueueUpdateDraw(func() {
		d.paint(s)
	})
}

// paint does the actual widget mutation. Split out from Render so tests
// can exercise it directly without requiring the application's event
// loop (started by Run) to be running.
func (d *Dashboard) paint(s SessionSnapshot) {
	pending := "[green]idle[-]"
	if s.Pending {
		pending = "[yellow]pending unwind[-]"
	}
	d.status.Clear()
	fmt.Fprintf(d.status, "sequence=%d  %s  active_roots=%d", s.Sequence, pending, s.ActiveRoots)

	d.slots.Clear()
	d.slots.SetCell(0, 0, tview.NewTableCell("addr").SetSelectable(false))
	d.slots.SetCell(0, 1, tview.NewTableCell("name").SetSelectable(false))
	d.slots.SetCell(0, 2, tview.NewTableCell("state").SetSelectable(false))
	for i, slot := range s.Slots {
		row := i + 1
		state := "original"
		color := tcell.ColorWhite
		if slot.Patched {
			state = "patched"
			color = tcell.ColorGreen
		}
		d.slots.SetCell(row, 0, tview.NewTableCell(utils.FormatUintHex(uint64(slot.Addr), 16)))
		d.slots.SetCell(row, 1, tview.NewTableCell(slot.Name))
		d.slots.SetCell(row, 2, tview.NewTableCell(state).SetTextColor(color))
	}

	d.frames.Clear()
	for _, f := range s.Frames {
		fmt.Fprintf(d.frames, "%s: depth=%d\n", f.GoroutineLabel, len(f.Addrs))
	}
}

// Run starts the dashboard's refresh loop against src, polling every
// interval, and blocks until the user quits (Ctrl+C/q) or stop fires.
func (d *Dashboard) Run(src Source, interval time.Duration, stop <-chan struct{}) error {
	d.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyRune && ev.Rune() == 'q' {
			d.app.Stop()
			return nil
		}
		return ev
	})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				d.app.Stop()
				return
			case <-ticker.C:
				d.Render(src.Snapshot())
			}
		}
	}()
	return d.app.Run()
}
