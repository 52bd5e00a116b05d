package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/subsecond-dev/subsecond/pkg/transport"
	"github.com/subsecond-dev/subsecond/pkg/tui"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Attach to a target's devtools listener and render a live patch-session dashboard",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("addr") && activeConfig.DevtoolsListenAddr != "" {
			watchAddr = activeConfig.DevtoolsListenAddr
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := transport.Dial("tcp", watchAddr)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", watchAddr, err)
		}
		defer codec.Close()

		src := &watchSource{}
		dashboard := tui.NewDashboard()

		stop := make(chan struct{})
		go func() {
			defer close(stop)
			for {
				frame, err := codec.ReadFrame()
				if err != nil {
					return
				}
				src.apply(frame)
			}
		}()

		return dashboard.Run(src, 200*time.Millisecond, stop)
	},
}

// watchSource accumulates the frames seen on a devtools connection into
// a tui.SessionSnapshot, the client-side half of the protocol serve.go
// speaks from the target's end.
type watchSource struct {
	mu   sync.Mutex
	snap tui.SessionSnapshot
}

func (s *watchSource) apply(frame *transport.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case frame.Message != nil:
		s.snap.Sequence = frame.Message.Sequence
		s.snap.Pending = true
		entries := frame.Message.JumpTable.Entries
		s.snap.Slots = utils.Iota(len(entries), func(i int) tui.SlotSnapshot {
			e := entries[i]
			return tui.SlotSnapshot{
				Addr: uintptr(e.BaseCompileAddr),
				Name: utils.FormatUintHex(e.BaseCompileAddr, 16),
			}
		})
	case frame.Diagnostic != nil:
		s.snap.Pending = false
		if frame.Diagnostic.Kind == "" {
			for i := range s.snap.Slots {
				s.snap.Slots[i].Patched = true
			}
		}
	}
}

func (s *watchSource) Snapshot() tui.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "127.0.0.1:7343", "devtools address to attach to")
}
