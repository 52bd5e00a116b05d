package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/subsecond-dev/subsecond/pkg/transport"
)

var (
	applyTarget      string
	applyArtifact    string
	applySequence    uint32
	applyBaseAnchor  uint64
	applyPatchAnchor uint64
	applyEntries     []string
	applyTargetPID   uint32
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Send a built patch artifact to a running process's devtools listener",
	Long: `apply dials the devtools address a target process is listening on
(started with "subsecond serve" or the pkg/applier library directly),
sends the artifact bytes and jump table produced by "subsecond build",
and reports the Diagnostic the target sends back.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("target") && activeConfig.DevtoolsListenAddr != "" {
			applyTarget = activeConfig.DevtoolsListenAddr
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := os.ReadFile(applyArtifact)
		if err != nil {
			return fmt.Errorf("reading artifact: %w", err)
		}

		entries, err := parseEntries(applyEntries)
		if err != nil {
			return err
		}

		codec, err := transport.Dial("tcp", applyTarget)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", applyTarget, err)
		}
		defer codec.Close()

		msg := &transport.Message{
			Sequence:      applySequence,
			ArtifactBytes: artifact,
			JumpTable: transport.JumpTable{
				Entries:         entries,
				BaseAnchorAddr:  applyBaseAnchor,
				PatchAnchorAddr: applyPatchAnchor,
			},
		}
		if applyTargetPID != 0 {
			msg.HasTargetPID = true
			msg.TargetPID = applyTargetPID
		}

		if err := codec.WriteMessage(msg); err != nil {
			return fmt.Errorf("sending patch: %w", err)
		}

		frame, err := codec.ReadFrame()
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if frame.Diagnostic != nil {
			fmt.Printf("%s: %s\n", frame.Diagnostic.Kind, frame.Diagnostic.Message)
			if frame.Diagnostic.Kind != "" {
				return fmt.Errorf("patch rejected: %s", frame.Diagnostic.Message)
			}
		}
		fmt.Println("patch applied")
		return nil
	},
}

// parseEntries parses "base:patch" compile-address pairs in hex or
// decimal, the CLI's stand-in for a build-plan-to-wire-message decoder:
// pkg/transport/dump.go renders a plan for human inspection but has no
// machine-readable round trip, so apply takes the jump table directly on
// the command line until a scripted build->apply pipeline needs one.
func parseEntries(raw []string) ([]transport.JumpTableEntry, error) {
	entries := make([]transport.JumpTableEntry, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --entry %q, want base:patch", r)
		}
		base, err := strconv.ParseUint(parts[0], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid base address in %q: %w", r, err)
		}
		patch, err := strconv.ParseUint(parts[1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid patch address in %q: %w", r, err)
		}
		entries = append(entries, transport.JumpTableEntry{BaseCompileAddr: base, PatchCompileAddr: patch})
	}
	return entries, nil
}

func init() {
	applyCmd.Flags().StringVar(&applyTarget, "target", "127.0.0.1:7343", "devtools address of the running target process")
	applyCmd.Flags().StringVar(&applyArtifact, "artifact", "", "path to the linked patch artifact")
	applyCmd.Flags().Uint32Var(&applySequence, "sequence", 1, "monotonic patch sequence number")
	applyCmd.Flags().Uint64Var(&applyBaseAnchor, "base-anchor", 0, "anchor symbol's compile-time address in the base build")
	applyCmd.Flags().Uint64Var(&applyPatchAnchor, "patch-anchor", 0, "anchor symbol's compile-time address in the patch build")
	applyCmd.Flags().StringArrayVar(&applyEntries, "entry", nil, "base:patch compile-address pair, repeatable")
	applyCmd.Flags().Uint32Var(&applyTargetPID, "target-pid", 0, "restrict this patch to one target process id (0 = no filter)")
	applyCmd.MarkFlagRequired("artifact")
}
