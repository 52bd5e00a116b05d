package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/subsecond-dev/subsecond/pkg/differ"
	"github.com/subsecond-dev/subsecond/pkg/objmodel"
	"github.com/subsecond-dev/subsecond/pkg/patchbuilder"
	"github.com/subsecond-dev/subsecond/pkg/transport"
)

var (
	buildBasePath string
	buildNewPath  string
	buildOutPath  string
	buildAnchor   string
	buildDryRun   bool
	buildDumpPlan string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Diff two builds and link a patch artifact for the changed functions",
	Long: `build loads two object files compiled from the same program at
different points in time, classifies every shared symbol as unchanged,
changed, new or removed, and links the changed/new functions into a
single small artifact the apply/serve commands can ship to a running
process.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("anchor") {
			buildAnchor = activeConfig.AnchorSymbol
		}
		if !cmd.Flags().Changed("out") {
			buildOutPath = filepath.Join(activeConfig.PatchOutputDir, filepath.Base(buildOutPath))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		base, next, err := objmodel.LoadPair(buildBasePath, buildNewPath)
		if err != nil {
			return fmt.Errorf("loading artifacts: %w", err)
		}

		plan, err := differ.Diff(base, next)
		if err != nil {
			return fmt.Errorf("diffing artifacts: %w", err)
		}

		for _, d := range plan.Diagnostics {
			color.New(color.FgYellow).Fprintf(os.Stderr, "warning: %s: %s\n", d.Symbol, d.Detail)
		}

		if plan.Empty() {
			fmt.Println("no patchable changes found")
			return nil
		}

		var jt *patchbuilder.JumpTable
		if buildAnchor != "" {
			jt, err = patchbuilder.BuildJumpTable(base, next, plan, buildAnchor)
			if err != nil {
				return fmt.Errorf("building jump table: %w", err)
			}
		}

		if buildDumpPlan != "" {
			out, err := transport.DumpPlan(plan, jt)
			if err != nil {
				return fmt.Errorf("dumping plan: %w", err)
			}
			if err := os.WriteFile(buildDumpPlan, out, 0o644); err != nil {
				return fmt.Errorf("writing plan dump: %w", err)
			}
		}

		if buildDryRun {
			fmt.Printf("dry run: would export %d symbol(s), %d jump table entr(y/ies)\n",
				len(plan.ExportedSymbols), jumpTableLen(jt))
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(buildOutPath), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		builder := patchbuilder.New()
		artifact, err := builder.Build(cmd.Context(), plan, []string{buildNewPath}, buildOutPath, false)
		if err != nil {
			return fmt.Errorf("linking patch: %w", err)
		}

		color.New(color.FgGreen).Printf("patch linked: %s (%d exports)\n", artifact.Path, len(artifact.Exports))
		return nil
	},
}

func jumpTableLen(jt *patchbuilder.JumpTable) int {
	if jt == nil {
		return 0
	}
	return len(jt.Entries)
}

func init() {
	buildCmd.Flags().StringVar(&buildBasePath, "base", "", "path to the currently running build's object file")
	buildCmd.Flags().StringVar(&buildNewPath, "new", "", "path to the newly compiled object file")
	buildCmd.Flags().StringVar(&buildOutPath, "out", "patch.so", "output path for the linked patch artifact")
	buildCmd.Flags().StringVar(&buildAnchor, "anchor", "", "anchor symbol name stable across base and patch, used for ASLR reconciliation")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "compute the plan and jump table without linking")
	buildCmd.Flags().StringVar(&buildDumpPlan, "dump-plan", "", "write a YAML dump of the plan and jump table to this path")
	buildCmd.MarkFlagRequired("base")
	buildCmd.MarkFlagRequired("new")
}
