// Package patchbuilder drives the system linker to produce a patch
// artifact from the objects the differ marked Changed or New, then
// verifies the result actually exports what the plan asked for.
package patchbuilder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/subsecond-dev/subsecond/pkg/utils"
)

// LinkResult holds the output path, the literal command line, and
// captured output, kept around for logging and for surfacing a useful
// error when the link fails.
type LinkResult struct {
	OutputPath string
	Command    string
	Output     string
}

// LinkOptions configures a single Link invocation.
type LinkOptions struct {
	// Objects are the relocatable object files to link together.
	Objects []string

	// Exports lists the symbol names the produced artifact must export;
	// every other defined symbol should be dead-stripped or kept local.
	Exports []string

	// OutputPath is where the linked artifact is written.
	OutputPath string

	// Verbose streams the linker's own output to stderr as it runs.
	Verbose bool
}

// LinkerDriver runs the platform linker that turns a set of relocatable
// objects plus an explicit export list into a loadable patch artifact.
// Each OS gets its own implementation because the export-list mechanism
// differs: a Mach-O -exported_symbols_list file, an ELF version script,
// /EXPORT flags on the link.exe command line, or wasm-ld --export flags.
type LinkerDriver interface {
	Link(ctx context.Context, opts LinkOptions) (*LinkResult, error)
}

// runLinker is the shared os/exec plumbing every driver uses: build
// argv, optionally stream to stderr as it runs, otherwise capture
// combined output for the error message.
func runLinker(ctx context.Context, path string, args []string, verbose bool) (*LinkResult, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	result := &LinkResult{Command: fmt.Sprintf("%s %s", path, utils.FormatSlice(args, " "))}

	var output []byte
	var err error
	if verbose {
		var sb strings.Builder
		w := io.MultiWriter(os.Stderr, &sb)
		cmd.Stdout = w
		cmd.Stderr = w
		fmt.Fprintf(os.Stderr, "running: %s\n", result.Command)
		err = cmd.Run()
		output = []byte(sb.String())
	} else {
		output, err = cmd.CombinedOutput()
	}
	result.Output = string(output)

	if err != nil {
		return result, fmt.Errorf("link failed: %w\n%s", err, output)
	}
	return result, nil
}
