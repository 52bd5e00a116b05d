//go:build linux

package patchbuilder

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// LinuxDriver links patch objects with the system cc/ld, controlling
// the exported set with a linker version script ("{ global: a; b; c;
// local: *; };"), the same anonymous-version mechanism wasm-ld and
// lld-elf recognize alongside GNU ld.
type LinuxDriver struct {
	// CC is the compiler driver to invoke, "cc" if empty.
	CC string
}

// DefaultDriver returns the linker driver for the platform this binary
// was built for.
func DefaultDriver() LinkerDriver {
	return &LinuxDriver{}
}

func (d *LinuxDriver) cc() string {
	if d.CC != "" {
		return d.CC
	}
	return "cc"
}

func (d *LinuxDriver) Link(ctx context.Context, opts LinkOptions) (*LinkResult, error) {
	scriptPath, err := writeVersionScript(opts.Exports)
	if err != nil {
		return nil, fmt.Errorf("writing version script: %w", err)
	}
	defer os.Remove(scriptPath)

	args := []string{
		"-shared", "-fPIC",
		"-Wl,--version-script=" + scriptPath,
		"-o", opts.OutputPath,
	}
	args = append(args, opts.Objects...)

	return runLinker(ctx, d.cc(), args, opts.Verbose)
}

func writeVersionScript(exports []string) (string, error) {
	f, err := os.CreateTemp("", "subsecond-*.ver")
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	sb.WriteString("{\n  global:\n")
	for _, name := range exports {
		fmt.Fprintf(&sb, "    %s;\n", name)
	}
	sb.WriteString("  local: *;\n};\n")

	if _, err := f.WriteString(sb.String()); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
