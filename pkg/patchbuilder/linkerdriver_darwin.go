//go:build darwin

package patchbuilder

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DarwinDriver links patch objects with cc into a dylib, constraining
// the exported set with an -exported_symbols_list file, shelling out to
// cc/clang the same way any os/exec-based toolchain driver would.
type DarwinDriver struct {
	CC string
}

// DefaultDriver returns the linker driver for the platform this binary
// was built for.
func DefaultDriver() LinkerDriver {
	return &DarwinDriver{}
}

func (d *DarwinDriver) cc() string {
	if d.CC != "" {
		return d.CC
	}
	return "cc"
}

func (d *DarwinDriver) Link(ctx context.Context, opts LinkOptions) (*LinkResult, error) {
	listPath, err := writeExportsList(opts.Exports)
	if err != nil {
		return nil, fmt.Errorf("writing exported symbols list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-dynamiclib",
		"-undefined", "dynamic_lookup",
		"-exported_symbols_list", listPath,
		"-o", opts.OutputPath,
	}
	args = append(args, opts.Objects...)

	return runLinker(ctx, d.cc(), args, opts.Verbose)
}

func writeExportsList(exports []string) (string, error) {
	f, err := os.CreateTemp("", "subsecond-*.exp")
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, name := range exports {
		fmt.Fprintf(&sb, "_%s\n", name)
	}

	if _, err := f.WriteString(sb.String()); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
