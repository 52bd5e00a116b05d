//go:build windows

package patchbuilder

import (
	"context"
	"fmt"
)

// WindowsDriver links patch objects with link.exe, listing the exported
// set directly as /EXPORT flags rather than through a .def file, since
// link.exe accepts as many /EXPORT options as the command line holds.
type WindowsDriver struct {
	// Linker is the linker executable, "link.exe" if empty.
	Linker string
}

// DefaultDriver returns the linker driver for the platform this binary
// was built for.
func DefaultDriver() LinkerDriver {
	return &WindowsDriver{}
}

func (d *WindowsDriver) linker() string {
	if d.Linker != "" {
		return d.Linker
	}
	return "link.exe"
}

func (d *WindowsDriver) Link(ctx context.Context, opts LinkOptions) (*LinkResult, error) {
	args := []string{"/DLL", "/NOLOGO", "/OUT:" + opts.OutputPath}
	for _, name := range opts.Exports {
		args = append(args, fmt.Sprintf("/EXPORT:%s", name))
	}
	args = append(args, opts.Objects...)

	return runLinker(ctx, d.linker(), args, opts.Verbose)
}
