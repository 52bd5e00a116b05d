//go:build wasm

package patchbuilder

import "context"

// WasmDriver links patch objects with wasm-ld, exporting the requested
// functions and leaving every symbol the patch doesn't define as
// undefined so it resolves against the already-running module at
// instantiation time.
type WasmDriver struct {
	// WasmLD is the linker executable, "wasm-ld" if empty.
	WasmLD string
}

// DefaultDriver returns the linker driver for the platform this binary
// was built for.
func DefaultDriver() LinkerDriver {
	return &WasmDriver{}
}

func (d *WasmDriver) wasmLD() string {
	if d.WasmLD != "" {
		return d.WasmLD
	}
	return "wasm-ld"
}

func (d *WasmDriver) Link(ctx context.Context, opts LinkOptions) (*LinkResult, error) {
	args := []string{"--no-entry", "--allow-undefined", "--import-memory", "-o", opts.OutputPath}
	for _, name := range opts.Exports {
		args = append(args, "--export="+name)
	}
	args = append(args, opts.Objects...)

	return runLinker(ctx, d.wasmLD(), args, opts.Verbose)
}
