//go:build linux || darwin

package applier

import (
	"github.com/ebitengine/purego"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// unixLoader loads a patch dylib/so via purego's cgo-free dlopen/dlsym
// bindings, avoiding the build-time cgo dependency a raw
// "import "C"" dlopen wrapper would force onto every consumer of this
// module.
type unixLoader struct{}

// DefaultLoader returns the purego-based loader used on Linux and
// Darwin.
func DefaultLoader() Loader { return unixLoader{} }

func (unixLoader) Load(path string) (Handle, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, subserr.Wrap(subserr.ErrPatchLoadFailed, "dlopen %s: %v", path, err)
	}
	return unixHandle{handle: handle}, nil
}

type unixHandle struct {
	handle uintptr
}

func (h unixHandle) Lookup(name string) (uintptr, error) {
	addr, err := purego.Dlsym(h.handle, name)
	if err != nil {
		return 0, subserr.Wrap(subserr.ErrPatchLoadFailed, "resolving symbol %q: %v", name, err)
	}
	return addr, nil
}
