//go:build windows

package applier

import (
	"golang.org/x/sys/windows"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

// windowsLoader loads a patch DLL via x/sys/windows' LoadLibrary/
// GetProcAddress bindings, the cgo-free equivalent of loader_unix.go's
// dlopen/dlsym pair for the PE patch path.
type windowsLoader struct{}

// DefaultLoader returns the windows loader.
func DefaultLoader() Loader { return windowsLoader{} }

func (windowsLoader) Load(path string) (Handle, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, subserr.Wrap(subserr.ErrPatchLoadFailed, "LoadLibrary %s: %v", path, err)
	}
	return windowsHandle{handle: h}, nil
}

type windowsHandle struct {
	handle windows.Handle
}

func (h windowsHandle) Lookup(name string) (uintptr, error) {
	addr, err := windows.GetProcAddress(h.handle, name)
	if err != nil {
		return 0, subserr.Wrap(subserr.ErrPatchLoadFailed, "resolving symbol %q: %v", name, err)
	}
	return addr, nil
}
