package applier

import (
	"context"

	"github.com/ebitengine/purego"
)

// Binder turns a raw runtime address resolved from a freshly loaded
// patch into the callable value the Dispatcher's indirection slot
// should hold. Go's generics are erased by the time a jump-table message
// arrives over the wire as bare addresses, so there is no way for the
// Applier to reconstruct a hot-reloadable function's Go signature on
// its own; only the application, which already wrote
// dispatcher.Call(ctx, table, greet, args) somewhere, knows that
// signature. The application registers one Binder per hot-reloadable
// function at startup (see Applier.RegisterBinder) so the Applier has
// something to call when that function's entry shows up in a jump
// table.
type Binder func(rawAddr uintptr) (any, error)

// BindNative returns a Binder for a hot-reloadable function with
// Dispatcher signature func(context.Context, A) R whose native
// implementation takes A and returns R over the platform C ABI: the
// context parameter is Dispatcher bookkeeping and never crosses the FFI
// boundary. It uses purego.RegisterFunc to build the calling-convention
// trampoline by reflecting on the instantiated func(A) R type, from the
// same cgo-free library loader_unix.go uses for dlopen/dlsym, applied
// here to turn a resolved address into something callable instead of
// just an address.
func BindNative[A any, R any]() Binder {
	return func(rawAddr uintptr) (any, error) {
		var native func(A) R
		purego.RegisterFunc(&native, rawAddr)
		return func(_ context.Context, args A) R {
			return native(args)
		}, nil
	}
}
