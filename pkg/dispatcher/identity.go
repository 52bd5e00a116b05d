package dispatcher

import "reflect"

// funcAddr returns the entry address of a Go function value, used to key
// the indirection table. Two function values referring to the same
// top-level func (even captured in different closures at the call site)
// report the same address, which is exactly the identity §4.5 keys on:
// the base program's runtime address of the symbol, not the particular
// func value a caller happens to hold.
func funcAddr(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// FuncAddr exposes funcAddr to other packages (notably applier, which
// needs to key a freshly resolved patch address against the same
// identity Call uses) without exposing the rest of Table's internals.
func FuncAddr(fn any) uintptr {
	return funcAddr(fn)
}
