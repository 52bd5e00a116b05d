package applier

// Handle is a loaded patch artifact. Per §4.4.2's intentional-leak
// contract it is retained for the remaining lifetime of the process:
// any function pointer captured before a later patch must still resolve
// to valid memory, so nothing ever calls the platform's unload
// primitive.
type Handle interface {
	// Lookup resolves a symbol's runtime address inside this loaded
	// artifact, used to obtain patch_runtime_base for ASLR
	// reconciliation and the runtime address of each newly exported
	// symbol.
	Lookup(name string) (uintptr, error)
}

// Loader loads a patch artifact from a file on disk into the process's
// address space through the platform's runtime linker interface.
// DefaultLoader returns the build's platform-appropriate implementation
// (loader_unix.go's purego-based dlopen/dlsym, or loader_windows.go's
// LoadLibrary/GetProcAddress).
type Loader interface {
	Load(path string) (Handle, error)
}
