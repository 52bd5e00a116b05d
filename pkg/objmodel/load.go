package objmodel

import (
	"bytes"
	"os"
)

var (
	machoMagic32    = []byte{0xfe, 0xed, 0xfa, 0xce}
	machoMagic64    = []byte{0xfe, 0xed, 0xfa, 0xcf}
	machoMagic32BE  = []byte{0xce, 0xfa, 0xed, 0xfe}
	machoMagic64BE  = []byte{0xcf, 0xfa, 0xed, 0xfe}
	elfMagic        = []byte{0x7f, 'E', 'L', 'F'}
	peDOSMagic      = []byte{'M', 'Z'}
)

// Load sniffs the container format of path and dispatches to the
// matching per-format parser. Every caller that has two artifacts to
// compare (Differ) or one to verify (PatchBuilder) goes through here so
// format detection lives in exactly one place.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, InvalidObject("opening %s: %v", path, err)
	}
	var header [8]byte
	n, _ := f.Read(header[:])
	f.Close()
	if n < 4 {
		return nil, InvalidObject("%s is too short to be an object file", path)
	}

	switch {
	case bytes.Equal(header[:4], elfMagic):
		return ParseELF(path)
	case bytes.Equal(header[:4], machoMagic32), bytes.Equal(header[:4], machoMagic64),
		bytes.Equal(header[:4], machoMagic32BE), bytes.Equal(header[:4], machoMagic64BE):
		return ParseMachO(path)
	case bytes.Equal(header[:4], wasmMagic):
		return ParseWasm(path)
	case bytes.Equal(header[:2], peDOSMagic):
		return ParsePE(path)
	default:
		return nil, InvalidObject("%s: unrecognized object file format", path)
	}
}

// LoadPair loads the base and new artifacts of a diff episode, failing
// fast if they're not the same container format — cross-format diffs are
// meaningless.
func LoadPair(basePath, newPath string) (base, next *Artifact, err error) {
	base, err = Load(basePath)
	if err != nil {
		return nil, nil, err
	}
	next, err = Load(newPath)
	if err != nil {
		return nil, nil, err
	}
	if base.Format != next.Format {
		return nil, nil, InvalidObject("format mismatch: base is %v, new is %v", base.Format, next.Format)
	}
	return base, next, nil
}
