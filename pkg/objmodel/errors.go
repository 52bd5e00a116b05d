package objmodel

import "github.com/subsecond-dev/subsecond/pkg/subserr"

// InvalidObject reports a malformed input file, fatal for the episode
// that encountered it.
func InvalidObject(reason string, args ...any) error {
	return subserr.Wrap(subserr.ErrInvalidObject, reason, args...)
}

// UnsupportedRelocation reports a relocation type code with no mapping
// into the abstract kind set. Fatal for that patch attempt; the caller
// must request a full rebuild rather than guess.
func UnsupportedRelocation(kind string, offset uint64) error {
	return subserr.Wrap(subserr.ErrUnsupportedRelocation, "kind %s at offset 0x%x", kind, offset)
}
