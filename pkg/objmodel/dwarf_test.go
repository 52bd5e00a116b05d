package objmodel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

func TestNameAnchorFromDWARF_RejectsNonELFInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-elf")
	require.NoError(t, os.WriteFile(path, []byte("not an object file"), 0o644))

	_, err := NameAnchorFromDWARF(path, "_start")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, subserr.ErrInvalidObject))
}

func TestLineForAddr_ReturnsNotOKForNonELFInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-elf")
	assert.NoError(t, os.WriteFile(path, []byte("not an object file"), 0o644))

	_, _, ok := LineForAddr(path, 0x1000)
	assert.False(t, ok)
}
