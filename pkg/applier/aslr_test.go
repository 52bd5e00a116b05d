package applier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsecond-dev/subsecond/pkg/transport"
)

func TestReconcileASLR_AppliesIndependentOffsetsPerSide(t *testing.T) {
	jt := transport.JumpTable{
		BaseAnchorAddr:  0x1000,
		PatchAnchorAddr: 0x5000,
		Entries: []transport.JumpTableEntry{
			{BaseCompileAddr: 0x1010, PatchCompileAddr: 0x5010},
		},
	}

	// base process is loaded 0x100 above its link address; patch is
	// loaded 0x200 above its own.
	got := ReconcileASLR(jt, 0x1100, 0x5200)

	require.Len(t, got, 1)
	assert.Equal(t, uint64(0x1110), got[0].RuntimeOld)
	assert.Equal(t, uint64(0x5210), got[0].RuntimeNew)
}

func TestVerifyAgainstTable_FailsWhenSlotMissing(t *testing.T) {
	entries := []Reconciled{{RuntimeOld: 0x1110, RuntimeNew: 0x5210}}
	lookup := func(addr uintptr) any { return nil }

	err := VerifyAgainstTable(entries, lookup)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "aslr reconciliation failed")
}

func TestVerifyAgainstTable_PassesWhenEverySlotPresent(t *testing.T) {
	entries := []Reconciled{{RuntimeOld: 0x1110, RuntimeNew: 0x5210}}
	lookup := func(addr uintptr) any {
		if addr == 0x1110 {
			return func() {}
		}
		return nil
	}

	assert.NoError(t, VerifyAgainstTable(entries, lookup))
}
