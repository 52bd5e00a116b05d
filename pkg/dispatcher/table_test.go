package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_LookupReturnsNilForUnknownAddress(t *testing.T) {
	table := New()
	assert.Nil(t, table.Lookup(0xdeadbeef))
}

func TestTable_RetargetPrePopulatesNewSlot(t *testing.T) {
	table := New()
	addr := uintptr(0x1234)
	fn := func() {}

	table.Retarget(addr, fn)

	got := table.Lookup(addr)
	assert.NotNil(t, got)
}

func TestTable_LookupBeforeCallReturnsNil(t *testing.T) {
	table := New()
	got := table.Lookup(funcAddr(greet))
	assert.Nil(t, got, "slot shouldn't exist before the first Call or Retarget touches it")
}

func TestTable_AddrsListsEveryRetargetedSlot(t *testing.T) {
	table := New()
	addr := uintptr(0x5678)
	table.Retarget(addr, func() {})
	assert.Contains(t, table.Addrs(), addr)
}

func TestTable_ChangedReportsFalseForUntouchedSlot(t *testing.T) {
	table := New()
	assert.False(t, table.Changed(uintptr(0x1)))
}

func TestTable_ChangedReportsTrueAfterRetarget(t *testing.T) {
	table := New()
	addr := funcAddr(greet)
	table.slotFor(addr, greet)
	table.Retarget(addr, greetV2)
	assert.True(t, table.Changed(addr))
}
