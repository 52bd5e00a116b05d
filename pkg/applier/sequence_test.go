package applier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceLedger_AcceptsStrictlyIncreasing(t *testing.T) {
	var l SequenceLedger
	assert.True(t, l.Accept(1))
	assert.True(t, l.Accept(2))
	assert.True(t, l.Accept(5))
}

func TestSequenceLedger_RejectsRepeat(t *testing.T) {
	var l SequenceLedger
	require := assert.New(t)
	require.True(l.Accept(3))
	require.False(l.Accept(3))
}

func TestSequenceLedger_RejectsOutOfOrder(t *testing.T) {
	var l SequenceLedger
	assert.True(t, l.Accept(5))
	assert.False(t, l.Accept(4))
}

func TestSequenceLedger_LastReflectsMostRecentAccepted(t *testing.T) {
	var l SequenceLedger
	_, ok := l.Last()
	assert.False(t, ok)

	l.Accept(7)
	seq, ok := l.Last()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), seq)
}
