package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTripsHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = NewCodec(client).WriteHandshake(&Handshake{RuntimeAnchorAddr: 0x7f0000, PID: 4242})
	}()

	frame, err := NewCodec(server).ReadFrame()
	require.NoError(t, err)
	require.NotNil(t, frame.Handshake)
	assert.Equal(t, uint64(0x7f0000), frame.Handshake.RuntimeAnchorAddr)
	assert.Equal(t, uint32(4242), frame.Handshake.PID)
}

func TestCodec_RoundTripsMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	msg := &Message{
		Sequence:      7,
		HasTargetPID:  true,
		TargetPID:     99,
		ArtifactBytes: []byte{0x7f, 'E', 'L', 'F', 1, 2, 3},
		JumpTable: JumpTable{
			BaseAnchorAddr:  0x1000,
			PatchAnchorAddr: 0x2000,
			IfuncCount:      0,
			Entries: []JumpTableEntry{
				{BaseCompileAddr: 0x1050, PatchCompileAddr: 0x2010},
			},
		},
	}

	go func() {
		_ = NewCodec(client).WriteMessage(msg)
	}()

	frame, err := NewCodec(server).ReadFrame()
	require.NoError(t, err)
	require.NotNil(t, frame.Message)
	assert.Equal(t, msg.Sequence, frame.Message.Sequence)
	assert.Equal(t, msg.TargetPID, frame.Message.TargetPID)
	assert.Equal(t, msg.ArtifactBytes, frame.Message.ArtifactBytes)
	assert.Equal(t, msg.JumpTable, frame.Message.JumpTable)
}

func TestCodec_RoundTripsDiagnostic(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	diag := &Diagnostic{Kind: "FullReloadRequired", Sequence: 3, Message: "changed data in greet_table"}

	go func() {
		_ = NewCodec(client).WriteDiagnostic(diag)
	}()

	frame, err := NewCodec(server).ReadFrame()
	require.NoError(t, err)
	require.NotNil(t, frame.Diagnostic)
	assert.Equal(t, *diag, *frame.Diagnostic)
}

func TestCodec_RejectsOversizedLengthPrefix(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte{0x7f, 0xff, 0xff, 0xff})
	}()

	_, err := NewCodec(server).ReadFrame()
	assert.Error(t, err)
}
