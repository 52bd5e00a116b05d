package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FansOutToBothConsoleAndJSON(t *testing.T) {
	var console, jsonBuf bytes.Buffer
	logger := New(&console, &jsonBuf)

	logger.Info("patch applied", slog.Int("sequence", 3))

	assert.Contains(t, console.String(), "patch applied")
	assert.Contains(t, console.String(), "sequence=3")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &rec))
	assert.Equal(t, "patch applied", rec["msg"])
	assert.EqualValues(t, 3, rec["sequence"])
}

func TestConsoleHandler_IncludesAttrsFromWith(t *testing.T) {
	var console, jsonBuf bytes.Buffer
	logger := New(&console, &jsonBuf).With(slog.String("component", "applier"))

	logger.Warn("unwind slow")

	assert.Contains(t, console.String(), "component=applier")
	assert.True(t, strings.Contains(console.String(), "WARN") || strings.Contains(console.String(), "unwind slow"))
}
