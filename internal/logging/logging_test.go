package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON_InfoLevelDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf, false)

	logger.Debug().Msg("hidden")
	logger.Info().Str("tool", "nmap").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "nmap", entry["tool"])
}

func TestNew_VerboseEmitsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debug().Msg("details")
	assert.Contains(t, buf.String(), "details")
}
