package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("warn", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = New("loud", "json")
	assert.Error(t, err)
}

func TestEncoder_JSONUsesISO8601Timestamps(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(newEncoder("json"), zapcore.AddSync(&buf), zapcore.DebugLevel)
	zap.New(core).Named("gate").Info("sufficiency gate evaluated", zap.String("session_id", "abc"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sufficiency gate evaluated", entry["msg"])
	assert.Equal(t, "gate", entry["logger"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T`, entry["ts"])
}
