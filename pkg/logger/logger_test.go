package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsBadInput(t *testing.T) {
	assert.Error(t, Init("loud", "json"))
	assert.Error(t, Init("info", "xml"))
}

func TestInitAcceptsKnownFormats(t *testing.T) {
	require.NoError(t, Init("debug", "console"))
	require.NoError(t, Init("warn", "json"))
	assert.False(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, L().Core().Enabled(zapcore.WarnLevel))
}

func TestFacadeWritesThroughReplacedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(zap.NewNop()) })

	Infof("indexed %d documents", 3)
	Warnw("run skipped", "reason", "locked")
	Errorf("stage %s failed", "load")
	Warnf("stop timed out after %s", "30s")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "indexed 3 documents", entries[0].Message)
	assert.Equal(t, "locked", entries[1].ContextMap()["reason"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "stage load failed", entries[2].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, "stop timed out after 30s", entries[3].Message)
}
