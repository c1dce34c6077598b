package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporterCounts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(zap.New(core))

	r.Warn("skipping", zap.String("name", "a"))
	r.Warn("skipping", zap.String("name", "b"))
	assert.False(t, r.HasErrors())

	r.Error("missing dependency", zap.String("name", "c"))

	assert.Equal(t, 2, r.Warnings())
	assert.Equal(t, 1, r.Errors())
	assert.True(t, r.HasErrors())
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, "c", logs.FilterLevelExact(zapcore.ErrorLevel).All()[0].ContextMap()["name"])
}

func TestReporterNilLogger(t *testing.T) {
	r := New(nil)
	r.Warn("ignored")
	assert.Equal(t, 1, r.Warnings())
	assert.NotNil(t, r.Logger())
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "error"} {
		log, err := NewLogger(level, false)
		require.NoError(t, err, level)
		assert.NotNil(t, log)
	}

	log, err := NewLogger("warn", true)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}
