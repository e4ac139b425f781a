package system

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestWatermillLoggerLevels(t *testing.T) {
	log, recorded := NewObservedLogger(zapcore.DebugLevel)
	adapter := NewWatermillLogger(log)

	adapter.Info("published", watermill.LogFields{"topic": "sessions"})
	adapter.Trace("tick", nil)
	adapter.Error("publish failed", errors.New("boom"), watermill.LogFields{"topic": "sessions"})

	entries := recorded.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "sessions", entries[0].ContextMap()["topic"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}

func TestWatermillLoggerWith(t *testing.T) {
	log, recorded := NewObservedLogger(zapcore.DebugLevel)
	adapter := NewWatermillLogger(log).With(watermill.LogFields{"component": "publisher"})

	adapter.Debug("ready", watermill.LogFields{"stream": "foodctl"})

	entries := recorded.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "publisher", ctx["component"])
	assert.Equal(t, "foodctl", ctx["stream"])
}

func TestWatermillLoggerNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWatermillLogger(nil).Info("quiet", nil)
	})
}
