package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	l.With("request_id", "abc").Info("tile loaded", "source", "srtm")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "tile loaded", entries[0].Message)
		assert.Equal(t, map[string]any{"request_id": "abc", "source": "srtm"}, entries[0].ContextMap())
	}
}

func TestFromContext(t *testing.T) {
	assert.IsType(t, &noOpLogger{}, FromContext(context.Background()))

	l := Wrap(zap.NewNop())
	assert.Same(t, l, FromContext(WithLogger(context.Background(), l)))
}

func TestToZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, toZapLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, toZapLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel("loud"))
}
