package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "loud"})
	require.NoError(t, err)

	assert.True(t, l.Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
}

func TestNew_DebugLevel(t *testing.T) {
	l, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)

	assert.True(t, l.Desugar().Core().Enabled(zap.DebugLevel))
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := &Logger{zap.New(core).Sugar()}

	ctx := WithLogger(context.Background(), l.WithComponent("inventory"))
	FromContext(ctx).Infow("switched", "inventory", "default")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "switched", entry.Message)
	assert.Equal(t, "inventory", entry.ContextMap()["component"])
	assert.Equal(t, "default", entry.ContextMap()["inventory"])
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := Default()
	SetDefault(&Logger{zap.New(core).Sugar()})
	t.Cleanup(func() { SetDefault(prev) })

	FromContext(context.Background()).Info("hello")

	assert.Equal(t, 1, logs.Len())
}
